// Package storage persists per-attacker combat logs as compressed,
// versioned JSON files. One file per attacker UUID, newest record first.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"combat-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

const (
	logVersion = 1
	logSuffix  = ".log.gz"
)

// ErrCorrupt marks a log file that exists but cannot be decoded. Bulk scans
// are expected to skip these with a warning rather than abort.
var ErrCorrupt = errors.New("corrupt combat log")

type envelope struct {
	Version int                   `json:"version"`
	Records []domain.CombatRecord `json:"records"`
}

// LogStore reads and writes the durable per-attacker combat logs.
type LogStore struct {
	dir    string
	logger zerolog.Logger
}

func NewLogStore(dir string, logger zerolog.Logger) (*LogStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create combat log directory %s: %w", dir, err)
	}
	return &LogStore{dir: dir, logger: logger}, nil
}

// Save rewrites the attacker's log. An empty record set removes the file.
func (s *LogStore) Save(attackerID uuid.UUID, records []domain.CombatRecord) error {
	path := s.path(attackerID)
	if len(records) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	zw := gzip.NewWriter(f)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(envelope{Version: logVersion, Records: records}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode combat log for %s: %w", attackerID, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to compress combat log for %s: %w", attackerID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write combat log for %s: %w", attackerID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace combat log for %s: %w", attackerID, err)
	}
	return nil
}

// Load reads the attacker's log. A missing file yields an empty slice;
// undecodable content or an unknown version yields ErrCorrupt.
func (s *LogStore) Load(attackerID uuid.UUID) ([]domain.CombatRecord, error) {
	f, err := os.Open(s.path(attackerID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open combat log for %s: %w", attackerID, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, attackerID, err)
	}
	defer zr.Close()

	var env envelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, attackerID, err)
	}
	if env.Version != logVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, attackerID, env.Version)
	}
	return env.Records, nil
}

// Attackers lists the attacker UUIDs that have a durable log, skipping
// files whose name does not parse.
func (s *LogStore) Attackers() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list combat logs: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, logSuffix))
		if err != nil {
			s.logger.Warn().Str("file", name).Msg("skipping combat log with bad uuid filename")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *LogStore) path(attackerID uuid.UUID) string {
	return filepath.Join(s.dir, attackerID.String()+logSuffix)
}
