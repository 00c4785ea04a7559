// Package persistence is the merge layer between the in-memory combat cache
// and durable storage: per-attacker compressed logs plus the win/loss ledger.
package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"combat-tracker/internal/combat"
	"combat-tracker/internal/constants"
	"combat-tracker/internal/domain"
	"combat-tracker/internal/repository"
	"combat-tracker/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store owns the durable side of combat history. The cache is the only
// authority for very recent events; once MergeAndFlush completes, records
// exist solely here.
type Store struct {
	logs   *storage.LogStore
	ledger *repository.LedgerRepository
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending combat.Snapshot // batches whose flush failed, retried next cycle
}

func NewStore(logs *storage.LogStore, ledger *repository.LedgerRepository, logger zerolog.Logger) *Store {
	return &Store{
		logs:    logs,
		ledger:  ledger,
		logger:  logger,
		now:     time.Now,
		pending: make(combat.Snapshot),
	}
}

// MergeAndFlush merges a cache snapshot into the durable logs: per attacker,
// load existing, append new, sort newest-first, rewrite. Attackers with no
// new records are skipped. Failed batches are kept in memory so the next
// flush cycle retries them; the returned error reports the last failure.
func (s *Store) MergeAndFlush(ctx context.Context, snapshot combat.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attackerID, records := range s.pending {
		snapshot[attackerID] = append(snapshot[attackerID], records...)
	}
	s.pending = make(combat.Snapshot)

	var lastErr error
	flushed := 0
	for attackerID, records := range snapshot {
		if ctx.Err() != nil {
			s.pending[attackerID] = records
			lastErr = ctx.Err()
			continue
		}
		if len(records) == 0 {
			continue
		}

		existing, err := s.logs.Load(attackerID)
		if errors.Is(err, storage.ErrCorrupt) {
			s.logger.Warn().Err(err).Str("attacker_id", attackerID.String()).Msg("replacing corrupt combat log")
			existing = nil
		} else if err != nil {
			s.logger.Error().Err(err).Str("attacker_id", attackerID.String()).Msg("failed to load combat log, retrying next flush")
			s.pending[attackerID] = records
			lastErr = err
			continue
		}

		merged := combat.Dedupe(append(existing, records...), 0)
		if err := s.logs.Save(attackerID, merged); err != nil {
			s.logger.Error().Err(err).Str("attacker_id", attackerID.String()).Msg("failed to save combat log, retrying next flush")
			s.pending[attackerID] = records
			lastErr = err
			continue
		}
		flushed++
	}

	if flushed > 0 {
		s.logger.Info().Int("attackers", flushed).Msg("combat logs flushed")
	}
	return lastErr
}

// RecordsInvolving scans every durable log and collects records where the
// player is attacker or victim, newest first. Corrupt logs are skipped with
// a warning.
func (s *Store) RecordsInvolving(ctx context.Context, playerID uuid.UUID) ([]domain.CombatRecord, error) {
	attackers, err := s.logs.Attackers()
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		all []domain.CombatRecord
	)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(constants.DiskScanConcurrency)

	for _, attackerID := range attackers {
		attackerID := attackerID
		g.Go(func() error {
			records, err := s.logs.Load(attackerID)
			if err != nil {
				s.logger.Warn().Err(err).Str("attacker_id", attackerID.String()).Msg("skipping unreadable combat log")
				return nil
			}
			var matched []domain.CombatRecord
			for _, record := range records {
				if record.Involves(playerID) {
					matched = append(matched, record)
				}
			}
			if len(matched) > 0 {
				mu.Lock()
				all = append(all, matched...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	return all, nil
}

// DeleteOlderThan rewrites logs with the player's records older than
// now-threshold removed. A zero threshold removes all of them.
func (s *Store) DeleteOlderThan(playerID uuid.UUID, threshold time.Duration) error {
	return s.rewrite(func(record domain.CombatRecord) bool {
		return !record.Involves(playerID) || record.Timestamp >= s.cutoff(threshold)
	})
}

// DeleteAllOlderThan removes every record older than now-threshold from
// every log. A zero threshold deletes everything.
func (s *Store) DeleteAllOlderThan(threshold time.Duration) error {
	return s.rewrite(func(record domain.CombatRecord) bool {
		return record.Timestamp >= s.cutoff(threshold)
	})
}

func (s *Store) rewrite(keep func(domain.CombatRecord) bool) error {
	attackers, err := s.logs.Attackers()
	if err != nil {
		return err
	}

	var lastErr error
	for _, attackerID := range attackers {
		records, err := s.logs.Load(attackerID)
		if err != nil {
			s.logger.Warn().Err(err).Str("attacker_id", attackerID.String()).Msg("skipping unreadable combat log")
			continue
		}

		kept := records[:0]
		for _, record := range records {
			if keep(record) {
				kept = append(kept, record)
			}
		}
		if len(kept) == len(records) {
			continue
		}
		if err := s.logs.Save(attackerID, kept); err != nil {
			s.logger.Error().Err(err).Str("attacker_id", attackerID.String()).Msg("failed to rewrite combat log")
			lastErr = err
		}
	}
	return lastErr
}

func (s *Store) cutoff(threshold time.Duration) int64 {
	if threshold <= 0 {
		return s.now().UnixMilli() + 1
	}
	return s.now().Add(-threshold).UnixMilli()
}

// Win/loss ledger facade.

func (s *Store) GetWinsLosses(ctx context.Context, playerID uuid.UUID) (domain.WinsLosses, error) {
	return s.ledger.Get(ctx, playerID)
}

func (s *Store) IncrementWins(ctx context.Context, playerID uuid.UUID) error {
	return s.ledger.IncrementWins(ctx, playerID)
}

func (s *Store) IncrementLosses(ctx context.Context, playerID uuid.UUID) error {
	return s.ledger.IncrementLosses(ctx, playerID)
}

func (s *Store) ResetWinsLosses(ctx context.Context, playerID uuid.UUID) error {
	return s.ledger.Reset(ctx, playerID)
}

func (s *Store) ResetAllWinsLosses(ctx context.Context) error {
	return s.ledger.ResetAll(ctx)
}
