// Package escrow sequesters the holdings of fight participants who
// disconnect mid-session and returns them after a timeout. A record moves
// sequestered -> released -> restored; restoration happens at most once even
// when the sweep, a reconnect, and an admin release race.
package escrow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"combat-tracker/internal/config"
	"combat-tracker/internal/constants"
	"combat-tracker/internal/domain"
	"combat-tracker/internal/host"
	"combat-tracker/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FightQuery is the slice of the fight manager the escrow needs: whether a
// session is running and whether a player is in it.
type FightQuery interface {
	Active() bool
	IsParticipant(playerID uuid.UUID) bool
}

// Manager holds escrow custody. The in-memory map is the single racing
// authority; presence in the map is the claim check for restoration, and the
// repository mirrors it for durability across restarts.
type Manager struct {
	cfg    *config.Config
	fight  FightQuery
	repo   *repository.EscrowRepository
	h      host.Host
	logger zerolog.Logger

	mu      sync.Mutex
	records map[uuid.UUID]*domain.EscrowRecord

	now   func() time.Time
	delay func(d time.Duration, f func()) // scheduled retries, injectable in tests

	cancelSweep context.CancelFunc
}

func NewManager(cfg *config.Config, fight FightQuery, repo *repository.EscrowRepository, h host.Host, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		fight:   fight,
		repo:    repo,
		h:       h,
		logger:  logger,
		records: make(map[uuid.UUID]*domain.EscrowRecord),
		now:     time.Now,
		delay:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Load restores custody from the repository at startup.
func (m *Manager) Load(ctx context.Context) error {
	stored, err := m.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load escrow records: %w", err)
	}

	m.mu.Lock()
	for i := range stored {
		record := stored[i]
		m.records[record.PlayerID] = &record
	}
	count := len(m.records)
	m.mu.Unlock()

	if count > 0 {
		m.logger.Info().Int("records", count).Msg("escrow records loaded")
	}
	return nil
}

// Start runs the periodic expiry sweep until the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancelSweep = cancel

	go func() {
		ticker := time.NewTicker(constants.EscrowSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(ctx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	if m.cancelSweep != nil {
		m.cancelSweep()
	}
}

// OnQuit sequesters the holdings of an active fight participant who
// disconnects. A player who logs off again while an unreleased escrow exists
// only has their current holdings cleared; the stored snapshot is never
// overwritten.
func (m *Manager) OnQuit(playerID uuid.UUID) {
	if !m.fight.Active() || !m.fight.IsParticipant(playerID) {
		return
	}

	m.mu.Lock()
	if existing, ok := m.records[playerID]; ok && !existing.Released() {
		m.mu.Unlock()
		m.h.ClearHoldings(playerID)
		m.logger.Info().Str("player_id", playerID.String()).Msg("repeat combat log, holdings cleared")
		return
	}
	m.mu.Unlock()

	inventory, stash := m.h.TakeHoldings(playerID)
	record := &domain.EscrowRecord{
		PlayerID:  playerID,
		Expiry:    m.now().Add(m.cfg.EscrowTimeout()).UnixMilli(),
		Inventory: inventory,
		Stash:     stash,
		State:     domain.EscrowSequestered,
	}

	m.mu.Lock()
	m.records[playerID] = record
	m.mu.Unlock()

	m.persist(*record)
	m.logger.Info().
		Str("player_id", playerID.String()).
		Int64("expiry_ms", record.Expiry).
		Msg("holdings sequestered for combat log")
}

// Sweep releases every record past its expiry and attempts restoration for
// owners who are connected; offline owners are restored on their next join.
func (m *Manager) Sweep(ctx context.Context) {
	now := m.now().UnixMilli()

	var due []uuid.UUID
	m.mu.Lock()
	for playerID, record := range m.records {
		if !record.Released() && now >= record.Expiry {
			record.State = domain.EscrowReleased
			due = append(due, playerID)
		}
	}
	m.mu.Unlock()

	for _, playerID := range due {
		if record, ok := m.get(playerID); ok {
			m.persist(record)
		}
		if !m.h.Online(playerID) {
			continue
		}
		if !m.h.Alive(playerID) {
			m.h.Tell(playerID, "Your escrowed items will be returned when you respawn.")
			continue
		}
		m.tryRestore(playerID)
	}
}

// OnJoin handles a reconnecting owner: restore when due, otherwise report
// the remaining time.
func (m *Manager) OnJoin(playerID uuid.UUID) {
	record, ok := m.get(playerID)
	if !ok {
		return
	}

	if !m.h.Alive(playerID) {
		m.h.Tell(playerID, "Your escrowed items will be returned when you respawn.")
		return
	}

	now := m.now().UnixMilli()
	if record.Released() || now >= record.Expiry {
		m.markReleased(playerID)
		m.tryRestore(playerID)
		return
	}

	remaining := (record.Expiry - now) / 1000
	m.h.Tell(playerID, "Your items are in escrow for combat logging!")
	m.h.Tell(playerID, fmt.Sprintf("They will be returned in %d seconds.", remaining))
}

// OnRespawn schedules a restoration attempt shortly after respawn, covering
// the window where the player entity is not fully placed yet.
func (m *Manager) OnRespawn(playerID uuid.UUID) {
	record, ok := m.get(playerID)
	if !ok {
		return
	}
	if !record.Released() && m.now().UnixMilli() < record.Expiry {
		return
	}

	m.markReleased(playerID)
	m.delay(constants.EscrowRespawnDelay, func() {
		if m.h.Online(playerID) {
			m.tryRestore(playerID)
		}
	})
}

// ForceRelease is the administrative override: mark released and restore now
// if the owner is reachable, otherwise on their next join. Reports whether a
// record existed.
func (m *Manager) ForceRelease(playerID uuid.UUID) bool {
	if _, ok := m.get(playerID); !ok {
		return false
	}

	m.markReleased(playerID)
	if m.h.Online(playerID) && m.h.Alive(playerID) {
		m.tryRestore(playerID)
	}
	return true
}

// Record returns a copy of the player's escrow record, if any.
func (m *Manager) Record(playerID uuid.UUID) (domain.EscrowRecord, bool) {
	return m.get(playerID)
}

// tryRestore performs the exactly-once restoration. Claiming is removal from
// the map under the lock: concurrent attempts see the record gone and become
// no-ops. An unsafe owner (dead, submerged, falling) defers the claim and
// retries shortly.
func (m *Manager) tryRestore(playerID uuid.UUID) {
	m.mu.Lock()
	record, ok := m.records[playerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !m.h.Safe(playerID) {
		m.mu.Unlock()
		m.logger.Debug().Str("player_id", playerID.String()).Msg("owner unsafe, retrying restoration")
		m.delay(constants.EscrowUnsafeRetry, func() {
			if m.h.Online(playerID) {
				m.tryRestore(playerID)
			}
		})
		return
	}
	claimed := *record
	delete(m.records, playerID)
	m.mu.Unlock()

	leftover := m.h.Restore(playerID, claimed.Inventory, claimed.Stash)
	if len(leftover) > 0 {
		m.h.Deposit(m.h.Position(playerID), leftover)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := m.repo.Delete(ctx, playerID); err != nil {
		m.logger.Error().Err(err).Str("player_id", playerID.String()).Msg("failed to delete restored escrow record")
	}

	m.h.Tell(playerID, "Your escrowed items have been returned.")
	m.logger.Info().
		Str("player_id", playerID.String()).
		Int("leftover_stacks", len(leftover)).
		Msg("escrowed holdings restored")
}

func (m *Manager) get(playerID uuid.UUID) (domain.EscrowRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[playerID]
	if !ok {
		return domain.EscrowRecord{}, false
	}
	return *record, true
}

func (m *Manager) markReleased(playerID uuid.UUID) {
	m.mu.Lock()
	record, ok := m.records[playerID]
	if ok && !record.Released() {
		record.State = domain.EscrowReleased
	}
	var copied domain.EscrowRecord
	if ok {
		copied = *record
	}
	m.mu.Unlock()

	if ok {
		m.persist(copied)
	}
}

func (m *Manager) persist(record domain.EscrowRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := m.repo.Put(ctx, record); err != nil {
		m.logger.Error().Err(err).Str("player_id", record.PlayerID.String()).Msg("failed to persist escrow record")
	}
}
