// Package tracker is the inbound surface of the combat core. The host
// forwards hit/kill/quit/join/respawn notifications here; everything else in
// the core is reached through this facade.
package tracker

import (
	"context"
	"sync"
	"time"

	"combat-tracker/internal/combat"
	"combat-tracker/internal/config"
	"combat-tracker/internal/constants"
	"combat-tracker/internal/domain"
	"combat-tracker/internal/escrow"
	"combat-tracker/internal/fight"
	"combat-tracker/internal/host"
	"combat-tracker/internal/persistence"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// HitEvent is a reported non-fatal PvP hit.
type HitEvent struct {
	AttackerID     uuid.UUID
	AttackerName   string
	VictimID       uuid.UUID
	VictimName     string
	Weapon         string
	BodyPart       domain.BodyPart
	Location       domain.Position
	Damage         float64
	VictimBlocking bool
	VictimArmor    int
}

// KillEvent is a reported PvP kill.
type KillEvent struct {
	KillerID    uuid.UUID
	KillerName  string
	VictimID    uuid.UUID
	VictimName  string
	Weapon      string
	Location    domain.Position
	VictimArmor int
}

// killDamage is the damage stamped on fatal records, which carry no
// meaningful damage amount of their own.
const killDamage = 999.0

// Tracker wires the combat cache, fight sessions, escrow, and persistence
// behind one event-driven interface.
type Tracker struct {
	cfg    *config.Config
	cache  *combat.Cache
	fights *fight.Manager
	escrow *escrow.Manager
	store  *persistence.Store
	h      host.Host
	logger zerolog.Logger

	mu         sync.Mutex
	recentHits map[uuid.UUID]map[uuid.UUID][]int64 // victim -> attacker -> hit times (ms)

	now         func() time.Time
	cancelFlush context.CancelFunc
}

func New(cfg *config.Config, cache *combat.Cache, fights *fight.Manager, esc *escrow.Manager, store *persistence.Store, h host.Host, logger zerolog.Logger) *Tracker {
	return &Tracker{
		cfg:        cfg,
		cache:      cache,
		fights:     fights,
		escrow:     esc,
		store:      store,
		h:          h,
		logger:     logger,
		recentHits: make(map[uuid.UUID]map[uuid.UUID][]int64),
		now:        time.Now,
	}
}

// OnHit records a non-fatal combat event, tagged with the active session if
// any, and feeds the auto-fight detector.
func (t *Tracker) OnHit(event HitEvent) {
	if !t.cfg.CombatTrackingEnabled() {
		return
	}
	if event.AttackerID == event.VictimID {
		return
	}

	t.cache.AddRecord(domain.CombatRecord{
		ID:             gonanoid.Must(),
		AttackerID:     event.AttackerID,
		AttackerName:   event.AttackerName,
		VictimID:       event.VictimID,
		VictimName:     event.VictimName,
		Weapon:         event.Weapon,
		BodyPart:       event.BodyPart,
		Location:       event.Location,
		Damage:         event.Damage,
		VictimBlocking: event.VictimBlocking,
		VictimArmor:    event.VictimArmor,
		SessionID:      t.fights.SessionID(),
		Timestamp:      t.now().UnixMilli(),
	})

	t.checkAutoFight(event.AttackerID, event.AttackerName, event.VictimID, event.VictimName)
}

// OnKill records a fatal combat event.
func (t *Tracker) OnKill(event KillEvent) {
	if !t.cfg.CombatTrackingEnabled() {
		return
	}
	if event.KillerID == event.VictimID {
		return
	}

	t.cache.AddRecord(domain.CombatRecord{
		ID:           gonanoid.Must(),
		AttackerID:   event.KillerID,
		AttackerName: event.KillerName,
		VictimID:     event.VictimID,
		VictimName:   event.VictimName,
		Weapon:       event.Weapon,
		BodyPart:     domain.BodyPartTorso,
		Location:     event.Location,
		Damage:       killDamage,
		Fatal:        true,
		VictimArmor:  event.VictimArmor,
		SessionID:    t.fights.SessionID(),
		Timestamp:    t.now().UnixMilli(),
	})
}

// checkAutoFight starts (or extends) a fight when the same attacker lands
// enough hits on the same victim inside the configured window.
func (t *Tracker) checkAutoFight(attackerID uuid.UUID, attackerName string, victimID uuid.UUID, victimName string) {
	if !t.cfg.FightModeEnabled() {
		return
	}
	required := t.cfg.AutoFightHitCount()
	if required <= 0 {
		return
	}

	now := t.now().UnixMilli()
	windowMs := t.cfg.AutoFightWindow().Milliseconds()

	t.mu.Lock()
	attackers, ok := t.recentHits[victimID]
	if !ok {
		attackers = make(map[uuid.UUID][]int64)
		t.recentHits[victimID] = attackers
	}
	hits := append(attackers[attackerID], now)
	fresh := hits[:0]
	for _, ts := range hits {
		if now-ts <= windowMs {
			fresh = append(fresh, ts)
		}
	}
	triggered := len(fresh) >= required
	if triggered {
		fresh = nil
	}
	attackers[attackerID] = fresh
	t.mu.Unlock()

	if !triggered {
		return
	}

	if !t.fights.Active() {
		t.fights.ClearTeams()
		t.fights.AddToTeam(fight.Team1, attackerID)
		t.fights.AddToTeam(fight.Team2, victimID)
		t.fights.Start()
		if t.fights.Active() {
			t.h.Broadcast("Auto-fight started between " + attackerName + " and " + victimName + "!")
		}
		return
	}

	var joined []string
	if !t.fights.IsParticipant(attackerID) {
		t.fights.AddToTeam(fight.Team1, attackerID)
		t.h.Tell(attackerID, "You were added to Team 1 in the ongoing fight!")
		joined = append(joined, attackerName)
	}
	if !t.fights.IsParticipant(victimID) {
		t.fights.AddToTeam(fight.Team2, victimID)
		t.h.Tell(victimID, "You were added to Team 2 in the ongoing fight!")
		joined = append(joined, victimName)
	}
	for _, name := range joined {
		t.h.Broadcast(name + " joined the ongoing fight!")
	}
}

// Player lifecycle forwarding.

func (t *Tracker) OnPlayerQuit(playerID uuid.UUID) { t.escrow.OnQuit(playerID) }

func (t *Tracker) OnPlayerJoin(playerID uuid.UUID) { t.escrow.OnJoin(playerID) }

func (t *Tracker) OnPlayerRespawn(playerID uuid.UUID) { t.escrow.OnRespawn(playerID) }

// Team and session control.

func (t *Tracker) AddToTeam(side fight.Side, playerID uuid.UUID) {
	t.fights.AddToTeam(side, playerID)
}

func (t *Tracker) RemoveFromTeam(side fight.Side, playerID uuid.UUID) {
	t.fights.RemoveFromTeam(side, playerID)
}

func (t *Tracker) ClearTeams() { t.fights.ClearTeams() }

func (t *Tracker) StartFight() {
	if !t.cfg.FightModeEnabled() {
		t.logger.Info().Msg("fight mode disabled, start ignored")
		return
	}
	t.fights.Start()
}

func (t *Tracker) EndFight() { t.fights.End() }

func (t *Tracker) CurrentScores() domain.ScorePair { return t.fights.CurrentScores() }

func (t *Tracker) IsParticipant(playerID uuid.UUID) bool {
	return t.fights.IsParticipant(playerID)
}

func (t *Tracker) KeepInventory(victimID uuid.UUID) bool {
	return t.fights.KeepInventory(victimID)
}

// Lookup and administration.

// RecentByAttacker returns newest-first cached records by the attacker,
// clamped to the lookup limit.
func (t *Tracker) RecentByAttacker(attackerID uuid.UUID, limit int) []domain.CombatRecord {
	return t.cache.RecentByAttacker(attackerID, clampLimit(limit))
}

// RecordsInvolving returns newest-first records where the player appears on
// either side. Full mode merges the durable logs with the cache; cache mode
// reads memory only.
func (t *Tracker) RecordsInvolving(ctx context.Context, playerID uuid.UUID, limit int, full bool) ([]domain.CombatRecord, error) {
	limit = clampLimit(limit)
	cached := t.cache.RecordsInvolving(playerID, limit)
	if !full {
		return cached, nil
	}

	stored, err := t.store.RecordsInvolving(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return combat.Dedupe(append(cached, stored...), limit), nil
}

// DeleteOlderThan removes the player's records older than the threshold from
// both the cache and durable storage. Zero deletes everything.
func (t *Tracker) DeleteOlderThan(playerID uuid.UUID, threshold time.Duration) error {
	t.cache.DeleteOlderThan(playerID, threshold)
	return t.store.DeleteOlderThan(playerID, threshold)
}

// DeleteAllOlderThan is DeleteOlderThan across every player.
func (t *Tracker) DeleteAllOlderThan(threshold time.Duration) error {
	t.cache.DeleteAllOlderThan(threshold)
	return t.store.DeleteAllOlderThan(threshold)
}

func (t *Tracker) GetWinsLosses(ctx context.Context, playerID uuid.UUID) (domain.WinsLosses, error) {
	return t.store.GetWinsLosses(ctx, playerID)
}

func (t *Tracker) ResetWinsLosses(ctx context.Context, playerID uuid.UUID) error {
	return t.store.ResetWinsLosses(ctx, playerID)
}

func (t *Tracker) ResetAllWinsLosses(ctx context.Context) error {
	return t.store.ResetAllWinsLosses(ctx)
}

func (t *Tracker) ForceReleaseEscrow(playerID uuid.UUID) bool {
	return t.escrow.ForceRelease(playerID)
}

// Background persistence cycle.

// Start launches the periodic merge flush. The cache stays the authority for
// recent events between cycles; a crash loses at most one interval.
func (t *Tracker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancelFlush = cancel

	go func() {
		ticker := time.NewTicker(t.cfg.FlushInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Flush(ctx)
			}
		}
	}()
}

// Stop cancels the flush loop and performs a final merge so shutdown does
// not discard the write buffer.
func (t *Tracker) Stop() {
	if t.cancelFlush != nil {
		t.cancelFlush()
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	t.Flush(ctx)
}

// Flush drains the cache and merges it into durable storage. While a fight
// is running its records stay cached, since live scoring reads them there.
// They are picked up by the next flush after the fight ends.
func (t *Tracker) Flush(ctx context.Context) {
	var snapshot combat.Snapshot
	if session := t.fights.SessionID(); session != nil {
		snapshot = t.cache.DrainExcludingSession(*session)
	} else {
		snapshot = t.cache.DrainAndClear()
	}
	if len(snapshot) == 0 {
		return
	}
	if err := t.store.MergeAndFlush(ctx, snapshot); err != nil {
		t.logger.Error().Err(err).Msg("combat log flush incomplete, will retry")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultLookupLimit
	}
	if limit > constants.MaxLookupLimit {
		return constants.MaxLookupLimit
	}
	return limit
}
