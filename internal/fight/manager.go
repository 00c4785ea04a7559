// Package fight owns the PvP fight session state machine: rosters, the live
// scoring ticker, and outcome resolution.
package fight

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"combat-tracker/internal/combat"
	"combat-tracker/internal/config"
	"combat-tracker/internal/constants"
	"combat-tracker/internal/domain"
	"combat-tracker/internal/host"
	"combat-tracker/internal/persistence"
	"combat-tracker/internal/scoring"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Side int

const (
	Team1 Side = 1
	Team2 Side = 2
)

// Manager drives fight sessions. At most one session is active at a time;
// Start mints it and End resolves it. End is idempotent because the expiring
// ticker and a manual command may race to call it.
type Manager struct {
	cfg    *config.Config
	cache  *combat.Cache
	engine *scoring.Engine
	store  *persistence.Store
	h      host.Host
	logger zerolog.Logger

	mu           sync.Mutex
	team1        scoring.Roster
	team2        scoring.Roster
	sessionID    *uuid.UUID
	endTime      time.Time
	duration     time.Duration
	cancelTick   context.CancelFunc
	deathPenalty bool

	now  func() time.Time
	rand *rand.Rand
}

func NewManager(cfg *config.Config, cache *combat.Cache, engine *scoring.Engine, store *persistence.Store, h host.Host, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		cache:  cache,
		engine: engine,
		store:  store,
		h:      h,
		logger: logger,
		team1:  make(scoring.Roster),
		team2:  make(scoring.Roster),
		now:    time.Now,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddToTeam puts the player on a roster, removing them from the other side
// so the rosters stay disjoint. Allowed in any state.
func (m *Manager) AddToTeam(side Side, playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == Team1 {
		delete(m.team2, playerID)
		m.team1[playerID] = struct{}{}
	} else {
		delete(m.team1, playerID)
		m.team2[playerID] = struct{}{}
	}
}

func (m *Manager) RemoveFromTeam(side Side, playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == Team1 {
		delete(m.team1, playerID)
	} else {
		delete(m.team2, playerID)
	}
}

func (m *Manager) ClearTeams() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.team1 = make(scoring.Roster)
	m.team2 = make(scoring.Roster)
}

// IsParticipant reports roster membership on either side.
func (m *Manager) IsParticipant(playerID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.team1.Has(playerID) || m.team2.Has(playerID)
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID != nil
}

// SessionID returns the current session id, or nil when idle.
func (m *Manager) SessionID() *uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == nil {
		return nil
	}
	id := *m.sessionID
	return &id
}

// ApplyingDeathPenalty reports whether a death-penalty force-kill is in
// flight, so the host's death handling can tell penalty deaths apart from
// combat deaths.
func (m *Manager) ApplyingDeathPenalty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deathPenalty
}

// KeepInventory tells the host whether the victim's drops should be kept on
// death, per the fight keep-inventory gates.
func (m *Manager) KeepInventory(victimID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.team1.Has(victimID) && !m.team2.Has(victimID) {
		return false
	}
	if m.deathPenalty {
		return m.cfg.KeepInventoryFightEnd()
	}
	return m.sessionID != nil && m.cfg.KeepInventoryDuringFight()
}

// Start transitions Idle -> Active: mints a session id, computes the end
// time, and begins the 1 Hz status ticker. It is a logged no-op when fight
// mode is disabled, a roster is empty, or a session is already active.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.sessionID != nil {
		m.mu.Unlock()
		m.logger.Warn().Msg("cannot start fight: session already active")
		return
	}
	if !m.cfg.FightModeEnabled() || len(m.team1) == 0 || len(m.team2) == 0 {
		m.mu.Unlock()
		m.logger.Warn().Msg("cannot start fight: disabled or empty teams")
		return
	}

	id := uuid.New()
	m.sessionID = &id
	m.duration = m.cfg.FightDuration()
	m.endTime = m.now().Add(m.duration)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelTick = cancel
	m.mu.Unlock()

	m.logger.Info().
		Str("session_id", id.String()).
		Dur("duration", m.duration).
		Msg("fight_started")
	m.announce("A fight has started!")

	go m.tickLoop(ctx)
}

func (m *Manager) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(constants.FightTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.tick() {
				m.End()
				return
			}
		}
	}
}

// tick republishes the live status; it returns true when the deadline has
// passed and the session should resolve.
func (m *Manager) tick() bool {
	m.mu.Lock()
	if m.sessionID == nil {
		m.mu.Unlock()
		return false
	}
	remaining := m.endTime.Sub(m.now())
	if remaining <= 0 {
		m.mu.Unlock()
		return true
	}

	sessionID := *m.sessionID
	scores := m.engine.ScoreSession(m.cache.Records(), sessionID, m.team1, m.team2)
	title := fmt.Sprintf("FIGHT %s [%d] vs %s [%d] %02d:%02d",
		m.teamNamesLocked(m.team1), scores.Team1,
		m.teamNamesLocked(m.team2), scores.Team2,
		int(remaining.Minutes()), int(remaining.Seconds())%60)
	recipients := m.statusRecipientsLocked()
	progress := remaining.Seconds() / m.duration.Seconds()
	m.mu.Unlock()

	if progress > 1 {
		progress = 1
	}
	m.h.PublishStatus(recipients, host.Status{Title: title, Progress: progress})
	return false
}

// End resolves the session: final scores, outcome announcement, ledger
// updates, penalty policy, then back to Idle. Safe to call when already
// Idle, and safe to call concurrently with the expiring ticker.
func (m *Manager) End() {
	m.mu.Lock()
	if m.sessionID == nil {
		m.mu.Unlock()
		return
	}

	// cancel the ticker before any state is released so a stale tick can
	// never observe cleared rosters
	if m.cancelTick != nil {
		m.cancelTick()
		m.cancelTick = nil
	}

	sessionID := *m.sessionID
	scores := m.engine.ScoreSession(m.cache.Records(), sessionID, m.team1, m.team2)

	var winners, losers []uuid.UUID
	var verdict string
	switch {
	case scores.Team1 > scores.Team2:
		winners, losers = rosterIDs(m.team1), rosterIDs(m.team2)
		verdict = "Team1 wins!"
	case scores.Team2 > scores.Team1:
		winners, losers = rosterIDs(m.team2), rosterIDs(m.team1)
		verdict = "Team2 wins!"
	default:
		verdict = "Tie game!"
	}

	// capture participants before the rosters are cleared so the outcome
	// still reaches them when broadcasting is off
	participants := append(rosterIDs(m.team1), rosterIDs(m.team2)...)

	m.sessionID = nil
	m.endTime = time.Time{}
	m.team1 = make(scoring.Roster)
	m.team2 = make(scoring.Roster)
	m.mu.Unlock()

	m.h.ClearStatus()
	m.announceTo(participants, fmt.Sprintf("%s Scores: T1 %d T2 %d", verdict, scores.Team1, scores.Team2))
	m.logger.Info().
		Str("session_id", sessionID.String()).
		Int("team1_score", scores.Team1).
		Int("team2_score", scores.Team2).
		Str("verdict", verdict).
		Msg("fight_ended")

	if len(winners) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	for _, winner := range winners {
		if err := m.store.IncrementWins(ctx, winner); err != nil {
			m.logger.Error().Err(err).Str("player_id", winner.String()).Msg("failed to record win")
		}
	}
	for _, loser := range losers {
		if err := m.store.IncrementLosses(ctx, loser); err != nil {
			m.logger.Error().Err(err).Str("player_id", loser.String()).Msg("failed to record loss")
		}
	}

	m.applyPenalty(winners, losers)
}

func (m *Manager) applyPenalty(winners, losers []uuid.UUID) {
	switch m.cfg.PenaltyMode() {
	case "DEATH":
		m.mu.Lock()
		m.deathPenalty = true
		m.mu.Unlock()
		for _, loser := range losers {
			if m.h.Online(loser) {
				m.h.ForceKill(loser)
			}
		}
		m.mu.Lock()
		m.deathPenalty = false
		m.mu.Unlock()
	case "STEAL":
		for _, loser := range losers {
			m.stealFrom(loser, winners)
		}
	}
}

// stealFrom takes one unit of one random high-value item from the loser and
// hands a copy to every winner, dropping it at the winner's feet when their
// capacity is exhausted.
func (m *Manager) stealFrom(loser uuid.UUID, winners []uuid.UUID) {
	if !m.h.Online(loser) {
		return
	}

	inventory, _ := m.h.Holdings(loser)
	var highValue []string
	for _, stack := range inventory {
		if !stack.Empty() && m.cfg.IsHighValueItem(stack.Item) {
			highValue = append(highValue, stack.Item)
		}
	}
	if len(highValue) == 0 {
		return
	}

	m.mu.Lock()
	item := highValue[m.rand.Intn(len(highValue))]
	m.mu.Unlock()

	if !m.h.RemoveOne(loser, item) {
		return
	}
	m.h.Tell(loser, fmt.Sprintf("You lost a %s to the winning team!", item))

	loserName := m.h.Name(loser)
	for _, winner := range winners {
		if !m.h.Online(winner) {
			continue
		}
		stack := domain.ItemStack{Item: item, Count: 1}
		if m.h.Give(winner, stack) {
			m.h.Tell(winner, fmt.Sprintf("Loot share! You received a stolen %s from %s", item, loserName))
			continue
		}
		m.h.Deposit(m.h.Position(winner), []domain.ItemStack{stack})
		m.h.Tell(winner, fmt.Sprintf("Loot share! Your inventory was full, so a stolen %s from %s was dropped at your feet", item, loserName))
	}
}

// CurrentScores computes the live score pair, zero when idle.
func (m *Manager) CurrentScores() domain.ScorePair {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == nil {
		return domain.ScorePair{}
	}
	return m.engine.ScoreSession(m.cache.Records(), *m.sessionID, m.team1, m.team2)
}

// announce broadcasts server-wide or, when broadcast is off, messages only
// the participants.
func (m *Manager) announce(message string) {
	m.mu.Lock()
	recipients := append(rosterIDs(m.team1), rosterIDs(m.team2)...)
	m.mu.Unlock()
	m.announceTo(recipients, message)
}

func (m *Manager) announceTo(recipients []uuid.UUID, message string) {
	if m.cfg.BroadcastEnabled() {
		m.h.Broadcast(message)
		return
	}
	for _, playerID := range recipients {
		m.h.Tell(playerID, message)
	}
}

func (m *Manager) teamNamesLocked(roster scoring.Roster) string {
	names := make([]string, 0, constants.StatusNamesPerTeam)
	for playerID := range roster {
		if name := m.h.Name(playerID); name != "" {
			names = append(names, name)
		}
		if len(names) == constants.StatusNamesPerTeam {
			break
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (m *Manager) statusRecipientsLocked() []uuid.UUID {
	if m.cfg.BroadcastEnabled() {
		return nil // everyone
	}
	return append(rosterIDs(m.team1), rosterIDs(m.team2)...)
}

func rosterIDs(roster scoring.Roster) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(roster))
	for playerID := range roster {
		ids = append(ids, playerID)
	}
	return ids
}

// Stop cancels any running session ticker without resolving the session.
// Used on shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelTick != nil {
		m.cancelTick()
		m.cancelTick = nil
	}
}
