package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"combat-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerRepository persists the per-player win/loss counters. Counters only
// move at fight resolution, so every write is an upsert on one row.
type LedgerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLedgerRepository(db *sql.DB, logger zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{db: db, logger: logger}
}

func (r *LedgerRepository) Get(ctx context.Context, playerID uuid.UUID) (domain.WinsLosses, error) {
	var wl domain.WinsLosses
	err := r.db.QueryRowContext(ctx,
		`SELECT wins, losses FROM wins_losses WHERE player_id = ?`,
		playerID.String(),
	).Scan(&wl.Wins, &wl.Losses)
	if err == sql.ErrNoRows {
		return domain.WinsLosses{}, nil
	}
	if err != nil {
		return domain.WinsLosses{}, fmt.Errorf("failed to load wins/losses for %s: %w", playerID, err)
	}
	return wl, nil
}

func (r *LedgerRepository) IncrementWins(ctx context.Context, playerID uuid.UUID) error {
	return r.increment(ctx, playerID, 1, 0)
}

func (r *LedgerRepository) IncrementLosses(ctx context.Context, playerID uuid.UUID) error {
	return r.increment(ctx, playerID, 0, 1)
}

func (r *LedgerRepository) increment(ctx context.Context, playerID uuid.UUID, wins, losses int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wins_losses (player_id, wins, losses, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   wins = wins_losses.wins + excluded.wins,
		   losses = wins_losses.losses + excluded.losses,
		   updated_at = excluded.updated_at`,
		playerID.String(), wins, losses, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update wins/losses for %s: %w", playerID, err)
	}
	return nil
}

// Reset removes the player's counters. Missing rows are not an error.
func (r *LedgerRepository) Reset(ctx context.Context, playerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM wins_losses WHERE player_id = ?`, playerID.String())
	if err != nil {
		return fmt.Errorf("failed to reset wins/losses for %s: %w", playerID, err)
	}
	return nil
}

func (r *LedgerRepository) ResetAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wins_losses`)
	if err != nil {
		return fmt.Errorf("failed to reset wins/losses: %w", err)
	}
	return nil
}

// All loads every counter, skipping rows whose key does not parse as a UUID.
func (r *LedgerRepository) All(ctx context.Context) (map[uuid.UUID]domain.WinsLosses, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT player_id, wins, losses FROM wins_losses`)
	if err != nil {
		return nil, fmt.Errorf("failed to load wins/losses: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]domain.WinsLosses)
	for rows.Next() {
		var raw string
		var wl domain.WinsLosses
		if err := rows.Scan(&raw, &wl.Wins, &wl.Losses); err != nil {
			return nil, fmt.Errorf("failed to scan wins/losses row: %w", err)
		}
		playerID, err := uuid.Parse(raw)
		if err != nil {
			r.logger.Warn().Str("player_id", raw).Msg("skipping wins/losses row with bad player id")
			continue
		}
		out[playerID] = wl
	}
	return out, rows.Err()
}
