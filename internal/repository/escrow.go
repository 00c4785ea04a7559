package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"combat-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EscrowRepository keeps escrow custody durable across restarts. The escrow
// manager's in-memory map is the racing authority; rows here mirror it.
type EscrowRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEscrowRepository(db *sql.DB, logger zerolog.Logger) *EscrowRepository {
	return &EscrowRepository{db: db, logger: logger}
}

func (r *EscrowRepository) Put(ctx context.Context, record domain.EscrowRecord) error {
	inventory, err := json.Marshal(record.Inventory)
	if err != nil {
		return fmt.Errorf("failed to encode escrow inventory for %s: %w", record.PlayerID, err)
	}
	stash, err := json.Marshal(record.Stash)
	if err != nil {
		return fmt.Errorf("failed to encode escrow stash for %s: %w", record.PlayerID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO escrow_records (player_id, expiry_ms, state, inventory, stash, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   expiry_ms = excluded.expiry_ms,
		   state = excluded.state,
		   inventory = excluded.inventory,
		   stash = excluded.stash,
		   updated_at = excluded.updated_at`,
		record.PlayerID.String(), record.Expiry, string(record.State),
		string(inventory), string(stash), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save escrow record for %s: %w", record.PlayerID, err)
	}
	return nil
}

func (r *EscrowRepository) Get(ctx context.Context, playerID uuid.UUID) (*domain.EscrowRecord, error) {
	var (
		expiry           int64
		state            string
		inventory, stash string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT expiry_ms, state, inventory, stash FROM escrow_records WHERE player_id = ?`,
		playerID.String(),
	).Scan(&expiry, &state, &inventory, &stash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load escrow record for %s: %w", playerID, err)
	}

	record := domain.EscrowRecord{
		PlayerID: playerID,
		Expiry:   expiry,
		State:    domain.EscrowState(state),
	}
	if err := json.Unmarshal([]byte(inventory), &record.Inventory); err != nil {
		return nil, fmt.Errorf("failed to decode escrow inventory for %s: %w", playerID, err)
	}
	if err := json.Unmarshal([]byte(stash), &record.Stash); err != nil {
		return nil, fmt.Errorf("failed to decode escrow stash for %s: %w", playerID, err)
	}
	return &record, nil
}

func (r *EscrowRepository) Delete(ctx context.Context, playerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM escrow_records WHERE player_id = ?`, playerID.String())
	if err != nil {
		return fmt.Errorf("failed to delete escrow record for %s: %w", playerID, err)
	}
	return nil
}

// All loads every stored record, skipping rows that fail to decode.
func (r *EscrowRepository) All(ctx context.Context) ([]domain.EscrowRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT player_id FROM escrow_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrow records: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan escrow row: %w", err)
		}
		playerID, err := uuid.Parse(raw)
		if err != nil {
			r.logger.Warn().Str("player_id", raw).Msg("skipping escrow row with bad player id")
			continue
		}
		ids = append(ids, playerID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var records []domain.EscrowRecord
	for _, playerID := range ids {
		record, err := r.Get(ctx, playerID)
		if err != nil {
			r.logger.Warn().Err(err).Str("player_id", playerID.String()).Msg("skipping unreadable escrow record")
			continue
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}
