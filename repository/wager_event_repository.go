package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"wagerbook/database"
	"wagerbook/models"
)

// WagerEventRepository implements the append-only audit log
type WagerEventRepository struct {
	q Queryable
}

// NewWagerEventRepository creates a new wager event repository
func NewWagerEventRepository(db *database.DB) *WagerEventRepository {
	return &WagerEventRepository{q: db.Pool}
}

// newWagerEventRepositoryWithTx creates a new wager event repository with a transaction
func newWagerEventRepositoryWithTx(tx Queryable) *WagerEventRepository {
	return &WagerEventRepository{q: tx}
}

// Append inserts a new event row. There is no update or delete; the log only
// grows.
func (r *WagerEventRepository) Append(ctx context.Context, event *models.WagerEvent) error {
	var payload []byte
	if event.Data != nil {
		var err error
		payload, err = json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
	}

	query := `
		INSERT INTO wager_events (wager_id, type, message, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		event.WagerID,
		event.Type,
		event.Message,
		payload,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append wager event: %w", err)
	}

	return nil
}

// ListByWager returns the event log for a wager, oldest first
func (r *WagerEventRepository) ListByWager(ctx context.Context, wagerID int64, limit int) ([]*models.WagerEvent, error) {
	query := `
		SELECT id, wager_id, type, message, data, created_at
		FROM wager_events
		WHERE wager_id = $1
		ORDER BY id ASC
		LIMIT $2
	`

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.q.Query(ctx, query, wagerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for wager %d: %w", wagerID, err)
	}
	defer rows.Close()

	var wagerEvents []*models.WagerEvent
	for rows.Next() {
		var (
			event models.WagerEvent
			raw   []byte
		)
		err := rows.Scan(
			&event.ID,
			&event.WagerID,
			&event.Type,
			&event.Message,
			&raw,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager event: %w", err)
		}

		event.Data, err = models.DecodeEventData(event.Type, raw)
		if err != nil {
			return nil, err
		}
		wagerEvents = append(wagerEvents, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wager events: %w", err)
	}

	return wagerEvents, nil
}
