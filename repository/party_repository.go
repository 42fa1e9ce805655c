package repository

import (
	"context"
	"fmt"

	"wagerbook/database"
	"wagerbook/models"

	"github.com/jackc/pgx/v5"
)

// PartyRepository implements party data access
type PartyRepository struct {
	q Queryable
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db *database.DB) *PartyRepository {
	return &PartyRepository{q: db.Pool}
}

// newPartyRepositoryWithTx creates a new party repository with a transaction
func newPartyRepositoryWithTx(tx Queryable) *PartyRepository {
	return &PartyRepository{q: tx}
}

// GetByID retrieves a party by its ID
func (r *PartyRepository) GetByID(ctx context.Context, id string) (*models.Party, error) {
	query := `
		SELECT id, display_name, wins, losses, total_won, total_lost, created_at, updated_at
		FROM parties
		WHERE id = $1
	`

	var party models.Party
	err := r.q.QueryRow(ctx, query, id).Scan(
		&party.ID,
		&party.DisplayName,
		&party.Wins,
		&party.Losses,
		&party.TotalWon,
		&party.TotalLost,
		&party.CreatedAt,
		&party.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party %s: %w", id, err)
	}

	return &party, nil
}

// GetOrCreate retrieves an existing party or creates it
func (r *PartyRepository) GetOrCreate(ctx context.Context, id string, displayName string) (*models.Party, error) {
	query := `
		INSERT INTO parties (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, display_name, wins, losses, total_won, total_lost, created_at, updated_at
	`

	var party models.Party
	err := r.q.QueryRow(ctx, query, id, displayName).Scan(
		&party.ID,
		&party.DisplayName,
		&party.Wins,
		&party.Losses,
		&party.TotalWon,
		&party.TotalLost,
		&party.CreatedAt,
		&party.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create party %s: %w", id, err)
	}

	return &party, nil
}

// RecordWin increments the win counters atomically
func (r *PartyRepository) RecordWin(ctx context.Context, id string, amount int64) error {
	query := `
		UPDATE parties
		SET wins = wins + 1, total_won = total_won + $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to record win for party %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("party %s not found", id)
	}
	return nil
}

// RecordLoss increments the loss counters atomically
func (r *PartyRepository) RecordLoss(ctx context.Context, id string, amount int64) error {
	query := `
		UPDATE parties
		SET losses = losses + 1, total_lost = total_lost + $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to record loss for party %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("party %s not found", id)
	}
	return nil
}
