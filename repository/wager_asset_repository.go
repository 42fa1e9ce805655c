package repository

import (
	"context"
	"fmt"

	"wagerbook/database"
	"wagerbook/models"
)

// WagerAssetRepository implements staked asset data access
type WagerAssetRepository struct {
	q Queryable
}

// NewWagerAssetRepository creates a new wager asset repository
func NewWagerAssetRepository(db *database.DB) *WagerAssetRepository {
	return &WagerAssetRepository{q: db.Pool}
}

// newWagerAssetRepositoryWithTx creates a new wager asset repository with a transaction
func newWagerAssetRepositoryWithTx(tx Queryable) *WagerAssetRepository {
	return &WagerAssetRepository{q: tx}
}

// CreateBatch inserts all asset rows for one side of a wager
func (r *WagerAssetRepository) CreateBatch(ctx context.Context, assets []*models.WagerAsset) error {
	query := `
		INSERT INTO wager_assets (wager_id, asset_id, name, side, locked_value, current_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	for _, asset := range assets {
		err := r.q.QueryRow(ctx, query,
			asset.WagerID,
			asset.AssetID,
			asset.Name,
			asset.Side,
			asset.LockedValue,
			asset.CurrentValue,
		).Scan(&asset.ID, &asset.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create wager asset %s: %w", asset.AssetID, err)
		}
	}

	return nil
}

// GetByWager returns all asset rows for a wager
func (r *WagerAssetRepository) GetByWager(ctx context.Context, wagerID int64) ([]*models.WagerAsset, error) {
	query := `
		SELECT id, wager_id, asset_id, name, side, locked_value, current_value, is_disposed, created_at
		FROM wager_assets
		WHERE wager_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assets for wager %d: %w", wagerID, err)
	}
	defer rows.Close()

	var assets []*models.WagerAsset
	for rows.Next() {
		var asset models.WagerAsset
		err := rows.Scan(
			&asset.ID,
			&asset.WagerID,
			&asset.AssetID,
			&asset.Name,
			&asset.Side,
			&asset.LockedValue,
			&asset.CurrentValue,
			&asset.IsDisposed,
			&asset.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager asset: %w", err)
		}
		assets = append(assets, &asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wager assets: %w", err)
	}

	return assets, nil
}

// MarkDisposed flags an asset as liquidated mid-wager. The locked value row
// is untouched; only the flag changes.
func (r *WagerAssetRepository) MarkDisposed(ctx context.Context, wagerID int64, assetID string) error {
	query := `
		UPDATE wager_assets
		SET is_disposed = TRUE
		WHERE wager_id = $1 AND asset_id = $2
	`

	tag, err := r.q.Exec(ctx, query, wagerID, assetID)
	if err != nil {
		return fmt.Errorf("failed to mark asset %s disposed: %w", assetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s not found on wager %d", assetID, wagerID)
	}
	return nil
}

// UpdateCurrentValue records a display-only value drift
func (r *WagerAssetRepository) UpdateCurrentValue(ctx context.Context, wagerID int64, assetID string, value int64) error {
	query := `
		UPDATE wager_assets
		SET current_value = $3
		WHERE wager_id = $1 AND asset_id = $2
	`

	tag, err := r.q.Exec(ctx, query, wagerID, assetID, value)
	if err != nil {
		return fmt.Errorf("failed to update current value for asset %s: %w", assetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s not found on wager %d", assetID, wagerID)
	}
	return nil
}
