package repository

import (
	"context"
	"fmt"
	"time"

	"wagerbook/database"
	"wagerbook/models"

	"github.com/jackc/pgx/v5"
)

const wagerColumns = `
	id, creator_id, opponent_id, type, timeframe, start_date, end_date,
	league_id, is_public, creator_stake, opponent_stake, total_value,
	status, winner_id, escrow_id, created_at, matched_at, settled_at
`

// WagerRepository implements wager data access
type WagerRepository struct {
	q Queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx Queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

// Create creates a new wager
func (r *WagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	query := `
		INSERT INTO wagers (
			creator_id, opponent_id, type, timeframe, start_date, end_date,
			league_id, is_public, creator_stake, opponent_stake, total_value,
			status, escrow_id, matched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.CreatorID,
		wager.OpponentID,
		wager.Type,
		wager.Timeframe,
		wager.StartDate,
		wager.EndDate,
		wager.LeagueID,
		wager.IsPublic,
		wager.CreatorStake,
		wager.OpponentStake,
		wager.TotalValue,
		wager.Status,
		wager.EscrowID,
		wager.MatchedAt,
	).Scan(&wager.ID, &wager.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create wager: %w", err)
	}

	return nil
}

func (r *WagerRepository) scanWager(row pgx.Row) (*models.Wager, error) {
	var wager models.Wager
	err := row.Scan(
		&wager.ID,
		&wager.CreatorID,
		&wager.OpponentID,
		&wager.Type,
		&wager.Timeframe,
		&wager.StartDate,
		&wager.EndDate,
		&wager.LeagueID,
		&wager.IsPublic,
		&wager.CreatorStake,
		&wager.OpponentStake,
		&wager.TotalValue,
		&wager.Status,
		&wager.WinnerID,
		&wager.EscrowID,
		&wager.CreatedAt,
		&wager.MatchedAt,
		&wager.SettledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wager, nil
}

// GetByID retrieves a wager by its ID
func (r *WagerRepository) GetByID(ctx context.Context, id int64) (*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := r.scanWager(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get wager by ID %d: %w", id, err)
	}
	return wager, nil
}

// GetByEscrowID retrieves the wager referencing an escrow account
func (r *WagerRepository) GetByEscrowID(ctx context.Context, escrowID string) (*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE escrow_id = $1`

	wager, err := r.scanWager(r.q.QueryRow(ctx, query, escrowID))
	if err != nil {
		return nil, fmt.Errorf("failed to get wager by escrow ID %s: %w", escrowID, err)
	}
	return wager, nil
}

// TransitionToMatched atomically moves an OPEN wager to MATCHED. The status
// guard in the WHERE clause makes this the acceptance race arbiter: only one
// concurrent caller sees RowsAffected == 1.
func (r *WagerRepository) TransitionToMatched(ctx context.Context, wagerID int64, opponentID string, opponentStake, totalValue int64, matchedAt time.Time) (bool, error) {
	query := `
		UPDATE wagers
		SET opponent_id = $2, opponent_stake = $3, total_value = $4,
		    status = $5, matched_at = $6
		WHERE id = $1 AND status = $7
	`

	tag, err := r.q.Exec(ctx, query,
		wagerID,
		opponentID,
		opponentStake,
		totalValue,
		models.WagerStatusMatched,
		matchedAt,
		models.WagerStatusOpen,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition wager %d to matched: %w", wagerID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionToSettled atomically moves a settleable wager to SETTLED and
// reports the status the wager actually left. The self-join reads the row
// version the update replaced, so the returned status is exact even when a
// sweep moved the wager between the caller's read and this write.
func (r *WagerRepository) TransitionToSettled(ctx context.Context, wagerID int64, winnerID string, settledAt time.Time) (models.WagerStatus, bool, error) {
	query := `
		UPDATE wagers w
		SET status = $2, winner_id = $3, settled_at = $4
		FROM wagers prev
		WHERE w.id = $1 AND prev.id = w.id AND w.status IN ($5, $6)
		RETURNING prev.status
	`

	var prior models.WagerStatus
	err := r.q.QueryRow(ctx, query,
		wagerID,
		models.WagerStatusSettled,
		winnerID,
		settledAt,
		models.WagerStatusActive,
		models.WagerStatusPendingSettlement,
	).Scan(&prior)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to transition wager %d to settled: %w", wagerID, err)
	}
	return prior, true, nil
}

// TransitionToCancelled atomically moves an OPEN wager to CANCELLED
func (r *WagerRepository) TransitionToCancelled(ctx context.Context, wagerID int64) (bool, error) {
	return r.TransitionStatus(ctx, wagerID, models.WagerStatusOpen, models.WagerStatusCancelled)
}

// TransitionStatus performs a generic conditional status write
func (r *WagerRepository) TransitionStatus(ctx context.Context, wagerID int64, from, to models.WagerStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("invalid wager transition %s -> %s", from, to)
	}

	query := `UPDATE wagers SET status = $3 WHERE id = $1 AND status = $2`

	tag, err := r.q.Exec(ctx, query, wagerID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition wager %d from %s to %s: %w", wagerID, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetActiveByParty returns all non-terminal wagers involving a party
func (r *WagerRepository) GetActiveByParty(ctx context.Context, partyID string) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE (creator_id = $1 OR opponent_id = $1)
		  AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, query, partyID, models.WagerStatusSettled, models.WagerStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get active wagers for party %s: %w", partyID, err)
	}
	defer rows.Close()

	return collectWagers(rows)
}

// GetMatchedStartedBefore returns MATCHED wagers whose start date passed
func (r *WagerRepository) GetMatchedStartedBefore(ctx context.Context, cutoff time.Time) ([]*models.Wager, error) {
	return r.listByStatusAndDate(ctx, models.WagerStatusMatched, "start_date", cutoff)
}

// GetActiveEndedBefore returns ACTIVE wagers whose end date passed
func (r *WagerRepository) GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*models.Wager, error) {
	return r.listByStatusAndDate(ctx, models.WagerStatusActive, "end_date", cutoff)
}

func (r *WagerRepository) listByStatusAndDate(ctx context.Context, status models.WagerStatus, dateColumn string, cutoff time.Time) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE status = $1 AND ` + dateColumn + ` <= $2
		ORDER BY ` + dateColumn + ` ASC
	`

	rows, err := r.q.Query(ctx, query, status, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s wagers by %s: %w", status, dateColumn, err)
	}
	defer rows.Close()

	return collectWagers(rows)
}

// GetStats returns wager statistics for a party
func (r *WagerRepository) GetStats(ctx context.Context, partyID string) (*models.WagerStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_wagers,
			COUNT(*) FILTER (WHERE status = $2) AS total_open,
			COUNT(*) FILTER (WHERE status = $3) AS total_matched,
			COUNT(*) FILTER (WHERE status = $4) AS total_cancelled,
			COUNT(*) FILTER (WHERE status = $5) AS total_settled,
			COUNT(*) FILTER (WHERE status = $5 AND winner_id = $1) AS total_won,
			COUNT(*) FILTER (WHERE status = $5 AND winner_id IS NOT NULL AND winner_id != $1) AS total_lost,
			COALESCE(SUM(CASE WHEN creator_id = $1 THEN creator_stake ELSE opponent_stake END), 0) AS total_staked,
			COALESCE(SUM(total_value) FILTER (WHERE status = $5 AND winner_id = $1), 0) AS total_won_amount,
			COALESCE(MAX(total_value) FILTER (WHERE status = $5 AND winner_id = $1), 0) AS biggest_win,
			COALESCE(MAX(total_value) FILTER (WHERE status = $5 AND winner_id IS NOT NULL AND winner_id != $1), 0) AS biggest_loss
		FROM wagers
		WHERE creator_id = $1 OR opponent_id = $1
	`

	var stats models.WagerStats
	err := r.q.QueryRow(ctx, query, partyID,
		models.WagerStatusOpen,
		models.WagerStatusMatched,
		models.WagerStatusCancelled,
		models.WagerStatusSettled,
	).Scan(
		&stats.TotalWagers,
		&stats.TotalOpen,
		&stats.TotalMatched,
		&stats.TotalCancelled,
		&stats.TotalSettled,
		&stats.TotalWon,
		&stats.TotalLost,
		&stats.TotalStaked,
		&stats.TotalWonAmount,
		&stats.BiggestWin,
		&stats.BiggestLoss,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager stats for party %s: %w", partyID, err)
	}

	return &stats, nil
}

func collectWagers(rows pgx.Rows) ([]*models.Wager, error) {
	var wagers []*models.Wager
	for rows.Next() {
		var wager models.Wager
		err := rows.Scan(
			&wager.ID,
			&wager.CreatorID,
			&wager.OpponentID,
			&wager.Type,
			&wager.Timeframe,
			&wager.StartDate,
			&wager.EndDate,
			&wager.LeagueID,
			&wager.IsPublic,
			&wager.CreatorStake,
			&wager.OpponentStake,
			&wager.TotalValue,
			&wager.Status,
			&wager.WinnerID,
			&wager.EscrowID,
			&wager.CreatedAt,
			&wager.MatchedAt,
			&wager.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, &wager)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wagers: %w", err)
	}
	return wagers, nil
}
