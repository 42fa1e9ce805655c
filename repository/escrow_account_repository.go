package repository

import (
	"context"
	"fmt"
	"time"

	"wagerbook/database"
	"wagerbook/models"

	"github.com/jackc/pgx/v5"
)

const escrowColumns = `
	id, creator_amount, opponent_amount, total_amount, status,
	creator_funded, opponent_funded, creator_payment_ref, opponent_payment_ref,
	release_ref, resolution_reason, created_at, updated_at
`

// EscrowRepository implements escrow account data access
type EscrowRepository struct {
	q Queryable
}

// NewEscrowRepository creates a new escrow repository
func NewEscrowRepository(db *database.DB) *EscrowRepository {
	return &EscrowRepository{q: db.Pool}
}

// newEscrowRepositoryWithTx creates a new escrow repository with a transaction
func newEscrowRepositoryWithTx(tx Queryable) *EscrowRepository {
	return &EscrowRepository{q: tx}
}

// Create persists a new escrow account
func (r *EscrowRepository) Create(ctx context.Context, account *models.EscrowAccount) error {
	query := `
		INSERT INTO escrow_accounts (
			id, creator_amount, opponent_amount, total_amount, status,
			creator_payment_ref
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.ID,
		account.CreatorAmount,
		account.OpponentAmount,
		account.TotalAmount,
		account.Status,
		account.CreatorPaymentRef,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create escrow account: %w", err)
	}

	return nil
}

// GetByID retrieves an escrow account
func (r *EscrowRepository) GetByID(ctx context.Context, id string) (*models.EscrowAccount, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_accounts WHERE id = $1`

	account, err := scanEscrow(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow account %s: %w", id, err)
	}
	return account, nil
}

// TransitionStatus performs a conditional status write. The WHERE guard makes
// terminal transitions happen at most once; a replay or a concurrent loser
// sees RowsAffected == 0.
func (r *EscrowRepository) TransitionStatus(ctx context.Context, id string, from []models.EscrowStatus, to models.EscrowStatus, reference, reason *string) (bool, error) {
	query := `
		UPDATE escrow_accounts
		SET status = $2,
		    release_ref = COALESCE($3, release_ref),
		    resolution_reason = COALESCE($4, resolution_reason),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
	`

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	tag, err := r.q.Exec(ctx, query, id, to, reference, reason, statuses)
	if err != nil {
		return false, fmt.Errorf("failed to transition escrow %s to %s: %w", id, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetOpponentAmount records the opponent side added by an escrow extend
func (r *EscrowRepository) SetOpponentAmount(ctx context.Context, id string, amount int64, paymentRef string) error {
	query := `
		UPDATE escrow_accounts
		SET opponent_amount = $2,
		    total_amount = creator_amount + $2,
		    opponent_payment_ref = $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, id, amount, paymentRef)
	if err != nil {
		return fmt.Errorf("failed to set opponent amount on escrow %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("escrow account %s not found", id)
	}
	return nil
}

// SetSideFunded marks one side's payment intent as cleared
func (r *EscrowRepository) SetSideFunded(ctx context.Context, id string, side models.WagerSide, paymentRef string) error {
	column := "creator_funded"
	refColumn := "creator_payment_ref"
	if side == models.SideOpponent {
		column = "opponent_funded"
		refColumn = "opponent_payment_ref"
	}

	query := fmt.Sprintf(`
		UPDATE escrow_accounts
		SET %s = TRUE, %s = COALESCE($2, %s), updated_at = NOW()
		WHERE id = $1
	`, column, refColumn, refColumn)

	var ref *string
	if paymentRef != "" {
		ref = &paymentRef
	}

	tag, err := r.q.Exec(ctx, query, id, ref)
	if err != nil {
		return fmt.Errorf("failed to mark %s side funded on escrow %s: %w", side, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("escrow account %s not found", id)
	}
	return nil
}

// ListReleaseBacklog returns escrows of SETTLED wagers still FUNDED
func (r *EscrowRepository) ListReleaseBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error) {
	query := `
		SELECT ` + prefixedEscrowColumns("e") + `
		FROM escrow_accounts e
		JOIN wagers w ON w.escrow_id = e.id
		WHERE w.status = $1 AND e.status = $2
		ORDER BY e.updated_at ASC
		LIMIT $3
	`

	return r.list(ctx, query, models.WagerStatusSettled, models.EscrowStatusFunded, limit)
}

// ListRefundBacklog returns escrows of CANCELLED wagers still unresolved
func (r *EscrowRepository) ListRefundBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error) {
	query := `
		SELECT ` + prefixedEscrowColumns("e") + `
		FROM escrow_accounts e
		JOIN wagers w ON w.escrow_id = e.id
		WHERE w.status = $1 AND e.status IN ($2, $3)
		ORDER BY e.updated_at ASC
		LIMIT $4
	`

	return r.list(ctx, query, models.WagerStatusCancelled, models.EscrowStatusPending, models.EscrowStatusFunded, limit)
}

// ListOrphanedBefore returns PENDING escrows older than cutoff that no wager
// references. These are leftovers of wager creations that failed after the
// escrow was opened.
func (r *EscrowRepository) ListOrphanedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.EscrowAccount, error) {
	query := `
		SELECT ` + prefixedEscrowColumns("e") + `
		FROM escrow_accounts e
		LEFT JOIN wagers w ON w.escrow_id = e.id
		WHERE w.id IS NULL AND e.status = $1 AND e.created_at < $2
		ORDER BY e.created_at ASC
		LIMIT $3
	`

	return r.list(ctx, query, models.EscrowStatusPending, cutoff, limit)
}

// ListExtendBacklog returns escrows of MATCHED wagers still missing the
// opponent side
func (r *EscrowRepository) ListExtendBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error) {
	query := `
		SELECT ` + prefixedEscrowColumns("e") + `
		FROM escrow_accounts e
		JOIN wagers w ON w.escrow_id = e.id
		WHERE w.status = $1 AND w.opponent_stake > 0 AND e.opponent_amount = 0
		ORDER BY e.updated_at ASC
		LIMIT $2
	`

	return r.list(ctx, query, models.WagerStatusMatched, limit)
}

func (r *EscrowRepository) list(ctx context.Context, query string, args ...any) ([]*models.EscrowAccount, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrow accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.EscrowAccount
	for rows.Next() {
		account, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escrow account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escrow accounts: %w", err)
	}

	return accounts, nil
}

func scanEscrow(row pgx.Row) (*models.EscrowAccount, error) {
	var account models.EscrowAccount
	err := row.Scan(
		&account.ID,
		&account.CreatorAmount,
		&account.OpponentAmount,
		&account.TotalAmount,
		&account.Status,
		&account.CreatorFunded,
		&account.OpponentFunded,
		&account.CreatorPaymentRef,
		&account.OpponentPaymentRef,
		&account.ReleaseRef,
		&account.ResolutionReason,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func prefixedEscrowColumns(alias string) string {
	return fmt.Sprintf(`
		%[1]s.id, %[1]s.creator_amount, %[1]s.opponent_amount, %[1]s.total_amount, %[1]s.status,
		%[1]s.creator_funded, %[1]s.opponent_funded, %[1]s.creator_payment_ref, %[1]s.opponent_payment_ref,
		%[1]s.release_ref, %[1]s.resolution_reason, %[1]s.created_at, %[1]s.updated_at
	`, alias)
}
