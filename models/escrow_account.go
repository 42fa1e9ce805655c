package models

import "time"

// EscrowStatus represents the status of an escrow account
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "PENDING"
	EscrowStatusFunded   EscrowStatus = "FUNDED"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
)

// IsTerminal reports whether the escrow has been resolved
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded
}

// EscrowAccount holds both parties' funds until settlement or cancellation.
// Exactly one wager references each account; the id doubles as the
// idempotency key for every provider operation.
type EscrowAccount struct {
	ID                 string       `db:"id"`
	CreatorAmount      int64        `db:"creator_amount"`
	OpponentAmount     int64        `db:"opponent_amount"`
	TotalAmount        int64        `db:"total_amount"`
	Status             EscrowStatus `db:"status"`
	CreatorFunded      bool         `db:"creator_funded"`
	OpponentFunded     bool         `db:"opponent_funded"`
	CreatorPaymentRef  *string      `db:"creator_payment_ref"`
	OpponentPaymentRef *string      `db:"opponent_payment_ref"`
	ReleaseRef         *string      `db:"release_ref"`
	ResolutionReason   *string      `db:"resolution_reason"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}
