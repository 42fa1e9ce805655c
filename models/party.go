package models

import "time"

// Party represents one side of a wager. Win/loss aggregates are monotonic
// counters incremented inside the settlement transaction.
type Party struct {
	ID          string    `db:"id"`
	DisplayName string    `db:"display_name"`
	Wins        int64     `db:"wins"`
	Losses      int64     `db:"losses"`
	TotalWon    int64     `db:"total_won"`
	TotalLost   int64     `db:"total_lost"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
