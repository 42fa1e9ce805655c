package models

import (
	"time"
)

// WagerStatus represents the status of a wager
type WagerStatus string

const (
	WagerStatusOpen              WagerStatus = "OPEN"
	WagerStatusMatched           WagerStatus = "MATCHED"
	WagerStatusActive            WagerStatus = "ACTIVE"
	WagerStatusPendingSettlement WagerStatus = "PENDING_SETTLEMENT"
	WagerStatusSettled           WagerStatus = "SETTLED"
	WagerStatusCancelled         WagerStatus = "CANCELLED"
)

// validTransitions enumerates every legal status transition. Anything not
// listed here is rejected by the lifecycle engine.
var validTransitions = map[WagerStatus][]WagerStatus{
	WagerStatusOpen:              {WagerStatusMatched, WagerStatusCancelled},
	WagerStatusMatched:           {WagerStatusActive},
	WagerStatusActive:            {WagerStatusPendingSettlement, WagerStatusSettled},
	WagerStatusPendingSettlement: {WagerStatusSettled},
}

// CanTransitionTo reports whether moving from s to next is a legal transition
func (s WagerStatus) CanTransitionTo(next WagerStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is final
func (s WagerStatus) IsTerminal() bool {
	return s == WagerStatusSettled || s == WagerStatusCancelled
}

// Wager represents a head-to-head wager between two parties
type Wager struct {
	ID            int64       `db:"id"`
	CreatorID     string      `db:"creator_id"`
	OpponentID    *string     `db:"opponent_id"`
	Type          string      `db:"type"`
	Timeframe     string      `db:"timeframe"`
	StartDate     time.Time   `db:"start_date"`
	EndDate       time.Time   `db:"end_date"`
	LeagueID      *string     `db:"league_id"`
	IsPublic      bool        `db:"is_public"`
	CreatorStake  int64       `db:"creator_stake"`
	OpponentStake int64       `db:"opponent_stake"`
	TotalValue    int64       `db:"total_value"`
	Status        WagerStatus `db:"status"`
	WinnerID      *string     `db:"winner_id"`
	EscrowID      string      `db:"escrow_id"`
	CreatedAt     time.Time   `db:"created_at"`
	MatchedAt     *time.Time  `db:"matched_at"`
	SettledAt     *time.Time  `db:"settled_at"`
}

// IsParticipant checks if a party is involved in the wager
func (w *Wager) IsParticipant(partyID string) bool {
	if w.CreatorID == partyID {
		return true
	}
	return w.OpponentID != nil && *w.OpponentID == partyID
}

// Opponent returns the other participant for a given party, or "" if the
// party is not a participant or no opponent has matched yet
func (w *Wager) Opponent(partyID string) string {
	if w.OpponentID == nil {
		return ""
	}
	if w.CreatorID == partyID {
		return *w.OpponentID
	}
	if *w.OpponentID == partyID {
		return w.CreatorID
	}
	return ""
}

// CanBeAccepted checks if the wager is open for acceptance by the given party
func (w *Wager) CanBeAccepted(partyID string) bool {
	return w.Status == WagerStatusOpen && w.CreatorID != partyID
}

// CanBeCancelled checks if the wager can be cancelled by the given party
func (w *Wager) CanBeCancelled(partyID string) bool {
	return w.Status == WagerStatusOpen && w.CreatorID == partyID
}

// IsSettleable reports whether the wager may enter settlement
func (w *Wager) IsSettleable() bool {
	return w.Status == WagerStatusActive || w.Status == WagerStatusPendingSettlement
}

// SettleResult represents the outcome of settling a wager
type SettleResult struct {
	Wager             *Wager
	WinnerID          string
	LoserID           string
	AmountReleased    int64
	PerformanceResult string
	EscrowReleased    bool
}

// WagerStats represents wager statistics for a party
type WagerStats struct {
	TotalWagers    int   `db:"total_wagers"`
	TotalOpen      int   `db:"total_open"`
	TotalMatched   int   `db:"total_matched"`
	TotalCancelled int   `db:"total_cancelled"`
	TotalSettled   int   `db:"total_settled"`
	TotalWon       int   `db:"total_won"`
	TotalLost      int   `db:"total_lost"`
	TotalStaked    int64 `db:"total_staked"`
	TotalWonAmount int64 `db:"total_won_amount"`
	BiggestWin     int64 `db:"biggest_win"`
	BiggestLoss    int64 `db:"biggest_loss"`
}
