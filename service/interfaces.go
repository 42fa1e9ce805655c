package service

import (
	"context"
	"time"

	"wagerbook/events"
	"wagerbook/models"
)

// PartyRepository defines the interface for party data access
type PartyRepository interface {
	// GetByID retrieves a party by its ID
	GetByID(ctx context.Context, id string) (*models.Party, error)

	// GetOrCreate retrieves an existing party or creates it
	GetOrCreate(ctx context.Context, id string, displayName string) (*models.Party, error)

	// RecordWin increments the win counters atomically
	RecordWin(ctx context.Context, id string, amount int64) error

	// RecordLoss increments the loss counters atomically
	RecordLoss(ctx context.Context, id string, amount int64) error
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create creates a new wager
	Create(ctx context.Context, wager *models.Wager) error

	// GetByID retrieves a wager by its ID
	GetByID(ctx context.Context, id int64) (*models.Wager, error)

	// GetByEscrowID retrieves the wager referencing an escrow account
	GetByEscrowID(ctx context.Context, escrowID string) (*models.Wager, error)

	// TransitionToMatched atomically moves an OPEN wager to MATCHED, binding
	// the opponent. Returns false when the wager was not OPEN anymore.
	TransitionToMatched(ctx context.Context, wagerID int64, opponentID string, opponentStake, totalValue int64, matchedAt time.Time) (bool, error)

	// TransitionToSettled atomically moves an ACTIVE or PENDING_SETTLEMENT
	// wager to SETTLED, reporting the status it left. Returns false when the
	// wager already left a settleable status.
	TransitionToSettled(ctx context.Context, wagerID int64, winnerID string, settledAt time.Time) (models.WagerStatus, bool, error)

	// TransitionToCancelled atomically moves an OPEN wager to CANCELLED.
	// Returns false when the wager was not OPEN anymore.
	TransitionToCancelled(ctx context.Context, wagerID int64) (bool, error)

	// TransitionStatus performs a generic conditional status write. Returns
	// false when the wager was not in the expected status.
	TransitionStatus(ctx context.Context, wagerID int64, from, to models.WagerStatus) (bool, error)

	// GetActiveByParty returns all non-terminal wagers involving a party
	GetActiveByParty(ctx context.Context, partyID string) ([]*models.Wager, error)

	// GetMatchedStartedBefore returns MATCHED wagers whose start date passed
	GetMatchedStartedBefore(ctx context.Context, cutoff time.Time) ([]*models.Wager, error)

	// GetActiveEndedBefore returns ACTIVE wagers whose end date passed
	GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*models.Wager, error)

	// GetStats returns wager statistics for a party
	GetStats(ctx context.Context, partyID string) (*models.WagerStats, error)
}

// WagerAssetRepository defines the interface for staked asset data access
type WagerAssetRepository interface {
	// CreateBatch inserts all asset rows for one side of a wager
	CreateBatch(ctx context.Context, assets []*models.WagerAsset) error

	// GetByWager returns all asset rows for a wager
	GetByWager(ctx context.Context, wagerID int64) ([]*models.WagerAsset, error)

	// MarkDisposed flags an asset as liquidated mid-wager
	MarkDisposed(ctx context.Context, wagerID int64, assetID string) error

	// UpdateCurrentValue records a display-only value drift
	UpdateCurrentValue(ctx context.Context, wagerID int64, assetID string, value int64) error
}

// EscrowRepository defines the interface for escrow account data access
type EscrowRepository interface {
	// Create persists a new escrow account
	Create(ctx context.Context, account *models.EscrowAccount) error

	// GetByID retrieves an escrow account
	GetByID(ctx context.Context, id string) (*models.EscrowAccount, error)

	// TransitionStatus performs a conditional status write. Returns false
	// when the account was not in any of the expected statuses.
	TransitionStatus(ctx context.Context, id string, from []models.EscrowStatus, to models.EscrowStatus, reference, reason *string) (bool, error)

	// SetOpponentAmount records the opponent side added by an escrow extend
	SetOpponentAmount(ctx context.Context, id string, amount int64, paymentRef string) error

	// SetSideFunded marks one side's payment intent as cleared
	SetSideFunded(ctx context.Context, id string, side models.WagerSide, paymentRef string) error

	// ListReleaseBacklog returns escrows of SETTLED wagers still FUNDED
	ListReleaseBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error)

	// ListRefundBacklog returns escrows of CANCELLED wagers still unresolved
	ListRefundBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error)

	// ListOrphanedBefore returns PENDING escrows older than cutoff that no
	// wager references
	ListOrphanedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.EscrowAccount, error)

	// ListExtendBacklog returns escrows of MATCHED wagers still missing the
	// opponent side
	ListExtendBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error)
}

// WagerEventRepository defines the interface for the append-only audit log
type WagerEventRepository interface {
	// Append inserts a new event row; events are never mutated or deleted
	Append(ctx context.Context, event *models.WagerEvent) error

	// ListByWager returns the event log for a wager, oldest first
	ListByWager(ctx context.Context, wagerID int64, limit int) ([]*models.WagerEvent, error)
}

// AffordabilityResult is the outcome of an affordability check
type AffordabilityResult struct {
	CanAfford bool
	Shortfall int64
}

// AffordabilityProvider reports whether a party can cover a cash amount.
// Checks have no side effects and are safe to run before any atomic write.
type AffordabilityProvider interface {
	CheckAffordability(ctx context.Context, partyID string, amount int64) (*AffordabilityResult, error)
}

// PaymentProvider is the external payment-escrow capability. Every operation
// is idempotent given the same escrow id and operation type; the provider
// deduplicates replays on its side.
type PaymentProvider interface {
	// CreateEscrow opens a provider-side escrow for the creator's funds and
	// returns the creator payment-intent reference
	CreateEscrow(ctx context.Context, escrowID, creatorID string, creatorAmount int64) (string, error)

	// ExtendEscrow adds the opponent's funds and returns the opponent
	// payment-intent reference
	ExtendEscrow(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error)

	// ReleaseEscrow pays the full escrow out to the winner and returns the
	// transfer reference
	ReleaseEscrow(ctx context.Context, escrowID, winnerID string, amount int64) (string, error)

	// RefundEscrow returns all funds to their origin and returns the refund
	// reference
	RefundEscrow(ctx context.Context, escrowID, reason string) (string, error)
}

// EscrowService coordinates escrow accounts against the payment provider.
// All operations are keyed by escrow id and idempotent under retry: replaying
// an operation whose terminal state already matches is a no-op returning the
// original result.
type EscrowService interface {
	// Create opens a PENDING escrow for the creator side, plus the opponent
	// side when the opponent is already known
	Create(ctx context.Context, creatorAmount, opponentAmount int64, creatorID string, opponentID *string) (*models.EscrowAccount, error)

	// Extend adds the opponent side to an escrow created without one
	Extend(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error)

	// ConfirmFunding marks one side's payment intent as cleared; the escrow
	// becomes FUNDED once both sides cleared
	ConfirmFunding(ctx context.Context, escrowID string, side models.WagerSide, paymentRef string) (*models.EscrowAccount, error)

	// Release transitions FUNDED -> RELEASED exactly once and pays the winner
	Release(ctx context.Context, escrowID, winnerID, reason string) (*models.EscrowAccount, error)

	// Refund transitions PENDING|FUNDED -> REFUNDED exactly once
	Refund(ctx context.Context, escrowID, reason string) (*models.EscrowAccount, error)

	// Get retrieves an escrow account
	Get(ctx context.Context, escrowID string) (*models.EscrowAccount, error)
}

// CreateWagerRequest carries everything needed to open a wager
type CreateWagerRequest struct {
	CreatorID     string
	Type          string
	Timeframe     string
	StartDate     time.Time
	EndDate       time.Time
	LeagueID      *string
	IsPublic      bool
	CreatorStake  models.StakeProposal
	OpponentID    *string
	OpponentStake *models.StakeProposal
}

// WagerService drives the wager lifecycle state machine
type WagerService interface {
	// CreateWager opens a wager in OPEN (single-sided) or MATCHED (opponent
	// and balanced stake supplied up front)
	CreateWager(ctx context.Context, req CreateWagerRequest) (*models.Wager, error)

	// AcceptWager matches an OPEN wager; exactly one concurrent acceptor wins
	AcceptWager(ctx context.Context, wagerID int64, opponentID string, proposal models.StakeProposal) (*models.Wager, error)

	// SettleWager settles an ACTIVE or PENDING_SETTLEMENT wager and releases
	// escrow to the winner
	SettleWager(ctx context.Context, wagerID int64, winnerID, performanceResult, settledBy string) (*models.SettleResult, error)

	// CancelWager cancels an OPEN wager and refunds its escrow
	CancelWager(ctx context.Context, wagerID int64, requesterID string) error

	// GetWager retrieves a wager with its assets
	GetWager(ctx context.Context, wagerID int64) (*models.Wager, []*models.WagerAsset, error)

	// GetWagerEvents returns the audit log for a wager
	GetWagerEvents(ctx context.Context, wagerID int64, limit int) ([]*models.WagerEvent, error)

	// GetActiveWagersByParty returns non-terminal wagers involving a party
	GetActiveWagersByParty(ctx context.Context, partyID string) ([]*models.Wager, error)

	// GetStats returns wager statistics for a party
	GetStats(ctx context.Context, partyID string) (*models.WagerStats, error)

	// MarkAssetDisposed flags a staked asset as liquidated mid-wager
	MarkAssetDisposed(ctx context.Context, wagerID int64, assetID string) error

	// UpdateAssetValue records a display-only current value for a staked
	// asset; the locked value is untouched
	UpdateAssetValue(ctx context.Context, wagerID int64, assetID string, currentValue int64) error

	// ActivateStartedWagers moves MATCHED wagers past their start date to
	// ACTIVE
	ActivateStartedWagers(ctx context.Context) error

	// ExpireEndedWagers moves ACTIVE wagers past their end date to
	// PENDING_SETTLEMENT
	ExpireEndedWagers(ctx context.Context) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	PartyRepository() PartyRepository
	WagerRepository() WagerRepository
	WagerAssetRepository() WagerAssetRepository
	EscrowRepository() EscrowRepository
	WagerEventRepository() WagerEventRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
