package service

import (
	"context"
	"time"

	"wagerbook/events"
	"wagerbook/models"

	"github.com/stretchr/testify/mock"
)

// MockPartyRepository is a mock implementation of PartyRepository
type MockPartyRepository struct {
	mock.Mock
}

func (m *MockPartyRepository) GetByID(ctx context.Context, id string) (*models.Party, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Party), args.Error(1)
}

func (m *MockPartyRepository) GetOrCreate(ctx context.Context, id string, displayName string) (*models.Party, error) {
	args := m.Called(ctx, id, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Party), args.Error(1)
}

func (m *MockPartyRepository) RecordWin(ctx context.Context, id string, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockPartyRepository) RecordLoss(ctx context.Context, id string, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

// MockWagerRepository is a mock implementation of WagerRepository
type MockWagerRepository struct {
	mock.Mock
}

func (m *MockWagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	args := m.Called(ctx, wager)
	return args.Error(0)
}

func (m *MockWagerRepository) GetByID(ctx context.Context, id int64) (*models.Wager, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetByEscrowID(ctx context.Context, escrowID string) (*models.Wager, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) TransitionToMatched(ctx context.Context, wagerID int64, opponentID string, opponentStake, totalValue int64, matchedAt time.Time) (bool, error) {
	args := m.Called(ctx, wagerID, opponentID, opponentStake, totalValue, matchedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockWagerRepository) TransitionToSettled(ctx context.Context, wagerID int64, winnerID string, settledAt time.Time) (models.WagerStatus, bool, error) {
	args := m.Called(ctx, wagerID, winnerID, settledAt)
	return args.Get(0).(models.WagerStatus), args.Bool(1), args.Error(2)
}

func (m *MockWagerRepository) TransitionToCancelled(ctx context.Context, wagerID int64) (bool, error) {
	args := m.Called(ctx, wagerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWagerRepository) TransitionStatus(ctx context.Context, wagerID int64, from, to models.WagerStatus) (bool, error) {
	args := m.Called(ctx, wagerID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockWagerRepository) GetActiveByParty(ctx context.Context, partyID string) ([]*models.Wager, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetMatchedStartedBefore(ctx context.Context, cutoff time.Time) ([]*models.Wager, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*models.Wager, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) GetStats(ctx context.Context, partyID string) (*models.WagerStats, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerStats), args.Error(1)
}

// MockWagerAssetRepository is a mock implementation of WagerAssetRepository
type MockWagerAssetRepository struct {
	mock.Mock
}

func (m *MockWagerAssetRepository) CreateBatch(ctx context.Context, assets []*models.WagerAsset) error {
	args := m.Called(ctx, assets)
	return args.Error(0)
}

func (m *MockWagerAssetRepository) GetByWager(ctx context.Context, wagerID int64) ([]*models.WagerAsset, error) {
	args := m.Called(ctx, wagerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WagerAsset), args.Error(1)
}

func (m *MockWagerAssetRepository) MarkDisposed(ctx context.Context, wagerID int64, assetID string) error {
	args := m.Called(ctx, wagerID, assetID)
	return args.Error(0)
}

func (m *MockWagerAssetRepository) UpdateCurrentValue(ctx context.Context, wagerID int64, assetID string, value int64) error {
	args := m.Called(ctx, wagerID, assetID, value)
	return args.Error(0)
}

// MockEscrowRepository is a mock implementation of EscrowRepository
type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) Create(ctx context.Context, account *models.EscrowAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockEscrowRepository) GetByID(ctx context.Context, id string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowRepository) TransitionStatus(ctx context.Context, id string, from []models.EscrowStatus, to models.EscrowStatus, reference, reason *string) (bool, error) {
	args := m.Called(ctx, id, from, to, reference, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockEscrowRepository) SetOpponentAmount(ctx context.Context, id string, amount int64, paymentRef string) error {
	args := m.Called(ctx, id, amount, paymentRef)
	return args.Error(0)
}

func (m *MockEscrowRepository) SetSideFunded(ctx context.Context, id string, side models.WagerSide, paymentRef string) error {
	args := m.Called(ctx, id, side, paymentRef)
	return args.Error(0)
}

func (m *MockEscrowRepository) ListReleaseBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowRepository) ListRefundBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowRepository) ListOrphanedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.EscrowAccount, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowRepository) ListExtendBacklog(ctx context.Context, limit int) ([]*models.EscrowAccount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EscrowAccount), args.Error(1)
}

// MockWagerEventRepository is a mock implementation of WagerEventRepository
type MockWagerEventRepository struct {
	mock.Mock
}

func (m *MockWagerEventRepository) Append(ctx context.Context, event *models.WagerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWagerEventRepository) ListByWager(ctx context.Context, wagerID int64, limit int) ([]*models.WagerEvent, error) {
	args := m.Called(ctx, wagerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WagerEvent), args.Error(1)
}

// MockAffordabilityProvider is a mock implementation of AffordabilityProvider
type MockAffordabilityProvider struct {
	mock.Mock
}

func (m *MockAffordabilityProvider) CheckAffordability(ctx context.Context, partyID string, amount int64) (*AffordabilityResult, error) {
	args := m.Called(ctx, partyID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AffordabilityResult), args.Error(1)
}

// MockPaymentProvider is a mock implementation of PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) CreateEscrow(ctx context.Context, escrowID, creatorID string, creatorAmount int64) (string, error) {
	args := m.Called(ctx, escrowID, creatorID, creatorAmount)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProvider) ExtendEscrow(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error) {
	args := m.Called(ctx, escrowID, opponentID, opponentAmount)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProvider) ReleaseEscrow(ctx context.Context, escrowID, winnerID string, amount int64) (string, error) {
	args := m.Called(ctx, escrowID, winnerID, amount)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProvider) RefundEscrow(ctx context.Context, escrowID, reason string) (string, error) {
	args := m.Called(ctx, escrowID, reason)
	return args.String(0), args.Error(1)
}

// MockEscrowService is a mock implementation of EscrowService
type MockEscrowService struct {
	mock.Mock
}

func (m *MockEscrowService) Create(ctx context.Context, creatorAmount, opponentAmount int64, creatorID string, opponentID *string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, creatorAmount, opponentAmount, creatorID, opponentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowService) Extend(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error) {
	args := m.Called(ctx, escrowID, opponentID, opponentAmount)
	return args.String(0), args.Error(1)
}

func (m *MockEscrowService) ConfirmFunding(ctx context.Context, escrowID string, side models.WagerSide, paymentRef string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, escrowID, side, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowService) Release(ctx context.Context, escrowID, winnerID, reason string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, escrowID, winnerID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowService) Refund(ctx context.Context, escrowID, reason string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, escrowID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowService) Get(ctx context.Context, escrowID string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, escrowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) PartyRepository() PartyRepository {
	args := m.Called()
	return args.Get(0).(PartyRepository)
}

func (m *MockUnitOfWork) WagerRepository() WagerRepository {
	args := m.Called()
	return args.Get(0).(WagerRepository)
}

func (m *MockUnitOfWork) WagerAssetRepository() WagerAssetRepository {
	args := m.Called()
	return args.Get(0).(WagerAssetRepository)
}

func (m *MockUnitOfWork) EscrowRepository() EscrowRepository {
	args := m.Called()
	return args.Get(0).(EscrowRepository)
}

func (m *MockUnitOfWork) WagerEventRepository() WagerEventRepository {
	args := m.Called()
	return args.Get(0).(WagerEventRepository)
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	args := m.Called()
	return args.Get(0).(EventPublisher)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockWagerService is a mock implementation of WagerService
type MockWagerService struct {
	mock.Mock
}

func (m *MockWagerService) CreateWager(ctx context.Context, req CreateWagerRequest) (*models.Wager, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wager), args.Error(1)
}

func (m *MockWagerService) AcceptWager(ctx context.Context, wagerID int64, opponentID string, proposal models.StakeProposal) (*models.Wager, error) {
	args := m.Called(ctx, wagerID, opponentID, proposal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wager), args.Error(1)
}

func (m *MockWagerService) SettleWager(ctx context.Context, wagerID int64, winnerID, performanceResult, settledBy string) (*models.SettleResult, error) {
	args := m.Called(ctx, wagerID, winnerID, performanceResult, settledBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettleResult), args.Error(1)
}

func (m *MockWagerService) CancelWager(ctx context.Context, wagerID int64, requesterID string) error {
	args := m.Called(ctx, wagerID, requesterID)
	return args.Error(0)
}

func (m *MockWagerService) GetWager(ctx context.Context, wagerID int64) (*models.Wager, []*models.WagerAsset, error) {
	args := m.Called(ctx, wagerID)
	var wager *models.Wager
	if args.Get(0) != nil {
		wager = args.Get(0).(*models.Wager)
	}
	var assets []*models.WagerAsset
	if args.Get(1) != nil {
		assets = args.Get(1).([]*models.WagerAsset)
	}
	return wager, assets, args.Error(2)
}

func (m *MockWagerService) GetWagerEvents(ctx context.Context, wagerID int64, limit int) ([]*models.WagerEvent, error) {
	args := m.Called(ctx, wagerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WagerEvent), args.Error(1)
}

func (m *MockWagerService) GetActiveWagersByParty(ctx context.Context, partyID string) ([]*models.Wager, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerService) GetStats(ctx context.Context, partyID string) (*models.WagerStats, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerStats), args.Error(1)
}

func (m *MockWagerService) MarkAssetDisposed(ctx context.Context, wagerID int64, assetID string) error {
	args := m.Called(ctx, wagerID, assetID)
	return args.Error(0)
}

func (m *MockWagerService) UpdateAssetValue(ctx context.Context, wagerID int64, assetID string, currentValue int64) error {
	args := m.Called(ctx, wagerID, assetID, currentValue)
	return args.Error(0)
}

func (m *MockWagerService) ActivateStartedWagers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockWagerService) ExpireEndedWagers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
