package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
)

// TestMocks bundles every mock a service test needs
type TestMocks struct {
	UOWFactory    *MockUnitOfWorkFactory
	UOW           *MockUnitOfWork
	PartyRepo     *MockPartyRepository
	WagerRepo     *MockWagerRepository
	AssetRepo     *MockWagerAssetRepository
	EscrowRepo    *MockEscrowRepository
	EventRepo     *MockWagerEventRepository
	Publisher     *MockEventPublisher
	Affordability *MockAffordabilityProvider
	Provider      *MockPaymentProvider
	EscrowSvc     *MockEscrowService
}

// NewTestMocks wires a factory that always hands out the same unit of work,
// with Begin, Commit and Rollback permitted any number of times. Repository
// getters resolve to the bundled mocks.
func NewTestMocks(t *testing.T) *TestMocks {
	m := &TestMocks{
		UOWFactory:    new(MockUnitOfWorkFactory),
		UOW:           new(MockUnitOfWork),
		PartyRepo:     new(MockPartyRepository),
		WagerRepo:     new(MockWagerRepository),
		AssetRepo:     new(MockWagerAssetRepository),
		EscrowRepo:    new(MockEscrowRepository),
		EventRepo:     new(MockWagerEventRepository),
		Publisher:     new(MockEventPublisher),
		Affordability: new(MockAffordabilityProvider),
		Provider:      new(MockPaymentProvider),
		EscrowSvc:     new(MockEscrowService),
	}

	m.UOWFactory.On("Create").Return(m.UOW).Maybe()
	m.UOW.On("Begin", mock.Anything).Return(nil).Maybe()
	m.UOW.On("Commit").Return(nil).Maybe()
	m.UOW.On("Rollback").Return(nil).Maybe()
	m.UOW.On("PartyRepository").Return(m.PartyRepo).Maybe()
	m.UOW.On("WagerRepository").Return(m.WagerRepo).Maybe()
	m.UOW.On("WagerAssetRepository").Return(m.AssetRepo).Maybe()
	m.UOW.On("EscrowRepository").Return(m.EscrowRepo).Maybe()
	m.UOW.On("WagerEventRepository").Return(m.EventRepo).Maybe()
	m.UOW.On("EventBus").Return(m.Publisher).Maybe()

	t.Cleanup(func() {
		m.WagerRepo.AssertExpectations(t)
		m.PartyRepo.AssertExpectations(t)
		m.AssetRepo.AssertExpectations(t)
		m.EscrowRepo.AssertExpectations(t)
		m.EventRepo.AssertExpectations(t)
		m.Affordability.AssertExpectations(t)
		m.Provider.AssertExpectations(t)
		m.EscrowSvc.AssertExpectations(t)
	})

	return m
}

// AllowEvents permits event appends and bus publishes without asserting them
func (m *TestMocks) AllowEvents() {
	m.EventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.Publisher.On("Publish", mock.Anything).Maybe()
}

// CanAfford stubs an approving affordability check for a party
func (m *TestMocks) CanAfford(partyID string) {
	m.Affordability.On("CheckAffordability", mock.Anything, partyID, mock.Anything).
		Return(&AffordabilityResult{CanAfford: true}, nil)
}

var testCtx = context.Background()
