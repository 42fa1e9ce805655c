package escrowpay

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// FakeProvider is an in-memory payment provider for development and tests.
// It mirrors the idempotency contract of the real provider: repeating an
// operation for the same escrow id returns the original reference.
type FakeProvider struct {
	mu      sync.Mutex
	escrows map[string]*fakeEscrow

	// FailNext, when set, makes the next operation fail once. Used by tests
	// to exercise reconciler paths.
	FailNext bool
}

type fakeEscrow struct {
	creatorRef  string
	opponentRef string
	releaseRef  string
	refundRef   string
	amount      int64
}

// NewFakeProvider creates an in-memory payment provider
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{escrows: make(map[string]*fakeEscrow)}
}

func (p *FakeProvider) failIfRequested(op string) error {
	if p.FailNext {
		p.FailNext = false
		return fmt.Errorf("injected %s failure", op)
	}
	return nil
}

// CreateEscrow opens a fake hold on the creator's funds
func (p *FakeProvider) CreateEscrow(ctx context.Context, escrowID, creatorID string, creatorAmount int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failIfRequested("create"); err != nil {
		return "", err
	}

	if e, ok := p.escrows[escrowID]; ok {
		return e.creatorRef, nil
	}

	e := &fakeEscrow{
		creatorRef: fmt.Sprintf("fake_pi_%s_creator", escrowID),
		amount:     creatorAmount,
	}
	p.escrows[escrowID] = e

	log.WithFields(log.Fields{
		"escrowID": escrowID,
		"amount":   creatorAmount,
	}).Debug("Fake escrow created")
	return e.creatorRef, nil
}

// ExtendEscrow adds a fake hold on the opponent's funds
func (p *FakeProvider) ExtendEscrow(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failIfRequested("extend"); err != nil {
		return "", err
	}

	e, ok := p.escrows[escrowID]
	if !ok {
		return "", fmt.Errorf("escrow %s not found", escrowID)
	}
	if e.opponentRef != "" {
		return e.opponentRef, nil
	}

	e.opponentRef = fmt.Sprintf("fake_pi_%s_opponent", escrowID)
	e.amount += opponentAmount
	return e.opponentRef, nil
}

// ReleaseEscrow pays the fake pot to the winner
func (p *FakeProvider) ReleaseEscrow(ctx context.Context, escrowID, winnerID string, amount int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failIfRequested("release"); err != nil {
		return "", err
	}

	e, ok := p.escrows[escrowID]
	if !ok {
		return "", fmt.Errorf("escrow %s not found", escrowID)
	}
	if e.refundRef != "" {
		return "", fmt.Errorf("escrow %s already refunded", escrowID)
	}
	if e.releaseRef != "" {
		return e.releaseRef, nil
	}

	e.releaseRef = fmt.Sprintf("fake_tr_%s_%s", escrowID, winnerID)
	return e.releaseRef, nil
}

// RefundEscrow returns the fake funds to their origin
func (p *FakeProvider) RefundEscrow(ctx context.Context, escrowID, reason string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failIfRequested("refund"); err != nil {
		return "", err
	}

	e, ok := p.escrows[escrowID]
	if !ok {
		return "", fmt.Errorf("escrow %s not found", escrowID)
	}
	if e.releaseRef != "" {
		return "", fmt.Errorf("escrow %s already released", escrowID)
	}
	if e.refundRef != "" {
		return e.refundRef, nil
	}

	e.refundRef = fmt.Sprintf("fake_re_%s", escrowID)
	return e.refundRef, nil
}
