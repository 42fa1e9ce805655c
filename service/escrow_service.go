package service

import (
	"context"
	"fmt"

	"wagerbook/events"
	"wagerbook/metrics"
	"wagerbook/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type escrowService struct {
	uowFactory UnitOfWorkFactory
	provider   PaymentProvider
}

// NewEscrowService creates a new escrow coordinator
func NewEscrowService(uowFactory UnitOfWorkFactory, provider PaymentProvider) EscrowService {
	return &escrowService{
		uowFactory: uowFactory,
		provider:   provider,
	}
}

// Create opens a provider-side escrow and persists the PENDING account row.
// The generated account id is the idempotency key for every later operation.
// If persisting fails after the provider call, the provider funds are
// refunded; escrows that slip through anyway are swept by the reconciler.
func (s *escrowService) Create(ctx context.Context, creatorAmount, opponentAmount int64, creatorID string, opponentID *string) (*models.EscrowAccount, error) {
	if creatorAmount < 0 || opponentAmount < 0 {
		return nil, &ValidationError{Field: "escrow amount", Reason: "amounts cannot be negative"}
	}
	if creatorID == "" {
		return nil, &ValidationError{Field: "creator", Reason: "creator id is required"}
	}

	escrowID := uuid.NewString()

	creatorRef, err := s.provider.CreateEscrow(ctx, escrowID, creatorID, creatorAmount)
	if err != nil {
		metrics.EscrowOperations.WithLabelValues("create", "provider_error").Inc()
		return nil, fmt.Errorf("failed to create provider escrow: %w", err)
	}

	account := &models.EscrowAccount{
		ID:                escrowID,
		CreatorAmount:     creatorAmount,
		TotalAmount:       creatorAmount,
		Status:            models.EscrowStatusPending,
		CreatorPaymentRef: &creatorRef,
	}

	if opponentID != nil && opponentAmount > 0 {
		opponentRef, err := s.provider.ExtendEscrow(ctx, escrowID, *opponentID, opponentAmount)
		if err != nil {
			s.compensate(ctx, escrowID, "opponent intent creation failed")
			metrics.EscrowOperations.WithLabelValues("create", "provider_error").Inc()
			return nil, fmt.Errorf("failed to create opponent payment intent: %w", err)
		}
		account.OpponentAmount = opponentAmount
		account.TotalAmount = creatorAmount + opponentAmount
		account.OpponentPaymentRef = &opponentRef
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		s.compensate(ctx, escrowID, "escrow record creation failed")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.EscrowRepository().Create(ctx, account); err != nil {
		s.compensate(ctx, escrowID, "escrow record creation failed")
		return nil, fmt.Errorf("failed to persist escrow account: %w", err)
	}

	if err := uow.Commit(); err != nil {
		s.compensate(ctx, escrowID, "escrow record creation failed")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.EscrowOperations.WithLabelValues("create", "ok").Inc()
	return account, nil
}

// Extend adds the opponent side to an escrow created without one. Replaying
// an extend that already happened returns the original payment reference.
func (s *escrowService) Extend(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error) {
	if opponentAmount <= 0 {
		return "", &ValidationError{Field: "opponent amount", Reason: "must be positive"}
	}

	account, err := s.Get(ctx, escrowID)
	if err != nil {
		return "", err
	}
	if account.Status.IsTerminal() {
		return "", fmt.Errorf("escrow %s is already %s: %w", escrowID, account.Status, ErrEscrowConflict)
	}
	if account.OpponentPaymentRef != nil {
		// Idempotent replay
		return *account.OpponentPaymentRef, nil
	}

	ref, err := s.provider.ExtendEscrow(ctx, escrowID, opponentID, opponentAmount)
	if err != nil {
		metrics.EscrowOperations.WithLabelValues("extend", "provider_error").Inc()
		return "", fmt.Errorf("failed to extend provider escrow: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.EscrowRepository().SetOpponentAmount(ctx, escrowID, opponentAmount, ref); err != nil {
		return "", fmt.Errorf("failed to record escrow extension: %w", err)
	}

	// A creator-only escrow funds on the creator's intent alone. Adding a
	// side re-gates funding until the opponent's intent clears.
	if account.Status == models.EscrowStatusFunded {
		if _, err := uow.EscrowRepository().TransitionStatus(ctx, escrowID,
			[]models.EscrowStatus{models.EscrowStatusFunded}, models.EscrowStatusPending, nil, nil); err != nil {
			return "", fmt.Errorf("failed to reopen escrow funding: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.EscrowOperations.WithLabelValues("extend", "ok").Inc()
	return ref, nil
}

// ConfirmFunding marks one side's payment intent as cleared. The account
// moves PENDING -> FUNDED once every existing side has cleared.
func (s *escrowService) ConfirmFunding(ctx context.Context, escrowID string, side models.WagerSide, paymentRef string) (*models.EscrowAccount, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	if account == nil {
		return nil, ErrEscrowNotFound
	}
	if account.Status.IsTerminal() {
		return nil, fmt.Errorf("escrow %s is already %s: %w", escrowID, account.Status, ErrEscrowConflict)
	}

	if err := uow.EscrowRepository().SetSideFunded(ctx, escrowID, side, paymentRef); err != nil {
		return nil, fmt.Errorf("failed to mark side funded: %w", err)
	}

	account, err = uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload escrow: %w", err)
	}

	// An escrow without an opponent side yet is fully funded once the
	// creator's intent clears; the opponent side gets its own confirmation
	// after the extend.
	funded := account.CreatorFunded && (account.OpponentAmount == 0 || account.OpponentFunded)
	if funded && account.Status == models.EscrowStatusPending {
		ok, err := uow.EscrowRepository().TransitionStatus(ctx, escrowID,
			[]models.EscrowStatus{models.EscrowStatusPending}, models.EscrowStatusFunded, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to mark escrow funded: %w", err)
		}
		if ok {
			account.Status = models.EscrowStatusFunded
			s.appendPaymentEvent(ctx, uow, account, paymentRef, "escrow fully funded")
			uow.EventBus().Publish(events.EscrowUpdatedEvent{
				EscrowID:  escrowID,
				OldStatus: models.EscrowStatusPending,
				NewStatus: models.EscrowStatusFunded,
				Reference: paymentRef,
			})
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.EscrowOperations.WithLabelValues("confirm_funding", "ok").Inc()
	return account, nil
}

// Release pays the full escrow out to the winner, exactly once. A replay
// against an already RELEASED account returns the stored result without
// touching the provider; a REFUNDED account is a consistency fault.
func (s *escrowService) Release(ctx context.Context, escrowID, winnerID, reason string) (*models.EscrowAccount, error) {
	account, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	switch account.Status {
	case models.EscrowStatusReleased:
		metrics.EscrowOperations.WithLabelValues("release", "replay").Inc()
		return account, nil
	case models.EscrowStatusRefunded:
		return nil, fmt.Errorf("escrow %s was refunded, cannot release: %w", escrowID, ErrEscrowConflict)
	case models.EscrowStatusFunded:
		// FUNDED alone is not enough: an extend may have added a side after
		// the creator-only escrow funded. Every existing side must have
		// cleared before money moves.
		if !account.CreatorFunded || (account.OpponentAmount > 0 && !account.OpponentFunded) {
			return nil, fmt.Errorf("escrow %s has an unconfirmed side, cannot release", escrowID)
		}
	default:
		return nil, fmt.Errorf("escrow %s is not funded (status %s)", escrowID, account.Status)
	}

	// The provider deduplicates by escrow id, so a racing duplicate call is
	// a provider-side no-op; the conditional write below decides the winner.
	transferRef, err := s.provider.ReleaseEscrow(ctx, escrowID, winnerID, account.TotalAmount)
	if err != nil {
		metrics.EscrowOperations.WithLabelValues("release", "provider_error").Inc()
		return nil, fmt.Errorf("failed to release provider escrow: %w", err)
	}

	return s.finalize(ctx, escrowID,
		[]models.EscrowStatus{models.EscrowStatusFunded}, models.EscrowStatusReleased,
		transferRef, reason, "release")
}

// Refund returns all funds to their origin, exactly once, from PENDING or
// FUNDED. Same replay semantics as Release.
func (s *escrowService) Refund(ctx context.Context, escrowID, reason string) (*models.EscrowAccount, error) {
	account, err := s.Get(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	switch account.Status {
	case models.EscrowStatusRefunded:
		metrics.EscrowOperations.WithLabelValues("refund", "replay").Inc()
		return account, nil
	case models.EscrowStatusReleased:
		return nil, fmt.Errorf("escrow %s was released, cannot refund: %w", escrowID, ErrEscrowConflict)
	}

	refundRef, err := s.provider.RefundEscrow(ctx, escrowID, reason)
	if err != nil {
		metrics.EscrowOperations.WithLabelValues("refund", "provider_error").Inc()
		return nil, fmt.Errorf("failed to refund provider escrow: %w", err)
	}

	return s.finalize(ctx, escrowID,
		[]models.EscrowStatus{models.EscrowStatusPending, models.EscrowStatusFunded}, models.EscrowStatusRefunded,
		refundRef, reason, "refund")
}

// Get retrieves an escrow account
func (s *escrowService) Get(ctx context.Context, escrowID string) (*models.EscrowAccount, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	if account == nil {
		return nil, ErrEscrowNotFound
	}
	return account, nil
}

// finalize performs the conditional terminal write and records the outcome.
// Losing the conditional write to a concurrent caller that reached the same
// terminal state is treated as a successful replay.
func (s *escrowService) finalize(ctx context.Context, escrowID string, from []models.EscrowStatus, to models.EscrowStatus, reference, reason, op string) (*models.EscrowAccount, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ok, err := uow.EscrowRepository().TransitionStatus(ctx, escrowID, from, to, &reference, &reason)
	if err != nil {
		return nil, fmt.Errorf("failed to update escrow status: %w", err)
	}

	account, err := uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload escrow: %w", err)
	}
	if account == nil {
		return nil, ErrEscrowNotFound
	}

	if !ok {
		if account.Status == to {
			metrics.EscrowOperations.WithLabelValues(op, "replay").Inc()
			return account, nil
		}
		return nil, fmt.Errorf("escrow %s moved to %s concurrently: %w", escrowID, account.Status, ErrEscrowConflict)
	}

	s.appendPaymentEvent(ctx, uow, account, reference, fmt.Sprintf("escrow %s: %s", to, reason))
	uow.EventBus().Publish(events.EscrowUpdatedEvent{
		EscrowID:  escrowID,
		OldStatus: from[0],
		NewStatus: to,
		Reference: reference,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"escrowID": escrowID,
		"status":   to,
		"ref":      reference,
	}).Info("Escrow resolved")
	metrics.EscrowOperations.WithLabelValues(op, "ok").Inc()
	return account, nil
}

// appendPaymentEvent writes a PAYMENT_UPDATE row for the owning wager, if one
// exists yet
func (s *escrowService) appendPaymentEvent(ctx context.Context, uow UnitOfWork, account *models.EscrowAccount, reference, message string) {
	wager, err := uow.WagerRepository().GetByEscrowID(ctx, account.ID)
	if err != nil || wager == nil {
		return
	}
	_ = uow.WagerEventRepository().Append(ctx, &models.WagerEvent{
		WagerID: wager.ID,
		Type:    models.EventTypePaymentUpdate,
		Message: message,
		Data: models.PaymentUpdateData{
			EscrowID:     account.ID,
			EscrowStatus: account.Status,
			Reference:    reference,
			Amount:       account.TotalAmount,
		},
	})
}

// compensate refunds a provider escrow after a local failure, best effort.
// The orphan sweep in the reconciler covers anything this misses.
func (s *escrowService) compensate(ctx context.Context, escrowID, reason string) {
	if _, err := s.provider.RefundEscrow(ctx, escrowID, reason); err != nil {
		log.WithFields(log.Fields{
			"escrowID": escrowID,
			"reason":   reason,
		}).WithError(err).Error("Compensating refund failed, leaving escrow for reconciler")
	}
}
