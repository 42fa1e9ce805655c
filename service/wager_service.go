package service

import (
	"context"
	"fmt"
	"time"

	"wagerbook/events"
	"wagerbook/metrics"
	"wagerbook/models"

	log "github.com/sirupsen/logrus"
)

type wagerService struct {
	uowFactory    UnitOfWorkFactory
	affordability AffordabilityProvider
	escrow        EscrowService
}

// NewWagerService creates the wager lifecycle engine
func NewWagerService(uowFactory UnitOfWorkFactory, affordability AffordabilityProvider, escrow EscrowService) WagerService {
	return &wagerService{
		uowFactory:    uowFactory,
		affordability: affordability,
		escrow:        escrow,
	}
}

// CreateWager opens a new wager. A single-sided wager starts OPEN; supplying
// an opponent with a pre-balanced stake starts it MATCHED. The escrow is
// created before the wager row; if persisting fails afterwards, the escrow is
// refunded (and the reconciler sweeps any orphan that slips through).
func (s *wagerService) CreateWager(ctx context.Context, req CreateWagerRequest) (*models.Wager, error) {
	if req.CreatorID == "" {
		return nil, &ValidationError{Field: "creator", Reason: "creator id is required"}
	}
	if req.OpponentID != nil && *req.OpponentID == req.CreatorID {
		return nil, &ValidationError{Field: "opponent", Reason: "cannot create a wager against yourself"}
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, &ValidationError{Field: "end date", Reason: "must be after the start date"}
	}
	if err := validateProposal("creator stake", req.CreatorStake); err != nil {
		return nil, err
	}

	// Affordability checks have no side effects, so they run before anything
	// irreversible
	check, err := s.affordability.CheckAffordability(ctx, req.CreatorID, req.CreatorStake.Cash)
	if err != nil {
		return nil, fmt.Errorf("affordability check failed: %w", err)
	}
	if !check.CanAfford {
		return nil, &InsufficientFundsError{
			PartyID:   req.CreatorID,
			Required:  req.CreatorStake.Cash,
			Shortfall: check.Shortfall,
		}
	}

	creatorTotal := req.CreatorStake.Total()
	status := models.WagerStatusOpen
	totalValue := creatorTotal

	var (
		opponentTotal int64
		balance       *models.BalanceResult
	)
	if req.OpponentID != nil && req.OpponentStake != nil {
		balance, err = BalanceStakes(req.CreatorStake, *req.OpponentStake)
		if err != nil {
			return nil, err
		}
		if !balance.Balanced {
			metrics.BalanceChecks.WithLabelValues("unbalanced").Inc()
			return nil, &UnbalancedStakesError{
				RequiredBy:  balance.TopUp.RequiredBy,
				Amount:      balance.TopUp.Amount,
				Suggestions: balance.Suggestions,
			}
		}
		metrics.BalanceChecks.WithLabelValues("balanced").Inc()

		check, err := s.affordability.CheckAffordability(ctx, *req.OpponentID, req.OpponentStake.Cash)
		if err != nil {
			return nil, fmt.Errorf("opponent affordability check failed: %w", err)
		}
		if !check.CanAfford {
			return nil, &InsufficientFundsError{
				PartyID:   *req.OpponentID,
				Required:  req.OpponentStake.Cash,
				Shortfall: check.Shortfall,
			}
		}

		status = models.WagerStatusMatched
		opponentTotal = balance.Opponent.Total
		totalValue = balance.TotalValue
	}

	account, err := s.escrow.Create(ctx, creatorTotal, opponentTotal, req.CreatorID, req.OpponentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create escrow: %w", err)
	}

	wager, err := s.persistNewWager(ctx, req, account.ID, status, creatorTotal, opponentTotal, totalValue, balance)
	if err != nil {
		// Compensating refund; the escrow row exists, so Refund resolves both
		// the provider funds and the account record
		if _, refundErr := s.escrow.Refund(ctx, account.ID, "wager creation failed"); refundErr != nil {
			log.WithFields(log.Fields{
				"escrowID": account.ID,
			}).WithError(refundErr).Error("Compensating refund failed, escrow left for reconciler")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"wagerID":    wager.ID,
		"creatorID":  wager.CreatorID,
		"status":     wager.Status,
		"totalValue": wager.TotalValue,
	}).Info("Wager created")
	return wager, nil
}

func (s *wagerService) persistNewWager(ctx context.Context, req CreateWagerRequest, escrowID string, status models.WagerStatus, creatorTotal, opponentTotal, totalValue int64, balance *models.BalanceResult) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.PartyRepository().GetOrCreate(ctx, req.CreatorID, req.CreatorID); err != nil {
		return nil, fmt.Errorf("failed to ensure creator party: %w", err)
	}
	if req.OpponentID != nil {
		if _, err := uow.PartyRepository().GetOrCreate(ctx, *req.OpponentID, *req.OpponentID); err != nil {
			return nil, fmt.Errorf("failed to ensure opponent party: %w", err)
		}
	}

	wager := &models.Wager{
		CreatorID:     req.CreatorID,
		OpponentID:    req.OpponentID,
		Type:          req.Type,
		Timeframe:     req.Timeframe,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		LeagueID:      req.LeagueID,
		IsPublic:      req.IsPublic,
		CreatorStake:  creatorTotal,
		OpponentStake: opponentTotal,
		TotalValue:    totalValue,
		Status:        status,
		EscrowID:      escrowID,
	}
	if status == models.WagerStatusMatched {
		now := time.Now()
		wager.MatchedAt = &now
	}

	if err := uow.WagerRepository().Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}

	assets := buildAssets(wager.ID, models.SideCreator, req.CreatorStake.Assets)
	if balance != nil {
		assets = append(assets, buildAssets(wager.ID, models.SideOpponent, balance.Opponent.Players)...)
	}
	if len(assets) > 0 {
		if err := uow.WagerAssetRepository().CreateBatch(ctx, assets); err != nil {
			return nil, fmt.Errorf("failed to create wager assets: %w", err)
		}
	}

	if err := appendStatusEvent(ctx, uow, wager.ID, "", status, req.CreatorID, "wager created"); err != nil {
		return nil, err
	}

	opponentID := ""
	if req.OpponentID != nil {
		opponentID = *req.OpponentID
	}
	uow.EventBus().Publish(events.WagerCreatedEvent{
		WagerID:    wager.ID,
		CreatorID:  wager.CreatorID,
		OpponentID: opponentID,
		TotalValue: wager.TotalValue,
		IsPublic:   wager.IsPublic,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.WagerTransitions.WithLabelValues("", string(status)).Inc()
	return wager, nil
}

// AcceptWager matches an OPEN wager with an opponent. The OPEN -> MATCHED
// move is a single conditional write, so exactly one concurrent acceptor
// wins; losers see ErrWagerNotAvailable with no escrow side effects. The
// escrow extend runs only after the race is won.
func (s *wagerService) AcceptWager(ctx context.Context, wagerID int64, opponentID string, proposal models.StakeProposal) (*models.Wager, error) {
	if opponentID == "" {
		return nil, &ValidationError{Field: "opponent", Reason: "opponent id is required"}
	}

	wager, creatorProposal, err := s.loadOpenWager(ctx, wagerID, opponentID)
	if err != nil {
		return nil, err
	}

	balance, err := BalanceStakes(creatorProposal, proposal)
	if err != nil {
		return nil, err
	}
	if !balance.Balanced {
		metrics.BalanceChecks.WithLabelValues("unbalanced").Inc()
		return nil, &UnbalancedStakesError{
			RequiredBy:  balance.TopUp.RequiredBy,
			Amount:      balance.TopUp.Amount,
			Suggestions: balance.Suggestions,
		}
	}
	metrics.BalanceChecks.WithLabelValues("balanced").Inc()

	check, err := s.affordability.CheckAffordability(ctx, opponentID, proposal.Cash)
	if err != nil {
		return nil, fmt.Errorf("affordability check failed: %w", err)
	}
	if !check.CanAfford {
		return nil, &InsufficientFundsError{
			PartyID:   opponentID,
			Required:  proposal.Cash,
			Shortfall: check.Shortfall,
		}
	}

	opponentTotal := balance.Opponent.Total
	now := time.Now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.PartyRepository().GetOrCreate(ctx, opponentID, opponentID); err != nil {
		return nil, fmt.Errorf("failed to ensure opponent party: %w", err)
	}

	matched, err := uow.WagerRepository().TransitionToMatched(ctx, wagerID, opponentID, opponentTotal, balance.TotalValue, now)
	if err != nil {
		return nil, fmt.Errorf("failed to match wager: %w", err)
	}
	if !matched {
		metrics.RaceLosses.WithLabelValues("accept").Inc()
		return nil, ErrWagerNotAvailable
	}

	if len(proposal.Assets) > 0 {
		if err := uow.WagerAssetRepository().CreateBatch(ctx, buildAssets(wagerID, models.SideOpponent, proposal.Assets)); err != nil {
			return nil, fmt.Errorf("failed to create opponent assets: %w", err)
		}
	}

	if err := appendStatusEvent(ctx, uow, wagerID, models.WagerStatusOpen, models.WagerStatusMatched, opponentID, "wager matched, asset values locked"); err != nil {
		return nil, err
	}
	uow.EventBus().Publish(events.WagerMatchedEvent{
		WagerID:    wagerID,
		CreatorID:  wager.CreatorID,
		OpponentID: opponentID,
		TotalValue: balance.TotalValue,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.WagerTransitions.WithLabelValues(string(models.WagerStatusOpen), string(models.WagerStatusMatched)).Inc()

	// Escrow extend only after winning the race. A failure here leaves a
	// marker for the reconciler instead of unwinding the match.
	if _, err := s.escrow.Extend(ctx, wager.EscrowID, opponentID, opponentTotal); err != nil {
		log.WithFields(log.Fields{
			"wagerID":  wagerID,
			"escrowID": wager.EscrowID,
		}).WithError(err).Error("Escrow extend failed after match, reconciler will retry")
		s.appendSystemNote(ctx, wagerID, "escrow extension pending reconciliation")
	}

	updated, _, err := s.GetWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"wagerID":    wagerID,
		"opponentID": opponentID,
	}).Info("Wager matched")
	return updated, nil
}

// loadOpenWager fetches the wager and rebuilds the creator's stored stake
// proposal for re-balancing
func (s *wagerService) loadOpenWager(ctx context.Context, wagerID int64, opponentID string) (*models.Wager, models.StakeProposal, error) {
	var empty models.StakeProposal

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, empty, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, empty, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, empty, ErrWagerNotFound
	}
	if wager.CreatorID == opponentID {
		return nil, empty, &ValidationError{Field: "opponent", Reason: "cannot accept your own wager"}
	}
	if wager.Status != models.WagerStatusOpen {
		return nil, empty, ErrWagerNotAvailable
	}
	if wager.OpponentID != nil && *wager.OpponentID != opponentID {
		return nil, empty, &ValidationError{Field: "opponent", Reason: "wager is reserved for another party"}
	}

	assets, err := uow.WagerAssetRepository().GetByWager(ctx, wagerID)
	if err != nil {
		return nil, empty, fmt.Errorf("failed to get wager assets: %w", err)
	}

	creatorProposal := models.StakeProposal{Cash: wager.CreatorStake}
	for _, a := range assets {
		if a.Side != models.SideCreator {
			continue
		}
		creatorProposal.Assets = append(creatorProposal.Assets, models.StakedAsset{
			AssetID: a.AssetID,
			Name:    a.Name,
			Value:   a.LockedValue,
		})
		creatorProposal.Cash -= a.LockedValue
	}

	return wager, creatorProposal, nil
}

// SettleWager settles a wager to the declared winner and releases escrow.
// The transition away from a settleable status is a conditional write, so a
// concurrent duplicate settlement fails cleanly and escrow is released at
// most once. If the release fails after the status write, the wager stays
// SETTLED and the reconciler retries the release.
func (s *wagerService) SettleWager(ctx context.Context, wagerID int64, winnerID, performanceResult, settledBy string) (*models.SettleResult, error) {
	wager, err := s.loadSettleableWager(ctx, wagerID, winnerID)
	if err != nil {
		return nil, err
	}

	loserID := wager.Opponent(winnerID)
	loserStake := wager.OpponentStake
	if winnerID != wager.CreatorID {
		loserStake = wager.CreatorStake
	}
	now := time.Now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// prior is the status the conditional write actually replaced; the wager
	// read above may be stale if a sweep moved it to PENDING_SETTLEMENT in
	// the meantime.
	prior, settled, err := uow.WagerRepository().TransitionToSettled(ctx, wagerID, winnerID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to settle wager: %w", err)
	}
	if !settled {
		metrics.RaceLosses.WithLabelValues("settle").Inc()
		return nil, ErrWagerNotAvailable
	}

	// Guarded by the conditional write above, so these increments run
	// exactly once per wager
	if err := uow.PartyRepository().RecordWin(ctx, winnerID, loserStake); err != nil {
		return nil, fmt.Errorf("failed to record winner totals: %w", err)
	}
	if err := uow.PartyRepository().RecordLoss(ctx, loserID, loserStake); err != nil {
		return nil, fmt.Errorf("failed to record loser totals: %w", err)
	}

	message := fmt.Sprintf("wager settled by %s: %s", settledBy, performanceResult)
	if err := appendStatusEvent(ctx, uow, wagerID, prior, models.WagerStatusSettled, settledBy, message); err != nil {
		return nil, err
	}
	uow.EventBus().Publish(events.WagerSettledEvent{
		WagerID:  wagerID,
		WinnerID: winnerID,
		LoserID:  loserID,
		Amount:   wager.TotalValue,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.WagerTransitions.WithLabelValues(string(prior), string(models.WagerStatusSettled)).Inc()

	released := true
	if _, err := s.escrow.Release(ctx, wager.EscrowID, winnerID, message); err != nil {
		released = false
		log.WithFields(log.Fields{
			"wagerID":  wagerID,
			"escrowID": wager.EscrowID,
			"winnerID": winnerID,
		}).WithError(err).Error("Escrow release failed after settlement, reconciler will retry")
		s.appendSystemNote(ctx, wagerID, "escrow release pending reconciliation")
	}

	wager.Status = models.WagerStatusSettled
	wager.WinnerID = &winnerID
	wager.SettledAt = &now

	log.WithFields(log.Fields{
		"wagerID":  wagerID,
		"winnerID": winnerID,
		"amount":   wager.TotalValue,
	}).Info("Wager settled")
	return &models.SettleResult{
		Wager:             wager,
		WinnerID:          winnerID,
		LoserID:           loserID,
		AmountReleased:    wager.TotalValue,
		PerformanceResult: performanceResult,
		EscrowReleased:    released,
	}, nil
}

func (s *wagerService) loadSettleableWager(ctx context.Context, wagerID int64, winnerID string) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, ErrWagerNotFound
	}
	if wager.OpponentID == nil {
		return nil, &ValidationError{Field: "wager", Reason: "wager has no opponent to settle against"}
	}
	if !wager.IsParticipant(winnerID) {
		return nil, &ValidationError{Field: "winner", Reason: "winner must be one of the participants"}
	}
	if !wager.IsSettleable() {
		return nil, &InvalidTransitionError{
			WagerID:   wagerID,
			Current:   wager.Status,
			Requested: models.WagerStatusSettled,
		}
	}
	return wager, nil
}

// CancelWager cancels an OPEN wager at the creator's request and refunds the
// escrow. Cancellation races against acceptance on the same conditional
// write; the loser fails with ErrWagerNotAvailable.
func (s *wagerService) CancelWager(ctx context.Context, wagerID int64, requesterID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		uow.Rollback()
		return fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		uow.Rollback()
		return ErrWagerNotFound
	}
	if wager.CreatorID != requesterID {
		uow.Rollback()
		return &ValidationError{Field: "requester", Reason: "only the creator can cancel a wager"}
	}
	if wager.Status != models.WagerStatusOpen {
		uow.Rollback()
		return &InvalidTransitionError{
			WagerID:   wagerID,
			Current:   wager.Status,
			Requested: models.WagerStatusCancelled,
		}
	}

	cancelled, err := uow.WagerRepository().TransitionToCancelled(ctx, wagerID)
	if err != nil {
		uow.Rollback()
		return fmt.Errorf("failed to cancel wager: %w", err)
	}
	if !cancelled {
		uow.Rollback()
		metrics.RaceLosses.WithLabelValues("cancel").Inc()
		return ErrWagerNotAvailable
	}

	if err := appendStatusEvent(ctx, uow, wagerID, models.WagerStatusOpen, models.WagerStatusCancelled, requesterID, "wager cancelled by creator"); err != nil {
		uow.Rollback()
		return err
	}
	uow.EventBus().Publish(events.WagerCancelledEvent{
		WagerID:   wagerID,
		CreatorID: requesterID,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.WagerTransitions.WithLabelValues(string(models.WagerStatusOpen), string(models.WagerStatusCancelled)).Inc()

	if _, err := s.escrow.Refund(ctx, wager.EscrowID, "wager cancelled by creator"); err != nil {
		log.WithFields(log.Fields{
			"wagerID":  wagerID,
			"escrowID": wager.EscrowID,
		}).WithError(err).Error("Escrow refund failed after cancellation, reconciler will retry")
		s.appendSystemNote(ctx, wagerID, "escrow refund pending reconciliation")
	}

	log.WithFields(log.Fields{"wagerID": wagerID}).Info("Wager cancelled")
	return nil
}

// GetWager retrieves a wager with its assets
func (s *wagerService) GetWager(ctx context.Context, wagerID int64) (*models.Wager, []*models.WagerAsset, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, nil, ErrWagerNotFound
	}

	assets, err := uow.WagerAssetRepository().GetByWager(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get wager assets: %w", err)
	}

	return wager, assets, nil
}

// GetWagerEvents returns the audit log for a wager
func (s *wagerService) GetWagerEvents(ctx context.Context, wagerID int64, limit int) ([]*models.WagerEvent, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wagerEvents, err := uow.WagerEventRepository().ListByWager(ctx, wagerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wager events: %w", err)
	}
	return wagerEvents, nil
}

// GetActiveWagersByParty returns non-terminal wagers involving a party
func (s *wagerService) GetActiveWagersByParty(ctx context.Context, partyID string) ([]*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wagers, err := uow.WagerRepository().GetActiveByParty(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active wagers: %w", err)
	}
	return wagers, nil
}

// GetStats returns wager statistics for a party
func (s *wagerService) GetStats(ctx context.Context, partyID string) (*models.WagerStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stats, err := uow.WagerRepository().GetStats(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager stats: %w", err)
	}
	return stats, nil
}

// MarkAssetDisposed flags a staked asset as liquidated mid-wager. The locked
// value is unaffected; settlement always uses locked values.
func (s *wagerService) MarkAssetDisposed(ctx context.Context, wagerID int64, assetID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return ErrWagerNotFound
	}

	if err := uow.WagerAssetRepository().MarkDisposed(ctx, wagerID, assetID); err != nil {
		return fmt.Errorf("failed to mark asset disposed: %w", err)
	}

	if err := uow.WagerEventRepository().Append(ctx, &models.WagerEvent{
		WagerID: wagerID,
		Type:    models.EventTypePlayerUpdate,
		Message: fmt.Sprintf("asset %s was disposed; locked value still applies at settlement", assetID),
		Data: models.PlayerUpdateData{
			AssetID:  assetID,
			Disposed: true,
		},
	}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateAssetValue records a display-only current value for a staked asset.
// Settlement still uses locked values; this only tracks drift for readers.
func (s *wagerService) UpdateAssetValue(ctx context.Context, wagerID int64, assetID string, currentValue int64) error {
	if currentValue < 0 {
		return &ValidationError{Field: "current value", Reason: "cannot be negative"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return ErrWagerNotFound
	}

	if err := uow.WagerAssetRepository().UpdateCurrentValue(ctx, wagerID, assetID, currentValue); err != nil {
		return fmt.Errorf("failed to update asset value: %w", err)
	}

	if err := uow.WagerEventRepository().Append(ctx, &models.WagerEvent{
		WagerID: wagerID,
		Type:    models.EventTypePlayerUpdate,
		Message: fmt.Sprintf("current value for asset %s updated", assetID),
		Data: models.PlayerUpdateData{
			AssetID:      assetID,
			CurrentValue: currentValue,
		},
	}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ActivateStartedWagers moves MATCHED wagers whose start date passed to
// ACTIVE. Ran periodically by the background worker; each wager transitions
// via its own conditional write so a concurrent sweep is harmless.
func (s *wagerService) ActivateStartedWagers(ctx context.Context) error {
	return s.sweepTransition(ctx, models.WagerStatusMatched, models.WagerStatusActive, "start date reached",
		func(ctx context.Context, uow UnitOfWork, now time.Time) ([]*models.Wager, error) {
			return uow.WagerRepository().GetMatchedStartedBefore(ctx, now)
		})
}

// ExpireEndedWagers moves ACTIVE wagers whose end date passed to
// PENDING_SETTLEMENT so they await a settlement request.
func (s *wagerService) ExpireEndedWagers(ctx context.Context) error {
	return s.sweepTransition(ctx, models.WagerStatusActive, models.WagerStatusPendingSettlement, "end date reached",
		func(ctx context.Context, uow UnitOfWork, now time.Time) ([]*models.Wager, error) {
			return uow.WagerRepository().GetActiveEndedBefore(ctx, now)
		})
}

func (s *wagerService) sweepTransition(ctx context.Context, from, to models.WagerStatus, reason string, list func(context.Context, UnitOfWork, time.Time) ([]*models.Wager, error)) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wagers, err := list(ctx, uow, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list wagers for %s -> %s: %w", from, to, err)
	}

	for _, w := range wagers {
		ok, err := uow.WagerRepository().TransitionStatus(ctx, w.ID, from, to)
		if err != nil {
			return fmt.Errorf("failed to transition wager %d: %w", w.ID, err)
		}
		if !ok {
			continue
		}
		if err := appendStatusEvent(ctx, uow, w.ID, from, to, "system", reason); err != nil {
			return err
		}
		uow.EventBus().Publish(events.WagerStatusChangeEvent{
			WagerID:   w.ID,
			OldStatus: from,
			NewStatus: to,
		})
		metrics.WagerTransitions.WithLabelValues(string(from), string(to)).Inc()
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	if len(wagers) > 0 {
		log.WithFields(log.Fields{
			"count": len(wagers),
			"from":  from,
			"to":    to,
		}).Info("Swept wager transitions")
	}
	return nil
}

// appendSystemNote records a reconciler-visible marker outside the main
// transaction, best effort
func (s *wagerService) appendSystemNote(ctx context.Context, wagerID int64, note string) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return
	}
	defer uow.Rollback()

	if err := uow.WagerEventRepository().Append(ctx, &models.WagerEvent{
		WagerID: wagerID,
		Type:    models.EventTypeSystemMessage,
		Message: note,
		Data:    models.SystemMessageData{Note: note},
	}); err != nil {
		return
	}
	_ = uow.Commit()
}

func appendStatusEvent(ctx context.Context, uow UnitOfWork, wagerID int64, from, to models.WagerStatus, by, message string) error {
	if err := uow.WagerEventRepository().Append(ctx, &models.WagerEvent{
		WagerID: wagerID,
		Type:    models.EventTypeStatusChange,
		Message: message,
		Data: models.StatusChangeData{
			From: from,
			To:   to,
			By:   by,
		},
	}); err != nil {
		return fmt.Errorf("failed to append status event: %w", err)
	}
	return nil
}

func buildAssets(wagerID int64, side models.WagerSide, staked []models.StakedAsset) []*models.WagerAsset {
	assets := make([]*models.WagerAsset, 0, len(staked))
	for _, a := range staked {
		assets = append(assets, &models.WagerAsset{
			WagerID:      wagerID,
			AssetID:      a.AssetID,
			Name:         a.Name,
			Side:         side,
			LockedValue:  a.Value,
			CurrentValue: a.Value,
		})
	}
	return assets
}
