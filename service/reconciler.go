package service

import (
	"context"
	"time"

	"wagerbook/metrics"
	"wagerbook/models"

	log "github.com/sirupsen/logrus"
)

const reconcileBatchSize = 100

// Reconciler repairs the gap between committed wager state and the payment
// provider. Escrow calls run after the local transaction commits, so a crash
// or provider outage can leave a SETTLED wager with a FUNDED escrow, a
// CANCELLED wager with an unrefunded escrow, a MATCHED wager whose escrow was
// never extended, or a PENDING escrow that no wager references. Each sweep
// re-drives the corresponding escrow operation; all of them are idempotent,
// so overlapping sweeps and manual retries are safe.
type Reconciler struct {
	uowFactory UnitOfWorkFactory
	escrow     EscrowService
	wagers     WagerService

	interval     time.Duration
	orphanCutoff time.Duration
}

func NewReconciler(uowFactory UnitOfWorkFactory, escrow EscrowService, wagers WagerService, interval, orphanCutoff time.Duration) *Reconciler {
	return &Reconciler{
		uowFactory:   uowFactory,
		escrow:       escrow,
		wagers:       wagers,
		interval:     interval,
		orphanCutoff: orphanCutoff,
	}
}

// Start launches the reconcile loop in a goroutine and returns a cleanup
// function to stop it
func (r *Reconciler) Start(ctx context.Context) func() {
	ticker := time.NewTicker(r.interval)
	stopChan := make(chan struct{})

	go func() {
		log.Info("Reconciler started")

		// Run immediately on startup to drain anything left from a crash
		r.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconciler shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reconciler shutting down (stop requested)...")
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

// RunOnce executes a single pass of every sweep
func (r *Reconciler) RunOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Panic in reconciler sweep: %v", rec)
		}
	}()

	if err := r.wagers.ActivateStartedWagers(ctx); err != nil {
		log.WithError(err).Error("Failed to activate started wagers")
	}
	if err := r.wagers.ExpireEndedWagers(ctx); err != nil {
		log.WithError(err).Error("Failed to expire ended wagers")
	}

	r.sweepReleases(ctx)
	r.sweepRefunds(ctx)
	r.sweepExtends(ctx)
	r.sweepOrphans(ctx)
}

// sweepReleases retries escrow releases for SETTLED wagers whose escrow is
// still FUNDED
func (r *Reconciler) sweepReleases(ctx context.Context) {
	accounts, err := r.listBacklog(ctx, "release", func(ctx context.Context, repo EscrowRepository) ([]*models.EscrowAccount, error) {
		return repo.ListReleaseBacklog(ctx, reconcileBatchSize)
	})
	if err != nil {
		return
	}

	for _, account := range accounts {
		wager, err := r.wagerForEscrow(ctx, account.ID)
		if err != nil || wager == nil || wager.WinnerID == nil {
			continue
		}
		if _, err := r.escrow.Release(ctx, account.ID, *wager.WinnerID, "release retried by reconciler"); err != nil {
			metrics.ReconcilerSweeps.WithLabelValues("release", "error").Inc()
			log.WithFields(log.Fields{
				"escrowID": account.ID,
				"wagerID":  wager.ID,
			}).WithError(err).Warn("Reconciler release retry failed")
			continue
		}
		metrics.ReconcilerSweeps.WithLabelValues("release", "ok").Inc()
		log.WithFields(log.Fields{
			"escrowID": account.ID,
			"wagerID":  wager.ID,
		}).Info("Reconciler released escrow")
	}
}

// sweepRefunds retries escrow refunds for CANCELLED wagers whose escrow is
// still PENDING or FUNDED
func (r *Reconciler) sweepRefunds(ctx context.Context) {
	accounts, err := r.listBacklog(ctx, "refund", func(ctx context.Context, repo EscrowRepository) ([]*models.EscrowAccount, error) {
		return repo.ListRefundBacklog(ctx, reconcileBatchSize)
	})
	if err != nil {
		return
	}

	for _, account := range accounts {
		if _, err := r.escrow.Refund(ctx, account.ID, "refund retried by reconciler"); err != nil {
			metrics.ReconcilerSweeps.WithLabelValues("refund", "error").Inc()
			log.WithFields(log.Fields{
				"escrowID": account.ID,
			}).WithError(err).Warn("Reconciler refund retry failed")
			continue
		}
		metrics.ReconcilerSweeps.WithLabelValues("refund", "ok").Inc()
		log.WithFields(log.Fields{"escrowID": account.ID}).Info("Reconciler refunded escrow")
	}
}

// sweepExtends retries escrow extends for MATCHED wagers whose escrow never
// picked up the opponent side
func (r *Reconciler) sweepExtends(ctx context.Context) {
	accounts, err := r.listBacklog(ctx, "extend", func(ctx context.Context, repo EscrowRepository) ([]*models.EscrowAccount, error) {
		return repo.ListExtendBacklog(ctx, reconcileBatchSize)
	})
	if err != nil {
		return
	}

	for _, account := range accounts {
		wager, err := r.wagerForEscrow(ctx, account.ID)
		if err != nil || wager == nil || wager.OpponentID == nil {
			continue
		}
		if _, err := r.escrow.Extend(ctx, account.ID, *wager.OpponentID, wager.OpponentStake); err != nil {
			metrics.ReconcilerSweeps.WithLabelValues("extend", "error").Inc()
			log.WithFields(log.Fields{
				"escrowID": account.ID,
				"wagerID":  wager.ID,
			}).WithError(err).Warn("Reconciler extend retry failed")
			continue
		}
		metrics.ReconcilerSweeps.WithLabelValues("extend", "ok").Inc()
		log.WithFields(log.Fields{
			"escrowID": account.ID,
			"wagerID":  wager.ID,
		}).Info("Reconciler extended escrow")
	}
}

// sweepOrphans refunds PENDING escrows old enough that their wager creation
// clearly failed after the escrow was opened
func (r *Reconciler) sweepOrphans(ctx context.Context) {
	cutoff := time.Now().Add(-r.orphanCutoff)
	accounts, err := r.listBacklog(ctx, "orphan", func(ctx context.Context, repo EscrowRepository) ([]*models.EscrowAccount, error) {
		return repo.ListOrphanedBefore(ctx, cutoff, reconcileBatchSize)
	})
	if err != nil {
		return
	}

	for _, account := range accounts {
		if _, err := r.escrow.Refund(ctx, account.ID, "orphaned escrow refunded by reconciler"); err != nil {
			metrics.ReconcilerSweeps.WithLabelValues("orphan", "error").Inc()
			log.WithFields(log.Fields{
				"escrowID": account.ID,
			}).WithError(err).Warn("Reconciler orphan refund failed")
			continue
		}
		metrics.ReconcilerSweeps.WithLabelValues("orphan", "ok").Inc()
		log.WithFields(log.Fields{"escrowID": account.ID}).Info("Reconciler refunded orphaned escrow")
	}
}

func (r *Reconciler) listBacklog(ctx context.Context, kind string, list func(context.Context, EscrowRepository) ([]*models.EscrowAccount, error)) ([]*models.EscrowAccount, error) {
	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Errorf("Failed to begin transaction for %s backlog", kind)
		return nil, err
	}
	defer uow.Rollback()

	accounts, err := list(ctx, uow.EscrowRepository())
	if err != nil {
		log.WithError(err).Errorf("Failed to list %s backlog", kind)
		return nil, err
	}
	return accounts, nil
}

func (r *Reconciler) wagerForEscrow(ctx context.Context, escrowID string) (*models.Wager, error) {
	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.WagerRepository().GetByEscrowID(ctx, escrowID)
}
