package repository

import (
	"context"
	"fmt"

	"wagerbook/database"
	"wagerbook/events"
	"wagerbook/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db  *database.DB
	tx  pgx.Tx
	ctx context.Context

	txBus *events.TransactionalBus

	partyRepo      service.PartyRepository
	wagerRepo      service.WagerRepository
	wagerAssetRepo service.WagerAssetRepository
	escrowRepo     service.EscrowRepository
	wagerEventRepo service.WagerEventRepository
}

type unitOfWorkFactory struct {
	db  *database.DB
	bus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, bus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{db: db, bus: bus}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:    f.db,
		txBus: events.NewTransactionalBus(f.bus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.partyRepo = newPartyRepositoryWithTx(tx)
	u.wagerRepo = newWagerRepositoryWithTx(tx)
	u.wagerAssetRepo = newWagerAssetRepositoryWithTx(tx)
	u.escrowRepo = newEscrowRepositoryWithTx(tx)
	u.wagerEventRepo = newWagerEventRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil
	u.txBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil
	u.txBus.Discard()
	return nil
}

func (u *unitOfWork) PartyRepository() service.PartyRepository {
	if u.partyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.partyRepo
}

func (u *unitOfWork) WagerRepository() service.WagerRepository {
	if u.wagerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.wagerRepo
}

func (u *unitOfWork) WagerAssetRepository() service.WagerAssetRepository {
	if u.wagerAssetRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.wagerAssetRepo
}

func (u *unitOfWork) EscrowRepository() service.EscrowRepository {
	if u.escrowRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.escrowRepo
}

func (u *unitOfWork) WagerEventRepository() service.WagerEventRepository {
	if u.wagerEventRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.wagerEventRepo
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.txBus
}
