package repository

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/database"
	"fantasygolf/events"
	"fantasygolf/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	walletRepo       service.WalletRepository
	ledgerRepo       service.LedgerRepository
	paymentRepo      service.PaymentRepository
	tournamentRepo   service.TournamentRepository
	competitionRepo  service.CompetitionRepository
	entryRepo        service.EntryRepository
	headToHeadRepo   service.HeadToHeadRepository
	withdrawalRepo   service.WithdrawalRepository
	reconRepo        service.ReconciliationRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
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

	u.walletRepo = newWalletRepositoryWithTx(tx)
	u.ledgerRepo = newLedgerRepositoryWithTx(tx)
	u.paymentRepo = newPaymentRepositoryWithTx(tx)
	u.tournamentRepo = newTournamentRepositoryWithTx(tx)
	u.competitionRepo = newCompetitionRepositoryWithTx(tx)
	u.entryRepo = newEntryRepositoryWithTx(tx)
	u.headToHeadRepo = newHeadToHeadRepositoryWithTx(tx)
	u.withdrawalRepo = newWithdrawalRepositoryWithTx(tx)
	u.reconRepo = newReconciliationRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush()
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// Savepoint runs fn inside a savepoint of the current transaction. The
// repositories keep using the outer transaction, which shares the connection,
// so their writes land inside the savepoint.
func (u *unitOfWork) Savepoint(ctx context.Context, fn func() error) error {
	if u.tx == nil {
		return fmt.Errorf("no transaction for savepoint")
	}

	sp, err := u.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("failed to roll back to savepoint: %w (after: %v)", rbErr, err)
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func notStarted() {
	panic("unit of work not started - call Begin() first")
}

// WalletRepository returns the wallet repository for this unit of work
func (u *unitOfWork) WalletRepository() service.WalletRepository {
	if u.walletRepo == nil {
		notStarted()
	}
	return u.walletRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		notStarted()
	}
	return u.ledgerRepo
}

// PaymentRepository returns the payment repository for this unit of work
func (u *unitOfWork) PaymentRepository() service.PaymentRepository {
	if u.paymentRepo == nil {
		notStarted()
	}
	return u.paymentRepo
}

// TournamentRepository returns the tournament repository for this unit of work
func (u *unitOfWork) TournamentRepository() service.TournamentRepository {
	if u.tournamentRepo == nil {
		notStarted()
	}
	return u.tournamentRepo
}

// CompetitionRepository returns the competition repository for this unit of work
func (u *unitOfWork) CompetitionRepository() service.CompetitionRepository {
	if u.competitionRepo == nil {
		notStarted()
	}
	return u.competitionRepo
}

// EntryRepository returns the entry repository for this unit of work
func (u *unitOfWork) EntryRepository() service.EntryRepository {
	if u.entryRepo == nil {
		notStarted()
	}
	return u.entryRepo
}

// HeadToHeadRepository returns the head-to-head repository for this unit of work
func (u *unitOfWork) HeadToHeadRepository() service.HeadToHeadRepository {
	if u.headToHeadRepo == nil {
		notStarted()
	}
	return u.headToHeadRepo
}

// WithdrawalRepository returns the withdrawal repository for this unit of work
func (u *unitOfWork) WithdrawalRepository() service.WithdrawalRepository {
	if u.withdrawalRepo == nil {
		notStarted()
	}
	return u.withdrawalRepo
}

// ReconciliationRepository returns the reconciliation repository for this unit of work
func (u *unitOfWork) ReconciliationRepository() service.ReconciliationRepository {
	if u.reconRepo == nil {
		notStarted()
	}
	return u.reconRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		notStarted()
	}
	return u.transactionalBus
}
