package service

import (
	"context"
	"fmt"

	"fantasygolf/models"

	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	uowFactory     UnitOfWorkFactory
	reconciliation ReconciliationService
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory, reconciliation ReconciliationService) LedgerService {
	return &ledgerService{
		uowFactory:     uowFactory,
		reconciliation: reconciliation,
	}
}

func (s *ledgerService) Credit(ctx context.Context, userID int64, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	if !reason.IsValid() || !reason.IsCredit() {
		return nil, models.NewValidationError("reason", fmt.Sprintf("%q is not a credit reason", reason))
	}
	return s.apply(ctx, userID, amount, reason, reference, metadata, creditWallet)
}

func (s *ledgerService) Debit(ctx context.Context, userID int64, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	if !reason.IsValid() || reason.IsCredit() {
		return nil, models.NewValidationError("reason", fmt.Sprintf("%q is not a debit reason", reason))
	}
	return s.apply(ctx, userID, amount, reason, reference, metadata, debitWallet)
}

type walletChange func(ctx context.Context, uow UnitOfWork, userID, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error)

func (s *ledgerService) apply(ctx context.Context, userID, amount int64, reason models.LedgerReason, reference string, metadata map[string]any, change walletChange) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount", "must be positive")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := change(ctx, uow, userID, amount, reason, reference, metadata)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"delta":       tx.Delta,
		"reason":      reason,
		"new_balance": tx.ResultingBalance,
	}).Info("Ledger transaction applied")

	return tx, nil
}

func (s *ledgerService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wallet, err := uow.WalletRepository().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return wallet, nil
}

func (s *ledgerService) History(ctx context.Context, userID int64, limit int) ([]*models.LedgerTransaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wallet, err := uow.WalletRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet == nil {
		return []*models.LedgerTransaction{}, nil
	}

	history, err := uow.LedgerRepository().ListByWallet(ctx, wallet.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger history: %w", err)
	}
	return history, nil
}

// Reconcile checks the conservation invariant for one wallet. Drift is escalated
// as a reconciliation issue; the report is returned either way.
func (s *ledgerService) Reconcile(ctx context.Context, userID int64) (*models.WalletReconciliation, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Holding the lock keeps balance and ledger sum from the same instant
	wallet, err := uow.WalletRepository().LockByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	sum, count, err := uow.LedgerRepository().SumByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	report := &models.WalletReconciliation{
		WalletID:         wallet.ID,
		UserID:           userID,
		Balance:          wallet.Balance,
		LedgerSum:        sum,
		TransactionCount: count,
	}

	if !report.Consistent() {
		s.reconciliation.Escalate(ctx, &models.ReconciliationIssue{
			Kind:      models.ReconciliationLedgerDrift,
			Reference: fmt.Sprintf("wallet:%d", wallet.ID),
			UserID:    &userID,
			Amount:    report.Difference(),
			Detail: map[string]any{
				"balance":    report.Balance,
				"ledger_sum": report.LedgerSum,
			},
		}, fmt.Errorf("wallet balance %d does not match ledger sum %d", report.Balance, report.LedgerSum))
	}

	return report, nil
}
