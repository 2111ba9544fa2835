package service

import (
	"context"
	"fmt"

	"fantasygolf/events"
	"fantasygolf/models"
)

// creditWallet is the single entry point for balance increases inside a unit of work.
// It locks the user's wallet, applies the credit, appends the ledger row and
// queues a BalanceChangeEvent. A non-empty reference makes the credit idempotent:
// when the same credit was already applied under that reference it is returned
// unchanged. A reference already used for a different wallet, amount or reason
// fails with models.ErrReferenceConflict.
func creditWallet(ctx context.Context, uow UnitOfWork, userID, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount", "must be positive")
	}

	wallet, err := uow.WalletRepository().LockByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	if existing, err := existingByReference(ctx, uow, wallet, amount, reason, reference); err != nil || existing != nil {
		return existing, err
	}

	newBalance, err := uow.WalletRepository().AddBalance(ctx, wallet.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	return recordLedgerChange(ctx, uow, wallet, amount, newBalance, reason, reference, metadata)
}

// debitWallet is the single entry point for balance decreases inside a unit of work.
// The check and the deduction happen under the wallet row lock, so concurrent
// debits are serialized. Fails with *models.InsufficientFundsError and no change
// when the balance is short.
func debitWallet(ctx context.Context, uow UnitOfWork, userID, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount", "must be positive")
	}

	wallet, err := uow.WalletRepository().LockByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	if existing, err := existingByReference(ctx, uow, wallet, -amount, reason, reference); err != nil || existing != nil {
		return existing, err
	}

	if wallet.Balance < amount {
		return nil, &models.InsufficientFundsError{Balance: wallet.Balance, Required: amount}
	}

	newBalance, err := uow.WalletRepository().DeductBalance(ctx, wallet.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	return recordLedgerChange(ctx, uow, wallet, -amount, newBalance, reason, reference, metadata)
}

// existingByReference returns the transaction already recorded under reference.
// It only counts as a replay when it moved the same wallet by the same delta for
// the same reason.
func existingByReference(ctx context.Context, uow UnitOfWork, wallet *models.Wallet, delta int64, reason models.LedgerReason, reference string) (*models.LedgerTransaction, error) {
	if reference == "" {
		return nil, nil
	}
	existing, err := uow.LedgerRepository().GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to check ledger reference: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.WalletID != wallet.ID || existing.Delta != delta || existing.Reason != reason {
		return nil, fmt.Errorf("reference %q belongs to transaction %d: %w", reference, existing.ID, models.ErrReferenceConflict)
	}
	return existing, nil
}

func recordLedgerChange(ctx context.Context, uow UnitOfWork, wallet *models.Wallet, delta, newBalance int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	tx := &models.LedgerTransaction{
		WalletID:         wallet.ID,
		Delta:            delta,
		Reason:           reason,
		ResultingBalance: newBalance,
		Metadata:         metadata,
	}
	if reference != "" {
		tx.Reference = &reference
	}

	if err := uow.LedgerRepository().Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record ledger transaction: %w", err)
	}

	// Emitted after commit by the transactional bus
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:        wallet.UserID,
		WalletID:      wallet.ID,
		TransactionID: tx.ID,
		OldBalance:    newBalance - delta,
		NewBalance:    newBalance,
		Delta:         delta,
		Reason:        reason,
	})

	return tx, nil
}
