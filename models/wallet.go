package models

import (
	"time"
)

// LedgerReason classifies why a wallet balance changed
type LedgerReason string

const (
	LedgerReasonTopup      LedgerReason = "topup"
	LedgerReasonEntryDebit LedgerReason = "entry_debit"
	LedgerReasonRefund     LedgerReason = "refund"
	LedgerReasonWithdrawal LedgerReason = "withdrawal"
	LedgerReasonAdminGrant LedgerReason = "admin_grant"
)

// IsValid reports whether the reason is one of the known ledger reasons
func (r LedgerReason) IsValid() bool {
	switch r {
	case LedgerReasonTopup, LedgerReasonEntryDebit, LedgerReasonRefund, LedgerReasonWithdrawal, LedgerReasonAdminGrant:
		return true
	}
	return false
}

// IsCredit reports whether the reason increases a balance
func (r LedgerReason) IsCredit() bool {
	return r == LedgerReasonTopup || r == LedgerReasonRefund || r == LedgerReasonAdminGrant
}

// Wallet holds a user's single non-negative balance in minor units
type Wallet struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// LedgerTransaction is an immutable record of one balance change
type LedgerTransaction struct {
	ID               int64          `db:"id"`
	WalletID         int64          `db:"wallet_id"`
	Delta            int64          `db:"delta"`
	Reason           LedgerReason   `db:"reason"`
	ResultingBalance int64          `db:"resulting_balance"`
	Reference        *string        `db:"reference"`
	Metadata         map[string]any `db:"metadata"`
	CreatedAt        time.Time      `db:"created_at"`
}

// BalanceBefore returns the balance the transaction was applied to
func (t *LedgerTransaction) BalanceBefore() int64 {
	return t.ResultingBalance - t.Delta
}

// WalletReconciliation compares a wallet balance against its ledger
type WalletReconciliation struct {
	WalletID         int64
	UserID           int64
	Balance          int64
	LedgerSum        int64
	TransactionCount int64
}

// Consistent reports whether the balance equals the sum of ledger deltas
func (r *WalletReconciliation) Consistent() bool {
	return r.Balance == r.LedgerSum
}

// Difference is balance minus ledger sum
func (r *WalletReconciliation) Difference() int64 {
	return r.Balance - r.LedgerSum
}
