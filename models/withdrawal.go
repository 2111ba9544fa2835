package models

import (
	"time"
)

// WithdrawalStatus is the review state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusApproved  WithdrawalStatus = "approved"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusPaid      WithdrawalStatus = "paid"
	WithdrawalStatusCancelled WithdrawalStatus = "cancelled"
)

// WithdrawalRequest is a user's request to cash out part of their balance
type WithdrawalRequest struct {
	ID                 int64            `db:"id"`
	UserID             int64            `db:"user_id"`
	Amount             int64            `db:"amount"`
	Status             WithdrawalStatus `db:"status"`
	DebitTransactionID *int64           `db:"debit_transaction_id"`
	ReviewedBy         *int64           `db:"reviewed_by"`
	Note               *string          `db:"note"`
	CreatedAt          time.Time        `db:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at"`
}

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:  {WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusPaid, WithdrawalStatusCancelled},
	WithdrawalStatusApproved: {WithdrawalStatusPaid},
}

// CanTransitionTo reports whether the request may move to next
func (w *WithdrawalRequest) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[w.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RequiresDebit reports whether moving to next is the point the funds leave the wallet.
// The debit happens once, on leaving pending for approved or paid.
func (w *WithdrawalRequest) RequiresDebit(next WithdrawalStatus) bool {
	return w.Status == WithdrawalStatusPending &&
		(next == WithdrawalStatusApproved || next == WithdrawalStatusPaid) &&
		w.DebitTransactionID == nil
}

// IsFinal reports whether the request can no longer change
func (w *WithdrawalRequest) IsFinal() bool {
	return len(withdrawalTransitions[w.Status]) == 0
}
