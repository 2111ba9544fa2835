package models

import (
	"time"
)

// ReconciliationKind names the kind of out-of-band fix an issue needs
type ReconciliationKind string

const (
	ReconciliationRefundFailed  ReconciliationKind = "refund_failed"
	ReconciliationPaymentCredit ReconciliationKind = "payment_credit_failed"
	ReconciliationStuckPayment  ReconciliationKind = "payment_stuck"
	ReconciliationLedgerDrift   ReconciliationKind = "ledger_drift"
)

// ReconciliationIssue is an escalated money inconsistency awaiting an operator
type ReconciliationIssue struct {
	ID         int64              `db:"id"`
	Kind       ReconciliationKind `db:"kind"`
	Reference  string             `db:"reference"`
	UserID     *int64             `db:"user_id"`
	Amount     int64              `db:"amount"`
	Detail     map[string]any     `db:"detail"`
	CreatedAt  time.Time          `db:"created_at"`
	ResolvedAt *time.Time         `db:"resolved_at"`
	ResolvedBy *int64             `db:"resolved_by"`
}

// IsOpen reports whether the issue is still unresolved
func (i *ReconciliationIssue) IsOpen() bool {
	return i.ResolvedAt == nil
}

// SweepReport summarizes one reconciliation sweep
type SweepReport struct {
	Skipped             bool // another sweep held the lock
	TournamentsChecked  int
	CompetitionsChecked int
	StatusChanges       []StatusChange
	InstancesExpired    int
	StuckPayments       int
	StartedAt           time.Time
	Duration            time.Duration
}
