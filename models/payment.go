package models

import (
	"time"
)

// PaymentProviderDemo is the simulated provider used for demo top-ups
const PaymentProviderDemo = "demo"

// PaymentStatus tracks the two ingestion phases of an external payment
type PaymentStatus string

const (
	PaymentStatusReceived     PaymentStatus = "received"
	PaymentStatusCompleted    PaymentStatus = "completed"
	PaymentStatusCreditFailed PaymentStatus = "credit_failed"
)

// ExternalPayment is the dedup record of one real-world provider payment
type ExternalPayment struct {
	ID                  int64         `db:"id"`
	Provider            string        `db:"provider"`
	ProviderPaymentID   string        `db:"provider_payment_id"`
	UserID              int64         `db:"user_id"`
	Amount              int64         `db:"amount"`
	Status              PaymentStatus `db:"status"`
	LedgerTransactionID *int64        `db:"ledger_transaction_id"`
	CreatedAt           time.Time     `db:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at"`
}

// PaymentEvent is an inbound top-up notification from a provider or the demo flow
type PaymentEvent struct {
	Provider          string
	ProviderPaymentID string
	Amount            int64
	UserID            int64
}

// Reference is the ledger reference that makes the payment's credit unique
func (p PaymentEvent) Reference() string {
	return "topup:" + p.Provider + ":" + p.ProviderPaymentID
}

// TopupResult is the outcome of ingesting a payment event
type TopupResult struct {
	NewBalance       int64
	AlreadyProcessed bool
}
