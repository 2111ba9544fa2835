package events

import (
	"fantasygolf/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange          EventType = "balance_change"
	EventTypePaymentIngested        EventType = "payment_ingested"
	EventTypeEntryCreated           EventType = "entry_created"
	EventTypeEntryCancelled         EventType = "entry_cancelled"
	EventTypeInstanceStateChange    EventType = "instance_state_change"
	EventTypeWithdrawalStateChange  EventType = "withdrawal_state_change"
	EventTypeStatusChange           EventType = "status_change"
	EventTypeReconciliationRequired EventType = "reconciliation_required"
)

// AllEventTypes lists every event type, for subscribers that forward everything
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypePaymentIngested,
	EventTypeEntryCreated,
	EventTypeEntryCancelled,
	EventTypeInstanceStateChange,
	EventTypeWithdrawalStateChange,
	EventTypeStatusChange,
	EventTypeReconciliationRequired,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a committed ledger movement
type BalanceChangeEvent struct {
	UserID        int64
	WalletID      int64
	TransactionID int64
	OldBalance    int64
	NewBalance    int64
	Delta         int64
	Reason        models.LedgerReason
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// PaymentIngestedEvent represents an external payment that reached the ledger or was replayed
type PaymentIngestedEvent struct {
	PaymentID         int64
	Provider          string
	ProviderPaymentID string
	UserID            int64
	Amount            int64
	AlreadyProcessed  bool
}

func (e PaymentIngestedEvent) Type() EventType {
	return EventTypePaymentIngested
}

// EntryCreatedEvent represents a paid entry
type EntryCreatedEvent struct {
	EntryID    int64
	UserID     int64
	TargetKind models.EntryTargetKind
	TargetID   int64
	FeePaid    int64
	Status     models.EntryStatus
}

func (e EntryCreatedEvent) Type() EventType {
	return EventTypeEntryCreated
}

// EntryCancelledEvent represents a cancelled and refunded entry
type EntryCancelledEvent struct {
	EntryID    int64
	UserID     int64
	TargetKind models.EntryTargetKind
	TargetID   int64
	Refunded   int64
}

func (e EntryCancelledEvent) Type() EventType {
	return EventTypeEntryCancelled
}

// InstanceStateChangeEvent represents a head-to-head instance transition
type InstanceStateChangeEvent struct {
	InstanceID     int64
	CompetitionID  int64
	OldStatus      models.InstanceStatus
	NewStatus      models.InstanceStatus
	CurrentPlayers int
}

func (e InstanceStateChangeEvent) Type() EventType {
	return EventTypeInstanceStateChange
}

// WithdrawalStateChangeEvent represents a withdrawal request transition
type WithdrawalStateChangeEvent struct {
	RequestID int64
	UserID    int64
	Amount    int64
	OldStatus models.WithdrawalStatus
	NewStatus models.WithdrawalStatus
}

func (e WithdrawalStateChangeEvent) Type() EventType {
	return EventTypeWithdrawalStateChange
}

// StatusChangeEvent represents a lifecycle status persisted by the reconciliation sweep
type StatusChangeEvent struct {
	Subject   string
	ID        int64
	OldStatus models.Status
	NewStatus models.Status
}

func (e StatusChangeEvent) Type() EventType {
	return EventTypeStatusChange
}

// ReconciliationRequiredEvent represents an escalated money inconsistency
type ReconciliationRequiredEvent struct {
	IssueID   int64
	Kind      models.ReconciliationKind
	Reference string
	UserID    *int64
	Amount    int64
	Cause     string
}

func (e ReconciliationRequiredEvent) Type() EventType {
	return EventTypeReconciliationRequired
}
