package service

import (
	"context"
	"time"

	"fantasygolf/events"
	"fantasygolf/models"
)

// WalletRepository defines the interface for wallet data access
type WalletRepository interface {
	// GetByUserID retrieves a wallet without locking it; nil when the user has none
	GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error)

	// GetOrCreate returns the user's wallet, creating an empty one on first use
	GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error)

	// LockByUserID returns the user's wallet, creating it if needed, and holds its
	// row lock until the transaction ends
	LockByUserID(ctx context.Context, userID int64) (*models.Wallet, error)

	// AddBalance adds to a wallet's balance and returns the new balance
	AddBalance(ctx context.Context, walletID int64, amount int64) (int64, error)

	// DeductBalance deducts from a wallet's balance, failing with
	// InsufficientFundsError if the balance is too low
	DeductBalance(ctx context.Context, walletID int64, amount int64) (int64, error)
}

// LedgerRepository defines the interface for the append-only ledger
type LedgerRepository interface {
	// Append records a ledger transaction, filling ID and CreatedAt
	Append(ctx context.Context, tx *models.LedgerTransaction) error

	// GetByReference returns the transaction carrying reference, or nil
	GetByReference(ctx context.Context, reference string) (*models.LedgerTransaction, error)

	// ListByWallet returns the most recent transactions for a wallet
	ListByWallet(ctx context.Context, walletID int64, limit int) ([]*models.LedgerTransaction, error)

	// SumByWallet returns the sum of deltas and the number of transactions for a wallet
	SumByWallet(ctx context.Context, walletID int64) (sum int64, count int64, err error)
}

// PaymentRepository defines the interface for external payment records
type PaymentRepository interface {
	// InsertIfAbsent stores the payment unless (provider, provider_payment_id) exists.
	// Returns false when the payment was already recorded.
	InsertIfAbsent(ctx context.Context, payment *models.ExternalPayment) (bool, error)

	// Get retrieves a payment by provider and provider payment id
	Get(ctx context.Context, provider, providerPaymentID string) (*models.ExternalPayment, error)

	// MarkCompleted links the payment to its ledger credit
	MarkCompleted(ctx context.Context, paymentID int64, ledgerTransactionID int64) error

	// MarkCreditFailed flags a received payment whose credit did not happen.
	// Returns false when the payment had already left the received state.
	MarkCreditFailed(ctx context.Context, paymentID int64) (bool, error)

	// ListStuck returns payments still in received state created before olderThan
	ListStuck(ctx context.Context, olderThan time.Time) ([]*models.ExternalPayment, error)
}

// TournamentRepository defines the interface for tournament metadata
type TournamentRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Tournament, error)

	// ListNonTerminal returns tournaments not yet completed or cancelled
	ListNonTerminal(ctx context.Context) ([]*models.Tournament, error)

	// LockByID retrieves a tournament holding its row lock
	LockByID(ctx context.Context, id int64) (*models.Tournament, error)

	UpdateStatus(ctx context.Context, id int64, status models.Status) error
}

// CompetitionRepository defines the interface for competition metadata and rosters
type CompetitionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Competition, error)

	// LockByID retrieves a competition holding its row lock
	LockByID(ctx context.Context, id int64) (*models.Competition, error)

	// ListNonTerminal returns competitions not yet completed or cancelled
	ListNonTerminal(ctx context.Context) ([]*models.Competition, error)

	UpdateStatus(ctx context.Context, id int64, status models.Status) error

	// MissingFromRoster returns the golfer ids that are not on the competition roster
	MissingFromRoster(ctx context.Context, competitionID int64, golferIDs []int64) ([]int64, error)
}

// EntryRepository defines the interface for entry data access
type EntryRepository interface {
	// Create inserts an entry. Returns models.ErrDuplicateEntry when the user
	// already holds an active entry for the same target.
	Create(ctx context.Context, entry *models.Entry) error

	GetByID(ctx context.Context, id int64) (*models.Entry, error)

	// LockByID retrieves an entry holding its row lock
	LockByID(ctx context.Context, id int64) (*models.Entry, error)

	// GetActiveByUserAndTarget returns the user's non-cancelled entry for target, or nil
	GetActiveByUserAndTarget(ctx context.Context, userID int64, target models.EntryTarget) (*models.Entry, error)

	// CountActiveByTarget counts non-cancelled entries for target
	CountActiveByTarget(ctx context.Context, target models.EntryTarget) (int, error)

	// ListActiveByTarget returns the non-cancelled entries for target
	ListActiveByTarget(ctx context.Context, target models.EntryTarget) ([]*models.Entry, error)

	// ListByUser returns the user's entries, newest first
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Entry, error)

	UpdateStatus(ctx context.Context, id int64, status models.EntryStatus) error

	// ReplaceSelections stores the golfer lineup for an entry
	ReplaceSelections(ctx context.Context, entryID int64, golferIDs []int64) error
}

// HeadToHeadRepository defines the interface for head-to-head instances
type HeadToHeadRepository interface {
	// Create inserts an instance, filling ID and CreatedAt
	Create(ctx context.Context, instance *models.HeadToHeadInstance) error

	GetByID(ctx context.Context, id int64) (*models.HeadToHeadInstance, error)

	// LockByID retrieves an instance holding its row lock
	LockByID(ctx context.Context, id int64) (*models.HeadToHeadInstance, error)

	// LockOldestOpen locks the oldest open instance of a competition not created by
	// excludeUserID, skipping instances locked by concurrent joiners. Nil when none.
	LockOldestOpen(ctx context.Context, competitionID int64, excludeUserID int64) (*models.HeadToHeadInstance, error)

	// Update persists status, player count and lifecycle timestamps
	Update(ctx context.Context, instance *models.HeadToHeadInstance) error

	// ListOpen returns the open instances of a competition, oldest first
	ListOpen(ctx context.Context, competitionID int64, limit int) ([]*models.HeadToHeadInstance, error)

	// ListStale returns pending or open instances whose competition no longer accepts entries
	ListStale(ctx context.Context) ([]*models.HeadToHeadInstance, error)
}

// WithdrawalRepository defines the interface for withdrawal requests
type WithdrawalRepository interface {
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error)

	// LockByID retrieves a request holding its row lock
	LockByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error)

	// Update persists status, reviewer, note and debit link
	Update(ctx context.Context, request *models.WithdrawalRequest) error

	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]*models.WithdrawalRequest, error)
}

// ReconciliationRepository defines the interface for escalated issues
type ReconciliationRepository interface {
	// Create records an issue. An open issue with the same kind and reference is
	// reused and returned instead.
	Create(ctx context.Context, issue *models.ReconciliationIssue) error

	GetByID(ctx context.Context, id int64) (*models.ReconciliationIssue, error)
	ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationIssue, error)

	// Resolve closes an open issue; false when it was already resolved
	Resolve(ctx context.Context, id int64, resolvedBy int64) (bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Savepoint runs fn inside a savepoint; when fn fails only its writes are undone
	Savepoint(ctx context.Context, fn func() error) error

	// Repository getters
	WalletRepository() WalletRepository
	LedgerRepository() LedgerRepository
	PaymentRepository() PaymentRepository
	TournamentRepository() TournamentRepository
	CompetitionRepository() CompetitionRepository
	EntryRepository() EntryRepository
	HeadToHeadRepository() HeadToHeadRepository
	WithdrawalRepository() WithdrawalRepository
	ReconciliationRepository() ReconciliationRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// LedgerService defines the interface for wallet operations
type LedgerService interface {
	// Credit adds amount to the user's wallet. A non-empty reference makes the
	// credit idempotent. Metadata is stored on the ledger transaction.
	Credit(ctx context.Context, userID int64, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error)

	// Debit removes amount from the user's wallet or fails with InsufficientFundsError
	Debit(ctx context.Context, userID int64, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error)

	// GetWallet returns the user's wallet, creating it on first use
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)

	// History returns the user's most recent ledger transactions
	History(ctx context.Context, userID int64, limit int) ([]*models.LedgerTransaction, error)

	// Reconcile compares the wallet balance against the sum of its ledger
	Reconcile(ctx context.Context, userID int64) (*models.WalletReconciliation, error)
}

// PaymentService defines the interface for external payment ingestion
type PaymentService interface {
	// Ingest converts a payment event into at most one ledger credit
	Ingest(ctx context.Context, event models.PaymentEvent) (*models.TopupResult, error)

	// EscalateStuck escalates payments whose credit phase never ran
	EscalateStuck(ctx context.Context, olderThan time.Time) (int, error)
}

// EntryResult is the outcome of a paid entry
type EntryResult struct {
	Entry      *models.Entry
	NewBalance int64
}

// EntryService defines the interface for competition entries
type EntryService interface {
	// Enter debits the entry fee and creates an entry in a pool competition
	Enter(ctx context.Context, userID, competitionID, declaredFee int64, selections []int64) (*EntryResult, error)

	// SubmitLineup stores golfer picks for an entry while registration is open
	SubmitLineup(ctx context.Context, userID, entryID int64, selections []int64) (*models.Entry, error)

	// Cancel cancels a pool entry while registration is open and refunds the fee
	Cancel(ctx context.Context, userID, entryID int64) (*EntryResult, error)

	// ListByUser returns the user's entries
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Entry, error)
}

// InstanceResult is the outcome of a matchmaking action
type InstanceResult struct {
	Instance   *models.HeadToHeadInstance
	Entry      *models.Entry
	NewBalance int64
	Created    bool
}

// HeadToHeadService defines the interface for two-player matchmaking
type HeadToHeadService interface {
	// QuickMatch joins an open instance of the competition or creates a pending one
	QuickMatch(ctx context.Context, userID, competitionID int64) (*InstanceResult, error)

	// Create always opens a new pending instance with the caller as first entrant
	Create(ctx context.Context, userID, competitionID int64) (*InstanceResult, error)

	// Join takes the remaining slot of an open instance
	Join(ctx context.Context, userID, instanceID int64) (*InstanceResult, error)

	// Activate moves a pending instance to open; already open instances are returned unchanged
	Activate(ctx context.Context, instanceID int64) (*models.HeadToHeadInstance, error)

	// Cancel cancels a pending or open instance and refunds its entrant.
	// Only the creator or an admin may cancel.
	Cancel(ctx context.Context, actorID int64, isAdmin bool, instanceID int64) (*models.HeadToHeadInstance, error)

	// ExpireStale cancels unfilled instances whose competition stopped accepting entries
	ExpireStale(ctx context.Context) (int, error)

	// ListOpen returns the matchmaking board for a competition
	ListOpen(ctx context.Context, competitionID int64, limit int) ([]*models.HeadToHeadInstance, error)
}

// WithdrawalService defines the interface for withdrawal requests
type WithdrawalService interface {
	// Request records a pending withdrawal without touching the balance
	Request(ctx context.Context, userID, amount int64) (*models.WithdrawalRequest, error)

	// Approve debits the wallet and marks the request approved
	Approve(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error)

	// MarkPaid marks a request paid, debiting first if it was still pending
	MarkPaid(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error)

	// Reject rejects a pending request
	Reject(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error)

	// Cancel lets the owner withdraw a pending request
	Cancel(ctx context.Context, userID, requestID int64) (*models.WithdrawalRequest, error)

	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.WithdrawalRequest, error)
	ListPending(ctx context.Context, limit int) ([]*models.WithdrawalRequest, error)
}

// StatusService defines the interface for the lifecycle reconciliation sweep
type StatusService interface {
	// Reconcile recomputes and persists lifecycle status for all non-terminal
	// tournaments and competitions. Safe to run at any frequency.
	Reconcile(ctx context.Context) (*models.SweepReport, error)
}

// ReconciliationService defines the interface for escalated money issues
type ReconciliationService interface {
	// Escalate records an issue for out-of-band resolution and returns the error
	// to surface to the caller
	Escalate(ctx context.Context, issue *models.ReconciliationIssue, cause error) *models.ReconciliationRequiredError

	ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationIssue, error)
	Resolve(ctx context.Context, adminID, issueID int64) (*models.ReconciliationIssue, error)
}
