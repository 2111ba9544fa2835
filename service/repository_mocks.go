package service

import (
	"context"
	"sync"
	"time"

	"fantasygolf/events"
	"fantasygolf/models"

	"github.com/stretchr/testify/mock"
)

// returned reads a typed mock return value, tolerating nil
func returned[T any](args mock.Arguments, index int) T {
	if v, ok := args.Get(index).(T); ok {
		return v
	}
	var zero T
	return zero
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	return returned[*models.Wallet](args, 0), args.Error(1)
}

func (m *MockWalletRepository) GetOrCreate(ctx context.Context, userID int64) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	return returned[*models.Wallet](args, 0), args.Error(1)
}

func (m *MockWalletRepository) LockByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	return returned[*models.Wallet](args, 0), args.Error(1)
}

func (m *MockWalletRepository) AddBalance(ctx context.Context, walletID int64, amount int64) (int64, error) {
	args := m.Called(ctx, walletID, amount)
	return returned[int64](args, 0), args.Error(1)
}

func (m *MockWalletRepository) DeductBalance(ctx context.Context, walletID int64, amount int64) (int64, error) {
	args := m.Called(ctx, walletID, amount)
	return returned[int64](args, 0), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, tx *models.LedgerTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByReference(ctx context.Context, reference string) (*models.LedgerTransaction, error) {
	args := m.Called(ctx, reference)
	return returned[*models.LedgerTransaction](args, 0), args.Error(1)
}

func (m *MockLedgerRepository) ListByWallet(ctx context.Context, walletID int64, limit int) ([]*models.LedgerTransaction, error) {
	args := m.Called(ctx, walletID, limit)
	return returned[[]*models.LedgerTransaction](args, 0), args.Error(1)
}

func (m *MockLedgerRepository) SumByWallet(ctx context.Context, walletID int64) (int64, int64, error) {
	args := m.Called(ctx, walletID)
	return returned[int64](args, 0), returned[int64](args, 1), args.Error(2)
}

// MockPaymentRepository is a mock implementation of PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) InsertIfAbsent(ctx context.Context, payment *models.ExternalPayment) (bool, error) {
	args := m.Called(ctx, payment)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Get(ctx context.Context, provider, providerPaymentID string) (*models.ExternalPayment, error) {
	args := m.Called(ctx, provider, providerPaymentID)
	return returned[*models.ExternalPayment](args, 0), args.Error(1)
}

func (m *MockPaymentRepository) MarkCompleted(ctx context.Context, paymentID int64, ledgerTransactionID int64) error {
	args := m.Called(ctx, paymentID, ledgerTransactionID)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkCreditFailed(ctx context.Context, paymentID int64) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) ListStuck(ctx context.Context, olderThan time.Time) ([]*models.ExternalPayment, error) {
	args := m.Called(ctx, olderThan)
	return returned[[]*models.ExternalPayment](args, 0), args.Error(1)
}

// MockTournamentRepository is a mock implementation of TournamentRepository
type MockTournamentRepository struct {
	mock.Mock
}

func (m *MockTournamentRepository) GetByID(ctx context.Context, id int64) (*models.Tournament, error) {
	args := m.Called(ctx, id)
	return returned[*models.Tournament](args, 0), args.Error(1)
}

func (m *MockTournamentRepository) ListNonTerminal(ctx context.Context) ([]*models.Tournament, error) {
	args := m.Called(ctx)
	return returned[[]*models.Tournament](args, 0), args.Error(1)
}

func (m *MockTournamentRepository) LockByID(ctx context.Context, id int64) (*models.Tournament, error) {
	args := m.Called(ctx, id)
	return returned[*models.Tournament](args, 0), args.Error(1)
}

func (m *MockTournamentRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockCompetitionRepository is a mock implementation of CompetitionRepository
type MockCompetitionRepository struct {
	mock.Mock
}

func (m *MockCompetitionRepository) GetByID(ctx context.Context, id int64) (*models.Competition, error) {
	args := m.Called(ctx, id)
	return returned[*models.Competition](args, 0), args.Error(1)
}

func (m *MockCompetitionRepository) LockByID(ctx context.Context, id int64) (*models.Competition, error) {
	args := m.Called(ctx, id)
	return returned[*models.Competition](args, 0), args.Error(1)
}

func (m *MockCompetitionRepository) ListNonTerminal(ctx context.Context) ([]*models.Competition, error) {
	args := m.Called(ctx)
	return returned[[]*models.Competition](args, 0), args.Error(1)
}

func (m *MockCompetitionRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockCompetitionRepository) MissingFromRoster(ctx context.Context, competitionID int64, golferIDs []int64) ([]int64, error) {
	args := m.Called(ctx, competitionID, golferIDs)
	return returned[[]int64](args, 0), args.Error(1)
}

// MockEntryRepository is a mock implementation of EntryRepository
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *models.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepository) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	args := m.Called(ctx, id)
	return returned[*models.Entry](args, 0), args.Error(1)
}

func (m *MockEntryRepository) LockByID(ctx context.Context, id int64) (*models.Entry, error) {
	args := m.Called(ctx, id)
	return returned[*models.Entry](args, 0), args.Error(1)
}

func (m *MockEntryRepository) GetActiveByUserAndTarget(ctx context.Context, userID int64, target models.EntryTarget) (*models.Entry, error) {
	args := m.Called(ctx, userID, target)
	return returned[*models.Entry](args, 0), args.Error(1)
}

func (m *MockEntryRepository) CountActiveByTarget(ctx context.Context, target models.EntryTarget) (int, error) {
	args := m.Called(ctx, target)
	return args.Int(0), args.Error(1)
}

func (m *MockEntryRepository) ListActiveByTarget(ctx context.Context, target models.EntryTarget) ([]*models.Entry, error) {
	args := m.Called(ctx, target)
	return returned[[]*models.Entry](args, 0), args.Error(1)
}

func (m *MockEntryRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Entry, error) {
	args := m.Called(ctx, userID, limit)
	return returned[[]*models.Entry](args, 0), args.Error(1)
}

func (m *MockEntryRepository) UpdateStatus(ctx context.Context, id int64, status models.EntryStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockEntryRepository) ReplaceSelections(ctx context.Context, entryID int64, golferIDs []int64) error {
	args := m.Called(ctx, entryID, golferIDs)
	return args.Error(0)
}

// MockHeadToHeadRepository is a mock implementation of HeadToHeadRepository
type MockHeadToHeadRepository struct {
	mock.Mock
}

func (m *MockHeadToHeadRepository) Create(ctx context.Context, instance *models.HeadToHeadInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *MockHeadToHeadRepository) GetByID(ctx context.Context, id int64) (*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, id)
	return returned[*models.HeadToHeadInstance](args, 0), args.Error(1)
}

func (m *MockHeadToHeadRepository) LockByID(ctx context.Context, id int64) (*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, id)
	return returned[*models.HeadToHeadInstance](args, 0), args.Error(1)
}

func (m *MockHeadToHeadRepository) LockOldestOpen(ctx context.Context, competitionID int64, excludeUserID int64) (*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, competitionID, excludeUserID)
	return returned[*models.HeadToHeadInstance](args, 0), args.Error(1)
}

func (m *MockHeadToHeadRepository) Update(ctx context.Context, instance *models.HeadToHeadInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *MockHeadToHeadRepository) ListOpen(ctx context.Context, competitionID int64, limit int) ([]*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, competitionID, limit)
	return returned[[]*models.HeadToHeadInstance](args, 0), args.Error(1)
}

func (m *MockHeadToHeadRepository) ListStale(ctx context.Context) ([]*models.HeadToHeadInstance, error) {
	args := m.Called(ctx)
	return returned[[]*models.HeadToHeadInstance](args, 0), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalRepository) LockByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalRepository) Update(ctx context.Context, request *models.WithdrawalRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, limit)
	return returned[[]*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalRepository) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]*models.WithdrawalRequest, error) {
	args := m.Called(ctx, status, limit)
	return returned[[]*models.WithdrawalRequest](args, 0), args.Error(1)
}

// MockReconciliationRepository is a mock implementation of ReconciliationRepository
type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) Create(ctx context.Context, issue *models.ReconciliationIssue) error {
	args := m.Called(ctx, issue)
	return args.Error(0)
}

func (m *MockReconciliationRepository) GetByID(ctx context.Context, id int64) (*models.ReconciliationIssue, error) {
	args := m.Called(ctx, id)
	return returned[*models.ReconciliationIssue](args, 0), args.Error(1)
}

func (m *MockReconciliationRepository) ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationIssue, error) {
	args := m.Called(ctx, limit)
	return returned[[]*models.ReconciliationIssue](args, 0), args.Error(1)
}

func (m *MockReconciliationRepository) Resolve(ctx context.Context, id int64, resolvedBy int64) (bool, error) {
	args := m.Called(ctx, id, resolvedBy)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// RecordingEventPublisher collects published events for assertions
type RecordingEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingEventPublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns the events published so far
func (p *RecordingEventPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// OfType returns the published events of the given type
func (p *RecordingEventPublisher) OfType(eventType events.EventType) []events.Event {
	var matched []events.Event
	for _, e := range p.Events() {
		if e.Type() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and
// Rollback are expectations; repository getters return the configured mocks.
type MockUnitOfWork struct {
	mock.Mock

	Wallets         *MockWalletRepository
	Ledger          *MockLedgerRepository
	Payments        *MockPaymentRepository
	Tournaments     *MockTournamentRepository
	Competitions    *MockCompetitionRepository
	Entries         *MockEntryRepository
	HeadToHead      *MockHeadToHeadRepository
	Withdrawals     *MockWithdrawalRepository
	Reconciliations *MockReconciliationRepository
	Publisher       EventPublisher

	SavepointCalls int
}

// NewMockUnitOfWork creates a unit of work wired to fresh repository mocks and
// a recording event publisher
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Wallets:         new(MockWalletRepository),
		Ledger:          new(MockLedgerRepository),
		Payments:        new(MockPaymentRepository),
		Tournaments:     new(MockTournamentRepository),
		Competitions:    new(MockCompetitionRepository),
		Entries:         new(MockEntryRepository),
		HeadToHead:      new(MockHeadToHeadRepository),
		Withdrawals:     new(MockWithdrawalRepository),
		Reconciliations: new(MockReconciliationRepository),
		Publisher:       new(RecordingEventPublisher),
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// Savepoint runs fn directly; mocks have nothing to roll back
func (m *MockUnitOfWork) Savepoint(ctx context.Context, fn func() error) error {
	m.SavepointCalls++
	return fn()
}

func (m *MockUnitOfWork) WalletRepository() WalletRepository                 { return m.Wallets }
func (m *MockUnitOfWork) LedgerRepository() LedgerRepository                 { return m.Ledger }
func (m *MockUnitOfWork) PaymentRepository() PaymentRepository               { return m.Payments }
func (m *MockUnitOfWork) TournamentRepository() TournamentRepository         { return m.Tournaments }
func (m *MockUnitOfWork) CompetitionRepository() CompetitionRepository       { return m.Competitions }
func (m *MockUnitOfWork) EntryRepository() EntryRepository                   { return m.Entries }
func (m *MockUnitOfWork) HeadToHeadRepository() HeadToHeadRepository         { return m.HeadToHead }
func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository         { return m.Withdrawals }
func (m *MockUnitOfWork) ReconciliationRepository() ReconciliationRepository { return m.Reconciliations }
func (m *MockUnitOfWork) EventBus() EventPublisher                           { return m.Publisher }

// Recorded returns the recording publisher, or nil if another publisher was set
func (m *MockUnitOfWork) Recorded() *RecordingEventPublisher {
	p, _ := m.Publisher.(*RecordingEventPublisher)
	return p
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
