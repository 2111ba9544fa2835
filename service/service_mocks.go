package service

import (
	"context"
	"time"

	"fantasygolf/models"

	"github.com/stretchr/testify/mock"
)

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Credit(ctx context.Context, userID int64, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	args := m.Called(ctx, userID, amount, reason, reference, metadata)
	return returned[*models.LedgerTransaction](args, 0), args.Error(1)
}

func (m *MockLedgerService) Debit(ctx context.Context, userID int64, amount int64, reason models.LedgerReason, reference string, metadata map[string]any) (*models.LedgerTransaction, error) {
	args := m.Called(ctx, userID, amount, reason, reference, metadata)
	return returned[*models.LedgerTransaction](args, 0), args.Error(1)
}

func (m *MockLedgerService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	return returned[*models.Wallet](args, 0), args.Error(1)
}

func (m *MockLedgerService) History(ctx context.Context, userID int64, limit int) ([]*models.LedgerTransaction, error) {
	args := m.Called(ctx, userID, limit)
	return returned[[]*models.LedgerTransaction](args, 0), args.Error(1)
}

func (m *MockLedgerService) Reconcile(ctx context.Context, userID int64) (*models.WalletReconciliation, error) {
	args := m.Called(ctx, userID)
	return returned[*models.WalletReconciliation](args, 0), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Ingest(ctx context.Context, event models.PaymentEvent) (*models.TopupResult, error) {
	args := m.Called(ctx, event)
	return returned[*models.TopupResult](args, 0), args.Error(1)
}

func (m *MockPaymentService) EscalateStuck(ctx context.Context, olderThan time.Time) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

// MockEntryService is a mock implementation of EntryService
type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) Enter(ctx context.Context, userID, competitionID, declaredFee int64, selections []int64) (*EntryResult, error) {
	args := m.Called(ctx, userID, competitionID, declaredFee, selections)
	return returned[*EntryResult](args, 0), args.Error(1)
}

func (m *MockEntryService) SubmitLineup(ctx context.Context, userID, entryID int64, selections []int64) (*models.Entry, error) {
	args := m.Called(ctx, userID, entryID, selections)
	return returned[*models.Entry](args, 0), args.Error(1)
}

func (m *MockEntryService) Cancel(ctx context.Context, userID, entryID int64) (*EntryResult, error) {
	args := m.Called(ctx, userID, entryID)
	return returned[*EntryResult](args, 0), args.Error(1)
}

func (m *MockEntryService) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Entry, error) {
	args := m.Called(ctx, userID, limit)
	return returned[[]*models.Entry](args, 0), args.Error(1)
}

// MockHeadToHeadService is a mock implementation of HeadToHeadService
type MockHeadToHeadService struct {
	mock.Mock
}

func (m *MockHeadToHeadService) QuickMatch(ctx context.Context, userID, competitionID int64) (*InstanceResult, error) {
	args := m.Called(ctx, userID, competitionID)
	return returned[*InstanceResult](args, 0), args.Error(1)
}

func (m *MockHeadToHeadService) Create(ctx context.Context, userID, competitionID int64) (*InstanceResult, error) {
	args := m.Called(ctx, userID, competitionID)
	return returned[*InstanceResult](args, 0), args.Error(1)
}

func (m *MockHeadToHeadService) Join(ctx context.Context, userID, instanceID int64) (*InstanceResult, error) {
	args := m.Called(ctx, userID, instanceID)
	return returned[*InstanceResult](args, 0), args.Error(1)
}

func (m *MockHeadToHeadService) Activate(ctx context.Context, instanceID int64) (*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, instanceID)
	return returned[*models.HeadToHeadInstance](args, 0), args.Error(1)
}

func (m *MockHeadToHeadService) Cancel(ctx context.Context, actorID int64, isAdmin bool, instanceID int64) (*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, actorID, isAdmin, instanceID)
	return returned[*models.HeadToHeadInstance](args, 0), args.Error(1)
}

func (m *MockHeadToHeadService) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockHeadToHeadService) ListOpen(ctx context.Context, competitionID int64, limit int) ([]*models.HeadToHeadInstance, error) {
	args := m.Called(ctx, competitionID, limit)
	return returned[[]*models.HeadToHeadInstance](args, 0), args.Error(1)
}

// MockWithdrawalService is a mock implementation of WithdrawalService
type MockWithdrawalService struct {
	mock.Mock
}

func (m *MockWithdrawalService) Request(ctx context.Context, userID, amount int64) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, amount)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalService) Approve(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, adminID, requestID, note)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalService) MarkPaid(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, adminID, requestID, note)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalService) Reject(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, adminID, requestID, note)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalService) Cancel(ctx context.Context, userID, requestID int64) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, requestID)
	return returned[*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalService) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, limit)
	return returned[[]*models.WithdrawalRequest](args, 0), args.Error(1)
}

func (m *MockWithdrawalService) ListPending(ctx context.Context, limit int) ([]*models.WithdrawalRequest, error) {
	args := m.Called(ctx, limit)
	return returned[[]*models.WithdrawalRequest](args, 0), args.Error(1)
}

// MockStatusService is a mock implementation of StatusService
type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) Reconcile(ctx context.Context) (*models.SweepReport, error) {
	args := m.Called(ctx)
	return returned[*models.SweepReport](args, 0), args.Error(1)
}

// MockReconciliationService is a mock implementation of ReconciliationService.
// Escalate returns the configured error, or builds one from the issue.
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Escalate(ctx context.Context, issue *models.ReconciliationIssue, cause error) *models.ReconciliationRequiredError {
	args := m.Called(ctx, issue, cause)
	if err := returned[*models.ReconciliationRequiredError](args, 0); err != nil {
		return err
	}
	return &models.ReconciliationRequiredError{Kind: issue.Kind, Cause: cause}
}

func (m *MockReconciliationService) ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationIssue, error) {
	args := m.Called(ctx, limit)
	return returned[[]*models.ReconciliationIssue](args, 0), args.Error(1)
}

func (m *MockReconciliationService) Resolve(ctx context.Context, adminID, issueID int64) (*models.ReconciliationIssue, error) {
	args := m.Called(ctx, adminID, issueID)
	return returned[*models.ReconciliationIssue](args, 0), args.Error(1)
}
