package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fantasygolf/events"
	"fantasygolf/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func demoPayment(id string, amount int64) models.PaymentEvent {
	return models.PaymentEvent{
		Provider:          models.PaymentProviderDemo,
		ProviderPaymentID: id,
		Amount:            amount,
		UserID:            1,
	}
}

func TestPaymentService_Ingest_Validation(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	svc := NewPaymentService(factory, new(MockReconciliationService), 100000)

	tests := []struct {
		name  string
		event models.PaymentEvent
		field string
	}{
		{"missing provider", models.PaymentEvent{ProviderPaymentID: "p1", Amount: 100, UserID: 1}, "provider"},
		{"missing payment id", models.PaymentEvent{Provider: "demo", Amount: 100, UserID: 1}, "providerPaymentId"},
		{"missing user", models.PaymentEvent{Provider: "demo", ProviderPaymentID: "p1", Amount: 100}, "userId"},
		{"zero amount", demoPayment("p1", 0), "amount"},
		{"negative amount", demoPayment("p1", -5), "amount"},
		{"above maximum", demoPayment("p1", 100001), "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(ctx, tt.event)
			var validation *models.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
	factory.AssertNotCalled(t, "Create")
}

func TestPaymentService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("new payment is credited once", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		event := demoPayment("p1", 2000)
		uow.Payments.On("InsertIfAbsent", ctx, mock.AnythingOfType("*models.ExternalPayment")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.ExternalPayment).ID = 5
			}).Return(true, nil)
		uow.Wallets.On("LockByUserID", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1, Balance: 500}, nil)
		expectCredit(uow, 10, 2000, 2500, 9, event.Reference())
		uow.Payments.On("MarkCompleted", ctx, int64(5), int64(9)).Return(nil)
		svc := NewPaymentService(factory, new(MockReconciliationService), 0)

		result, err := svc.Ingest(ctx, event)
		require.NoError(t, err)
		assert.False(t, result.AlreadyProcessed)
		assert.Equal(t, int64(2500), result.NewBalance)

		ingested := uow.Recorded().OfType(events.EventTypePaymentIngested)
		require.Len(t, ingested, 1)
		assert.False(t, ingested[0].(events.PaymentIngestedEvent).AlreadyProcessed)
		assert.Len(t, uow.Recorded().OfType(events.EventTypeBalanceChange), 1)
		uow.Payments.AssertExpectations(t)
	})

	t.Run("replay returns current balance without crediting", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		uow.Payments.On("InsertIfAbsent", ctx, mock.Anything).Return(false, nil)
		uow.Wallets.On("GetOrCreate", ctx, int64(1)).Return(&models.Wallet{ID: 10, UserID: 1, Balance: 2500}, nil)
		svc := NewPaymentService(factory, new(MockReconciliationService), 0)

		result, err := svc.Ingest(ctx, demoPayment("p1", 2000))
		require.NoError(t, err)
		assert.True(t, result.AlreadyProcessed)
		assert.Equal(t, int64(2500), result.NewBalance)

		uow.Wallets.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
		uow.Ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		ingested := uow.Recorded().OfType(events.EventTypePaymentIngested)
		require.Len(t, ingested, 1)
		assert.True(t, ingested[0].(events.PaymentIngestedEvent).AlreadyProcessed)
	})

	t.Run("failed credit is flagged and escalated", func(t *testing.T) {
		uow, factory := newMockUoW(t)
		recon := new(MockReconciliationService)
		event := demoPayment("p2", 2000)
		cause := errors.New("deadlock detected")
		uow.Payments.On("InsertIfAbsent", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.ExternalPayment).ID = 6
			}).Return(true, nil)
		uow.Wallets.On("LockByUserID", ctx, int64(1)).Return(nil, cause)
		uow.Payments.On("MarkCreditFailed", mock.Anything, int64(6)).Return(true, nil)
		recon.On("Escalate", mock.Anything, mock.MatchedBy(func(issue *models.ReconciliationIssue) bool {
			return issue.Kind == models.ReconciliationPaymentCredit &&
				issue.Reference == event.Reference() &&
				issue.Amount == 2000
		}), mock.Anything).Return(nil)
		svc := NewPaymentService(factory, recon, 0)

		_, err := svc.Ingest(ctx, event)
		var required *models.ReconciliationRequiredError
		require.ErrorAs(t, err, &required)
		assert.Equal(t, models.ReconciliationPaymentCredit, required.Kind)
		assert.ErrorIs(t, err, cause)
		uow.Payments.AssertExpectations(t)
		recon.AssertExpectations(t)
	})
}

func TestPaymentService_EscalateStuck(t *testing.T) {
	ctx := context.Background()
	uow, factory := newMockUoW(t)
	recon := new(MockReconciliationService)
	cutoff := testNow.Add(-15 * time.Minute)

	stuck := []*models.ExternalPayment{
		{ID: 1, Provider: "demo", ProviderPaymentID: "a", UserID: 3, Amount: 100, CreatedAt: cutoff.Add(-time.Hour)},
		{ID: 2, Provider: "demo", ProviderPaymentID: "b", UserID: 4, Amount: 200, CreatedAt: cutoff.Add(-time.Hour)},
	}
	uow.Payments.On("ListStuck", ctx, cutoff).Return(stuck, nil)
	uow.Payments.On("MarkCreditFailed", ctx, int64(1)).Return(true, nil)
	// Credited concurrently after being listed
	uow.Payments.On("MarkCreditFailed", ctx, int64(2)).Return(false, nil)
	recon.On("Escalate", ctx, mock.MatchedBy(func(issue *models.ReconciliationIssue) bool {
		return issue.Kind == models.ReconciliationStuckPayment && issue.Reference == "topup:demo:a"
	}), mock.Anything).Return(nil)
	svc := NewPaymentService(factory, recon, 0)

	count, err := svc.EscalateStuck(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	recon.AssertNumberOfCalls(t, "Escalate", 1)
	uow.AssertCalled(t, "Commit")
}
