package service

import (
	"context"
	"fmt"
	"time"

	"fantasygolf/events"
	"fantasygolf/models"

	log "github.com/sirupsen/logrus"
)

type paymentService struct {
	uowFactory     UnitOfWorkFactory
	reconciliation ReconciliationService
	maxTopup       int64
}

// NewPaymentService creates a new payment ingestion service. A maxTopup of zero
// disables the upper bound.
func NewPaymentService(uowFactory UnitOfWorkFactory, reconciliation ReconciliationService, maxTopup int64) PaymentService {
	return &paymentService{
		uowFactory:     uowFactory,
		reconciliation: reconciliation,
		maxTopup:       maxTopup,
	}
}

func (s *paymentService) validate(event models.PaymentEvent) error {
	if event.Provider == "" {
		return models.NewValidationError("provider", "is required")
	}
	if event.ProviderPaymentID == "" {
		return models.NewValidationError("providerPaymentId", "is required")
	}
	if event.UserID <= 0 {
		return models.NewValidationError("userId", "is required")
	}
	if event.Amount <= 0 {
		return models.NewValidationError("amount", "must be positive")
	}
	if s.maxTopup > 0 && event.Amount > s.maxTopup {
		return models.NewValidationError("amount", fmt.Sprintf("must not exceed %s", models.FormatAmount(s.maxTopup)))
	}
	return nil
}

// Ingest runs in two transactions. The first records the payment, and the
// unique (provider, provider_payment_id) key makes that record the dedup fence:
// a replay inserts nothing and short-circuits. The second credits the wallet and
// marks the record completed. A failed credit leaves the record behind without a
// credit; it is flagged and escalated, never retried here.
func (s *paymentService) Ingest(ctx context.Context, event models.PaymentEvent) (*models.TopupResult, error) {
	if err := s.validate(event); err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"provider":            event.Provider,
		"provider_payment_id": event.ProviderPaymentID,
		"user_id":             event.UserID,
		"amount":              event.Amount,
	})

	payment, inserted, err := s.record(ctx, event)
	if err != nil {
		return nil, err
	}

	if !inserted {
		logger.Warn("Payment already processed, skipping credit")
		balance, err := s.balance(ctx, event.UserID)
		if err != nil {
			return nil, err
		}
		return &models.TopupResult{NewBalance: balance, AlreadyProcessed: true}, nil
	}

	newBalance, err := s.credit(ctx, payment, event)
	if err != nil {
		return nil, s.creditFailed(ctx, payment, event, err)
	}

	logger.WithField("new_balance", newBalance).Info("Payment credited")
	return &models.TopupResult{NewBalance: newBalance}, nil
}

func (s *paymentService) record(ctx context.Context, event models.PaymentEvent) (*models.ExternalPayment, bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	payment := &models.ExternalPayment{
		Provider:          event.Provider,
		ProviderPaymentID: event.ProviderPaymentID,
		UserID:            event.UserID,
		Amount:            event.Amount,
		Status:            models.PaymentStatusReceived,
	}

	inserted, err := uow.PaymentRepository().InsertIfAbsent(ctx, payment)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record payment: %w", err)
	}

	if !inserted {
		uow.EventBus().Publish(events.PaymentIngestedEvent{
			Provider:          event.Provider,
			ProviderPaymentID: event.ProviderPaymentID,
			UserID:            event.UserID,
			Amount:            event.Amount,
			AlreadyProcessed:  true,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return payment, inserted, nil
}

func (s *paymentService) credit(ctx context.Context, payment *models.ExternalPayment, event models.PaymentEvent) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tx, err := creditWallet(ctx, uow, event.UserID, event.Amount, models.LedgerReasonTopup, event.Reference(), map[string]any{
		"provider":            event.Provider,
		"provider_payment_id": event.ProviderPaymentID,
		"payment_id":          payment.ID,
	})
	if err != nil {
		return 0, err
	}

	if err := uow.PaymentRepository().MarkCompleted(ctx, payment.ID, tx.ID); err != nil {
		return 0, err
	}

	uow.EventBus().Publish(events.PaymentIngestedEvent{
		PaymentID:         payment.ID,
		Provider:          event.Provider,
		ProviderPaymentID: event.ProviderPaymentID,
		UserID:            event.UserID,
		Amount:            event.Amount,
	})

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tx.ResultingBalance, nil
}

func (s *paymentService) creditFailed(ctx context.Context, payment *models.ExternalPayment, event models.PaymentEvent, cause error) error {
	ctx = context.WithoutCancel(ctx)

	if err := s.markCreditFailed(ctx, payment.ID); err != nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("Failed to flag payment as credit_failed")
	}

	userID := event.UserID
	return s.reconciliation.Escalate(ctx, &models.ReconciliationIssue{
		Kind:      models.ReconciliationPaymentCredit,
		Reference: event.Reference(),
		UserID:    &userID,
		Amount:    event.Amount,
		Detail: map[string]any{
			"payment_id": payment.ID,
			"provider":   event.Provider,
		},
	}, cause)
}

func (s *paymentService) markCreditFailed(ctx context.Context, paymentID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.PaymentRepository().MarkCreditFailed(ctx, paymentID); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *paymentService) balance(ctx context.Context, userID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wallet, err := uow.WalletRepository().GetOrCreate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return wallet.Balance, nil
}

// EscalateStuck flags payments recorded before olderThan whose credit phase never
// ran. They are escalated for an operator and are not credited automatically.
func (s *paymentService) EscalateStuck(ctx context.Context, olderThan time.Time) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stuck, err := uow.PaymentRepository().ListStuck(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck payments: %w", err)
	}

	var flagged []*models.ExternalPayment
	for _, payment := range stuck {
		marked, err := uow.PaymentRepository().MarkCreditFailed(ctx, payment.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to flag stuck payment %d: %w", payment.ID, err)
		}
		// A concurrent credit finished first
		if !marked {
			continue
		}
		flagged = append(flagged, payment)
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, payment := range flagged {
		userID := payment.UserID
		event := models.PaymentEvent{Provider: payment.Provider, ProviderPaymentID: payment.ProviderPaymentID}
		s.reconciliation.Escalate(ctx, &models.ReconciliationIssue{
			Kind:      models.ReconciliationStuckPayment,
			Reference: event.Reference(),
			UserID:    &userID,
			Amount:    payment.Amount,
			Detail: map[string]any{
				"payment_id":  payment.ID,
				"received_at": payment.CreatedAt,
			},
		}, fmt.Errorf("payment %d received at %s was never credited", payment.ID, payment.CreatedAt.Format(time.RFC3339)))
	}

	return len(flagged), nil
}
