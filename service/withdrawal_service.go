package service

import (
	"context"
	"fmt"

	"fantasygolf/events"
	"fantasygolf/models"

	log "github.com/sirupsen/logrus"
)

type withdrawalService struct {
	uowFactory    UnitOfWorkFactory
	minWithdrawal int64
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(uowFactory UnitOfWorkFactory, minWithdrawal int64) WithdrawalService {
	return &withdrawalService{
		uowFactory:    uowFactory,
		minWithdrawal: minWithdrawal,
	}
}

// Request records a pending withdrawal. The balance check here is advisory; the
// funds are not reserved and the check is repeated under the wallet lock when
// the request is approved or paid.
func (s *withdrawalService) Request(ctx context.Context, userID, amount int64) (*models.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount", "must be positive")
	}
	if amount < s.minWithdrawal {
		return nil, models.NewValidationError("amount", fmt.Sprintf("minimum withdrawal is %s", models.FormatAmount(s.minWithdrawal)))
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wallet, err := uow.WalletRepository().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet.Balance < amount {
		return nil, &models.InsufficientFundsError{Balance: wallet.Balance, Required: amount}
	}

	request := &models.WithdrawalRequest{
		UserID: userID,
		Amount: amount,
		Status: models.WithdrawalStatusPending,
	}
	if err := uow.WithdrawalRepository().Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	uow.EventBus().Publish(events.WithdrawalStateChangeEvent{
		RequestID: request.ID,
		UserID:    userID,
		Amount:    amount,
		NewStatus: request.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"request_id": request.ID,
		"user_id":    userID,
		"amount":     amount,
	}).Info("Withdrawal requested")

	return request, nil
}

func (s *withdrawalService) Approve(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, requestID, models.WithdrawalStatusApproved, &adminID, note, nil)
}

func (s *withdrawalService) MarkPaid(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, requestID, models.WithdrawalStatusPaid, &adminID, note, nil)
}

func (s *withdrawalService) Reject(ctx context.Context, adminID, requestID int64, note string) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, requestID, models.WithdrawalStatusRejected, &adminID, note, nil)
}

func (s *withdrawalService) Cancel(ctx context.Context, userID, requestID int64) (*models.WithdrawalRequest, error) {
	return s.transition(ctx, requestID, models.WithdrawalStatusCancelled, nil, "", &userID)
}

// transition moves a request to next under its row lock. Leaving pending for
// approved or paid debits the wallet exactly once, keyed by the request id.
func (s *withdrawalService) transition(ctx context.Context, requestID int64, next models.WithdrawalStatus, reviewerID *int64, note string, ownerID *int64) (*models.WithdrawalRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	request, err := uow.WithdrawalRepository().LockByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock withdrawal request: %w", err)
	}
	if request == nil || (ownerID != nil && request.UserID != *ownerID) {
		return nil, models.ErrWithdrawalNotFound
	}
	if !request.CanTransitionTo(next) {
		return nil, fmt.Errorf("withdrawal %d cannot move from %s to %s: %w", requestID, request.Status, next, models.ErrInvalidTransition)
	}

	if request.RequiresDebit(next) {
		debit, err := debitWallet(ctx, uow, request.UserID, request.Amount, models.LedgerReasonWithdrawal,
			fmt.Sprintf("withdrawal:%d", request.ID), map[string]any{"withdrawal_id": request.ID})
		if err != nil {
			return nil, err
		}
		request.DebitTransactionID = &debit.ID
	}

	oldStatus := request.Status
	request.Status = next
	if reviewerID != nil {
		request.ReviewedBy = reviewerID
	}
	if note != "" {
		request.Note = &note
	}
	if err := uow.WithdrawalRepository().Update(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to update withdrawal request: %w", err)
	}

	uow.EventBus().Publish(events.WithdrawalStateChangeEvent{
		RequestID: request.ID,
		UserID:    request.UserID,
		Amount:    request.Amount,
		OldStatus: oldStatus,
		NewStatus: next,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"request_id": request.ID,
		"user_id":    request.UserID,
		"from":       oldStatus,
		"to":         next,
		"debited":    request.DebitTransactionID != nil,
	}).Info("Withdrawal request updated")

	return request, nil
}

func (s *withdrawalService) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.WithdrawalRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	requests, err := uow.WithdrawalRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	return requests, nil
}

func (s *withdrawalService) ListPending(ctx context.Context, limit int) ([]*models.WithdrawalRequest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	requests, err := uow.WithdrawalRepository().ListByStatus(ctx, models.WithdrawalStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	return requests, nil
}
