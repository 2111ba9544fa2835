package service

import (
	"context"
	"fmt"

	"fantasygolf/events"
	"fantasygolf/models"

	log "github.com/sirupsen/logrus"
)

type reconciliationService struct {
	uowFactory UnitOfWorkFactory
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(uowFactory UnitOfWorkFactory) ReconciliationService {
	return &reconciliationService{
		uowFactory: uowFactory,
	}
}

// Escalate records the issue and queues a ReconciliationRequiredEvent. It runs
// detached from the caller's cancellation: an escalation must never be dropped
// because the request that triggered it timed out.
func (s *reconciliationService) Escalate(ctx context.Context, issue *models.ReconciliationIssue, cause error) *models.ReconciliationRequiredError {
	ctx = context.WithoutCancel(ctx)

	if issue.Detail == nil {
		issue.Detail = map[string]any{}
	}
	if cause != nil {
		issue.Detail["cause"] = cause.Error()
	}

	fields := log.Fields{
		"reconciliation_required": true,
		"kind":                    issue.Kind,
		"reference":               issue.Reference,
		"amount":                  issue.Amount,
	}
	if issue.UserID != nil {
		fields["user_id"] = *issue.UserID
	}

	if err := s.record(ctx, issue, cause); err != nil {
		log.WithFields(fields).WithError(err).Errorf("Failed to persist reconciliation issue, cause: %v", cause)
	} else {
		fields["issue_id"] = issue.ID
		log.WithFields(fields).WithError(cause).Error("Reconciliation required")
	}

	return &models.ReconciliationRequiredError{
		IssueID: issue.ID,
		Kind:    issue.Kind,
		Cause:   cause,
	}
}

func (s *reconciliationService) record(ctx context.Context, issue *models.ReconciliationIssue, cause error) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ReconciliationRepository().Create(ctx, issue); err != nil {
		return fmt.Errorf("failed to create reconciliation issue: %w", err)
	}

	causeText := ""
	if cause != nil {
		causeText = cause.Error()
	}
	uow.EventBus().Publish(events.ReconciliationRequiredEvent{
		IssueID:   issue.ID,
		Kind:      issue.Kind,
		Reference: issue.Reference,
		UserID:    issue.UserID,
		Amount:    issue.Amount,
		Cause:     causeText,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *reconciliationService) ListOpen(ctx context.Context, limit int) ([]*models.ReconciliationIssue, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	issues, err := uow.ReconciliationRepository().ListOpen(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation issues: %w", err)
	}
	return issues, nil
}

func (s *reconciliationService) Resolve(ctx context.Context, adminID, issueID int64) (*models.ReconciliationIssue, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	issue, err := uow.ReconciliationRepository().GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation issue: %w", err)
	}
	if issue == nil {
		return nil, models.ErrIssueNotFound
	}

	resolved, err := uow.ReconciliationRepository().Resolve(ctx, issueID, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reconciliation issue: %w", err)
	}
	if !resolved {
		return nil, fmt.Errorf("issue %d already resolved: %w", issueID, models.ErrInvalidTransition)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"issue_id": issueID,
		"admin_id": adminID,
		"kind":     issue.Kind,
	}).Info("Reconciliation issue resolved")

	issue.ResolvedBy = &adminID
	return issue, nil
}
