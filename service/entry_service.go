package service

import (
	"context"
	"errors"
	"fmt"

	"fantasygolf/events"
	"fantasygolf/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type entryService struct {
	uowFactory UnitOfWorkFactory
	now        Clock
}

// NewEntryService creates a new entry settlement service
func NewEntryService(uowFactory UnitOfWorkFactory) EntryService {
	return &entryService{
		uowFactory: uowFactory,
		now:        systemClock,
	}
}

// Enter settles a paid entry into a pool competition.
//
// The debit, the entry insert and any lineup given at entry time share one
// transaction. The insert and lineup run inside a savepoint; if either fails the
// savepoint is rolled back and a refund keyed by a fresh attempt id is credited
// in the same transaction before the error is returned, so a committed debit
// always has either a complete entry or a refund.
func (s *entryService) Enter(ctx context.Context, userID, competitionID, declaredFee int64, selections []int64) (*EntryResult, error) {
	if declaredFee < 0 {
		return nil, models.NewValidationError("entryFee", "must not be negative")
	}

	logger := log.WithFields(log.Fields{
		"user_id":        userID,
		"competition_id": competitionID,
	})

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// The competition row lock serializes entries into the same competition, so
	// the duplicate and capacity checks below cannot be raced
	competition, err := uow.CompetitionRepository().LockByID(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock competition: %w", err)
	}
	if competition == nil {
		return nil, models.ErrCompetitionNotFound
	}
	if competition.IsHeadToHead() {
		return nil, models.ErrIsHeadToHead
	}
	if !competition.CurrentStatus(s.now()).AcceptsEntries() {
		return nil, models.ErrRegistrationClosed
	}
	if declaredFee != competition.EntryFee {
		return nil, models.NewValidationError("entryFee", fmt.Sprintf("declared fee %s does not match entry fee %s",
			models.FormatAmount(declaredFee), models.FormatAmount(competition.EntryFee)))
	}
	if len(selections) > 0 {
		if err := checkLineup(ctx, uow, competition, selections); err != nil {
			return nil, err
		}
	}

	target := models.CompetitionTarget(competition.ID)

	existing, err := uow.EntryRepository().GetActiveByUserAndTarget(ctx, userID, target)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing entry: %w", err)
	}
	if existing != nil {
		return nil, models.ErrDuplicateEntry
	}

	taken, err := uow.EntryRepository().CountActiveByTarget(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if taken >= competition.Capacity {
		return nil, models.ErrCompetitionFull
	}

	entry := &models.Entry{
		UserID:       userID,
		Target:       target,
		EntryFeePaid: competition.EntryFee,
		Status:       models.EntryStatusPendingLineup,
	}

	var newBalance int64
	if competition.EntryFee > 0 {
		debit, err := debitWallet(ctx, uow, userID, competition.EntryFee, models.LedgerReasonEntryDebit, "", map[string]any{
			"competition_id": competition.ID,
		})
		if err != nil {
			return nil, err
		}
		entry.DebitTransactionID = &debit.ID
		newBalance = debit.ResultingBalance
	} else {
		if newBalance, err = walletBalance(ctx, uow, userID); err != nil {
			return nil, err
		}
	}

	insertErr := uow.Savepoint(ctx, func() error {
		if err := uow.EntryRepository().Create(ctx, entry); err != nil {
			return err
		}
		if len(selections) > 0 {
			return writeLineup(ctx, uow, entry, selections)
		}
		return nil
	})
	if insertErr != nil {
		return nil, s.refundAttempt(ctx, uow, entry, insertErr)
	}

	uow.EventBus().Publish(events.EntryCreatedEvent{
		EntryID:    entry.ID,
		UserID:     userID,
		TargetKind: target.Kind(),
		TargetID:   target.ID(),
		FeePaid:    entry.EntryFeePaid,
		Status:     entry.Status,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.WithFields(log.Fields{
		"entry_id":    entry.ID,
		"fee":         entry.EntryFeePaid,
		"new_balance": newBalance,
		"status":      entry.Status,
	}).Info("Entry created")

	return &EntryResult{Entry: entry, NewBalance: newBalance}, nil
}

// refundAttempt credits the fee back inside the still-open transaction after the
// entry insert or lineup write failed, then commits debit and refund together
func (s *entryService) refundAttempt(ctx context.Context, uow UnitOfWork, entry *models.Entry, cause error) error {
	if entry.DebitTransactionID == nil {
		return cause
	}

	attemptID := uuid.NewString()
	_, err := creditWallet(ctx, uow, entry.UserID, entry.EntryFeePaid, models.LedgerReasonRefund, "refund:attempt:"+attemptID, map[string]any{
		"target":               entry.Target.String(),
		"debit_transaction_id": *entry.DebitTransactionID,
		"cause":                cause.Error(),
	})
	if err != nil {
		// Rolling back the whole transaction undoes the debit as well
		return fmt.Errorf("failed to refund entry attempt: %w (after: %v)", err, cause)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund: %w (after: %v)", err, cause)
	}

	log.WithFields(log.Fields{
		"user_id":    entry.UserID,
		"target":     entry.Target.String(),
		"attempt_id": attemptID,
		"amount":     entry.EntryFeePaid,
	}).WithError(cause).Warn("Entry settlement failed, fee refunded")

	return cause
}

func (s *entryService) SubmitLineup(ctx context.Context, userID, entryID int64, selections []int64) (*models.Entry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entry, err := lockOwnedEntry(ctx, uow, userID, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsActive() {
		return nil, fmt.Errorf("entry %d is cancelled: %w", entryID, models.ErrInvalidTransition)
	}

	competition, err := competitionForTarget(ctx, uow, entry.Target)
	if err != nil {
		return nil, err
	}
	if !competition.CurrentStatus(s.now()).AcceptsEntries() {
		return nil, models.ErrRegistrationClosed
	}
	if err := checkLineup(ctx, uow, competition, selections); err != nil {
		return nil, err
	}

	if err := writeLineup(ctx, uow, entry, selections); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"entry_id": entryID,
		"user_id":  userID,
		"picks":    len(selections),
	}).Info("Lineup submitted")

	return entry, nil
}

// Cancel cancels a pool entry while registration is still open and refunds its fee
func (s *entryService) Cancel(ctx context.Context, userID, entryID int64) (*EntryResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entry, err := lockOwnedEntry(ctx, uow, userID, entryID)
	if err != nil {
		return nil, err
	}
	if _, ok := entry.Target.CompetitionID(); !ok {
		return nil, fmt.Errorf("head-to-head entries are cancelled with their instance: %w", models.ErrInvalidTransition)
	}
	if !entry.IsActive() {
		return nil, fmt.Errorf("entry %d is already cancelled: %w", entryID, models.ErrInvalidTransition)
	}

	competition, err := competitionForTarget(ctx, uow, entry.Target)
	if err != nil {
		return nil, err
	}
	if !competition.CurrentStatus(s.now()).AcceptsEntries() {
		return nil, models.ErrRegistrationClosed
	}

	refund, err := cancelEntry(ctx, uow, entry, fmt.Sprintf("entry-cancel:%d", entry.ID))
	if err != nil {
		return nil, err
	}

	var newBalance int64
	if refund != nil {
		newBalance = refund.ResultingBalance
	} else if newBalance, err = walletBalance(ctx, uow, userID); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"entry_id": entryID,
		"user_id":  userID,
		"refunded": entry.EntryFeePaid,
	}).Info("Entry cancelled")

	return &EntryResult{Entry: entry, NewBalance: newBalance}, nil
}

func (s *entryService) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Entry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entries, err := uow.EntryRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// cancelEntry marks an entry cancelled and credits back the fee it paid. The
// reference keeps the refund single even if the cancellation is replayed.
// Returns the refund transaction, or nil for a free entry.
func cancelEntry(ctx context.Context, uow UnitOfWork, entry *models.Entry, reference string) (*models.LedgerTransaction, error) {
	if err := uow.EntryRepository().UpdateStatus(ctx, entry.ID, models.EntryStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel entry: %w", err)
	}
	entry.Status = models.EntryStatusCancelled

	var refund *models.LedgerTransaction
	if entry.EntryFeePaid > 0 {
		var err error
		refund, err = creditWallet(ctx, uow, entry.UserID, entry.EntryFeePaid, models.LedgerReasonRefund, reference, map[string]any{
			"entry_id": entry.ID,
			"target":   entry.Target.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to refund entry %d: %w", entry.ID, err)
		}
	}

	uow.EventBus().Publish(events.EntryCancelledEvent{
		EntryID:    entry.ID,
		UserID:     entry.UserID,
		TargetKind: entry.Target.Kind(),
		TargetID:   entry.Target.ID(),
		Refunded:   entry.EntryFeePaid,
	})

	return refund, nil
}

func lockOwnedEntry(ctx context.Context, uow UnitOfWork, userID, entryID int64) (*models.Entry, error) {
	entry, err := uow.EntryRepository().LockByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock entry: %w", err)
	}
	// Someone else's entry is reported as missing
	if entry == nil || entry.UserID != userID {
		return nil, models.ErrEntryNotFound
	}
	return entry, nil
}

// competitionForTarget resolves the competition an entry plays in
func competitionForTarget(ctx context.Context, uow UnitOfWork, target models.EntryTarget) (*models.Competition, error) {
	competitionID, ok := target.CompetitionID()
	if !ok {
		instanceID, _ := target.InstanceID()
		instance, err := uow.HeadToHeadRepository().GetByID(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to get instance: %w", err)
		}
		if instance == nil {
			return nil, models.ErrInstanceNotFound
		}
		competitionID = instance.CompetitionID
	}

	competition, err := uow.CompetitionRepository().GetByID(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	if competition == nil {
		return nil, models.ErrCompetitionNotFound
	}
	return competition, nil
}

// checkLineup validates the lineup shape and that every golfer is on the roster
func checkLineup(ctx context.Context, uow UnitOfWork, competition *models.Competition, selections []int64) error {
	if err := models.ValidateSelections(selections, competition.PicksRequired); err != nil {
		return err
	}

	missing, err := uow.CompetitionRepository().MissingFromRoster(ctx, competition.ID, selections)
	if err != nil {
		return fmt.Errorf("failed to check roster: %w", err)
	}
	if len(missing) > 0 {
		return models.NewValidationError("golferSelections", fmt.Sprintf("golfers %v are not in this competition's field", missing))
	}
	return nil
}

func writeLineup(ctx context.Context, uow UnitOfWork, entry *models.Entry, selections []int64) error {
	if err := uow.EntryRepository().ReplaceSelections(ctx, entry.ID, selections); err != nil {
		return fmt.Errorf("failed to store selections: %w", err)
	}
	if err := uow.EntryRepository().UpdateStatus(ctx, entry.ID, models.EntryStatusSubmitted); err != nil {
		return fmt.Errorf("failed to submit entry: %w", err)
	}
	entry.Status = models.EntryStatusSubmitted
	entry.Selections = selections
	return nil
}

func walletBalance(ctx context.Context, uow UnitOfWork, userID int64) (int64, error) {
	wallet, err := uow.WalletRepository().GetOrCreate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet.Balance, nil
}

// isExpectedOutcome reports whether err is a business result rather than a failure
func isExpectedOutcome(err error) bool {
	var validation *models.ValidationError
	return models.IsInsufficientFunds(err) ||
		errors.As(err, &validation) ||
		errors.Is(err, models.ErrRegistrationClosed) ||
		errors.Is(err, models.ErrDuplicateEntry) ||
		errors.Is(err, models.ErrCompetitionFull) ||
		errors.Is(err, models.ErrInstanceFull) ||
		errors.Is(err, models.ErrInstanceNotOpen) ||
		errors.Is(err, models.ErrAlreadyInInstance)
}
