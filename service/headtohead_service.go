package service

import (
	"context"
	"fmt"

	"fantasygolf/events"
	"fantasygolf/models"

	log "github.com/sirupsen/logrus"
)

type headToHeadService struct {
	uowFactory   UnitOfWorkFactory
	autoActivate bool
	now          Clock
}

// NewHeadToHeadService creates a new head-to-head matchmaking service. With
// autoActivate, instances created by QuickMatch are opened as soon as they commit.
func NewHeadToHeadService(uowFactory UnitOfWorkFactory, autoActivate bool) HeadToHeadService {
	return &headToHeadService{
		uowFactory:   uowFactory,
		autoActivate: autoActivate,
		now:          systemClock,
	}
}

// QuickMatch takes the free slot of the oldest open instance the caller did not
// create, or creates a pending instance when there is none. Instances locked by
// a concurrent joiner are skipped instead of waited on.
func (s *headToHeadService) QuickMatch(ctx context.Context, userID, competitionID int64) (*InstanceResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	competition, err := s.enterableCompetition(ctx, uow, competitionID)
	if err != nil {
		return nil, err
	}

	instance, err := uow.HeadToHeadRepository().LockOldestOpen(ctx, competitionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open instance: %w", err)
	}

	var result *InstanceResult
	if instance != nil {
		result, err = s.join(ctx, uow, userID, instance, competition)
	} else {
		result, err = s.create(ctx, uow, userID, competition)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logResult("Quick match", userID, result)
	return s.afterCreate(ctx, result), nil
}

// Create always opens a new pending instance with the caller as its first entrant
func (s *headToHeadService) Create(ctx context.Context, userID, competitionID int64) (*InstanceResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	competition, err := s.enterableCompetition(ctx, uow, competitionID)
	if err != nil {
		return nil, err
	}

	result, err := s.create(ctx, uow, userID, competition)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logResult("Head-to-head instance created", userID, result)
	return s.afterCreate(ctx, result), nil
}

// Join takes the remaining slot of an open instance. The instance row lock makes
// the capacity check, the debit, the entry insert and the increment a single
// read-modify-write: concurrent joiners queue on the lock and every one after
// the first sees a full instance.
func (s *headToHeadService) Join(ctx context.Context, userID, instanceID int64) (*InstanceResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	instance, err := uow.HeadToHeadRepository().LockByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	if instance == nil {
		return nil, models.ErrInstanceNotFound
	}

	competition, err := uow.CompetitionRepository().GetByID(ctx, instance.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	if competition == nil {
		return nil, models.ErrCompetitionNotFound
	}

	result, err := s.join(ctx, uow, userID, instance, competition)
	if err != nil {
		if isExpectedOutcome(err) {
			log.WithFields(log.Fields{
				"user_id":     userID,
				"instance_id": instanceID,
			}).WithError(err).Debug("Join rejected")
		}
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logResult("Joined head-to-head instance", userID, result)
	return result, nil
}

func (s *headToHeadService) enterableCompetition(ctx context.Context, uow UnitOfWork, competitionID int64) (*models.Competition, error) {
	competition, err := uow.CompetitionRepository().GetByID(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	if competition == nil {
		return nil, models.ErrCompetitionNotFound
	}
	if !competition.IsHeadToHead() {
		return nil, models.ErrNotHeadToHead
	}
	if !competition.CurrentStatus(s.now()).AcceptsEntries() {
		return nil, models.ErrRegistrationClosed
	}
	return competition, nil
}

// create inserts a pending instance holding the caller's paid entry
func (s *headToHeadService) create(ctx context.Context, uow UnitOfWork, userID int64, competition *models.Competition) (*InstanceResult, error) {
	instance := &models.HeadToHeadInstance{
		CompetitionID:  competition.ID,
		CreatedBy:      userID,
		MaxPlayers:     models.HeadToHeadMaxPlayers,
		CurrentPlayers: 1,
		Status:         models.InstanceStatusPending,
	}
	if err := uow.HeadToHeadRepository().Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	entry, newBalance, err := s.payEntry(ctx, uow, userID, instance, competition)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.InstanceStateChangeEvent{
		InstanceID:     instance.ID,
		CompetitionID:  instance.CompetitionID,
		NewStatus:      instance.Status,
		CurrentPlayers: instance.CurrentPlayers,
	})

	return &InstanceResult{Instance: instance, Entry: entry, NewBalance: newBalance, Created: true}, nil
}

// join adds userID to a locked instance
func (s *headToHeadService) join(ctx context.Context, uow UnitOfWork, userID int64, instance *models.HeadToHeadInstance, competition *models.Competition) (*InstanceResult, error) {
	if instance.CreatedBy == userID {
		return nil, models.ErrAlreadyInInstance
	}
	existing, err := uow.EntryRepository().GetActiveByUserAndTarget(ctx, userID, models.InstanceTarget(instance.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing entry: %w", err)
	}
	if existing != nil {
		return nil, models.ErrAlreadyInInstance
	}

	switch {
	case instance.Status == models.InstanceStatusFull,
		instance.Status == models.InstanceStatusOpen && !instance.IsJoinable():
		return nil, models.ErrInstanceFull
	case !instance.IsJoinable():
		return nil, models.ErrInstanceNotOpen
	}
	if !competition.CurrentStatus(s.now()).AcceptsEntries() {
		return nil, models.ErrRegistrationClosed
	}

	entry, newBalance, err := s.payEntry(ctx, uow, userID, instance, competition)
	if err != nil {
		return nil, err
	}

	oldStatus := instance.Status
	instance.AddPlayer(s.now())
	if err := uow.HeadToHeadRepository().Update(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	uow.EventBus().Publish(events.InstanceStateChangeEvent{
		InstanceID:     instance.ID,
		CompetitionID:  instance.CompetitionID,
		OldStatus:      oldStatus,
		NewStatus:      instance.Status,
		CurrentPlayers: instance.CurrentPlayers,
	})

	return &InstanceResult{Instance: instance, Entry: entry, NewBalance: newBalance}, nil
}

// payEntry debits the competition fee and inserts the entry for an instance.
// Both run in the caller's transaction, so any failure rolls back the instance too.
func (s *headToHeadService) payEntry(ctx context.Context, uow UnitOfWork, userID int64, instance *models.HeadToHeadInstance, competition *models.Competition) (*models.Entry, int64, error) {
	entry := &models.Entry{
		UserID:       userID,
		Target:       models.InstanceTarget(instance.ID),
		EntryFeePaid: competition.EntryFee,
		Status:       models.EntryStatusPendingLineup,
	}

	var newBalance int64
	if competition.EntryFee > 0 {
		debit, err := debitWallet(ctx, uow, userID, competition.EntryFee, models.LedgerReasonEntryDebit, "", map[string]any{
			"competition_id": competition.ID,
			"instance_id":    instance.ID,
		})
		if err != nil {
			return nil, 0, err
		}
		entry.DebitTransactionID = &debit.ID
		newBalance = debit.ResultingBalance
	} else {
		var err error
		if newBalance, err = walletBalance(ctx, uow, userID); err != nil {
			return nil, 0, err
		}
	}

	if err := uow.EntryRepository().Create(ctx, entry); err != nil {
		return nil, 0, fmt.Errorf("failed to create entry: %w", err)
	}

	uow.EventBus().Publish(events.EntryCreatedEvent{
		EntryID:    entry.ID,
		UserID:     userID,
		TargetKind: entry.Target.Kind(),
		TargetID:   entry.Target.ID(),
		FeePaid:    entry.EntryFeePaid,
		Status:     entry.Status,
	})

	return entry, newBalance, nil
}

func (s *headToHeadService) afterCreate(ctx context.Context, result *InstanceResult) *InstanceResult {
	if !result.Created || !s.autoActivate {
		return result
	}
	activated, err := s.Activate(ctx, result.Instance.ID)
	if err != nil {
		// The instance stays pending and can be activated later
		log.WithError(err).WithField("instance_id", result.Instance.ID).Warn("Failed to auto-activate instance")
		return result
	}
	result.Instance = activated
	return result
}

// Activate advertises a pending instance on the matchmaking board
func (s *headToHeadService) Activate(ctx context.Context, instanceID int64) (*models.HeadToHeadInstance, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	instance, err := uow.HeadToHeadRepository().LockByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	if instance == nil {
		return nil, models.ErrInstanceNotFound
	}
	if instance.Status == models.InstanceStatusOpen {
		return instance, nil
	}
	if !instance.CanActivate() {
		return nil, fmt.Errorf("cannot activate %s instance: %w", instance.Status, models.ErrInvalidTransition)
	}

	competition, err := uow.CompetitionRepository().GetByID(ctx, instance.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	if competition == nil || !competition.CurrentStatus(s.now()).AcceptsEntries() {
		return nil, models.ErrRegistrationClosed
	}

	now := s.now()
	instance.Status = models.InstanceStatusOpen
	instance.ActivatedAt = &now
	if err := uow.HeadToHeadRepository().Update(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to activate instance: %w", err)
	}

	uow.EventBus().Publish(events.InstanceStateChangeEvent{
		InstanceID:     instance.ID,
		CompetitionID:  instance.CompetitionID,
		OldStatus:      models.InstanceStatusPending,
		NewStatus:      models.InstanceStatusOpen,
		CurrentPlayers: instance.CurrentPlayers,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("instance_id", instanceID).Info("Head-to-head instance activated")
	return instance, nil
}

// Cancel cancels a pending or open instance and refunds its entrant
func (s *headToHeadService) Cancel(ctx context.Context, actorID int64, isAdmin bool, instanceID int64) (*models.HeadToHeadInstance, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	instance, err := uow.HeadToHeadRepository().LockByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	if instance == nil {
		return nil, models.ErrInstanceNotFound
	}
	if !isAdmin && instance.CreatedBy != actorID {
		return nil, models.ErrForbidden
	}
	if !instance.CanCancel() {
		return nil, fmt.Errorf("cannot cancel %s instance: %w", instance.Status, models.ErrInvalidTransition)
	}

	if err := s.cancelInstance(ctx, uow, instance); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"instance_id": instanceID,
		"actor_id":    actorID,
		"admin":       isAdmin,
	}).Info("Head-to-head instance cancelled")

	return instance, nil
}

// cancelInstance cancels a locked instance and refunds every active entry in it
func (s *headToHeadService) cancelInstance(ctx context.Context, uow UnitOfWork, instance *models.HeadToHeadInstance) error {
	entries, err := uow.EntryRepository().ListActiveByTarget(ctx, models.InstanceTarget(instance.ID))
	if err != nil {
		return fmt.Errorf("failed to list instance entries: %w", err)
	}

	for _, entry := range entries {
		reference := fmt.Sprintf("refund:instance:%d:entry:%d", instance.ID, entry.ID)
		if _, err := cancelEntry(ctx, uow, entry, reference); err != nil {
			return err
		}
	}

	oldStatus := instance.Status
	now := s.now()
	instance.Status = models.InstanceStatusCancelled
	instance.CancelledAt = &now
	if err := uow.HeadToHeadRepository().Update(ctx, instance); err != nil {
		return fmt.Errorf("failed to cancel instance: %w", err)
	}

	uow.EventBus().Publish(events.InstanceStateChangeEvent{
		InstanceID:     instance.ID,
		CompetitionID:  instance.CompetitionID,
		OldStatus:      oldStatus,
		NewStatus:      models.InstanceStatusCancelled,
		CurrentPlayers: instance.CurrentPlayers,
	})
	return nil
}

// ExpireStale cancels pending and open instances whose competition has stopped
// accepting entries. Each instance is expired in its own transaction, so one
// failure only delays that instance to the next sweep.
func (s *headToHeadService) ExpireStale(ctx context.Context) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stale, err := uow.HeadToHeadRepository().ListStale(ctx)
	uow.Rollback()
	if err != nil {
		return 0, fmt.Errorf("failed to list stale instances: %w", err)
	}

	expired := 0
	for _, candidate := range stale {
		ok, err := s.expire(ctx, candidate.ID)
		if err != nil {
			log.WithError(err).WithField("instance_id", candidate.ID).Error("Failed to expire stale instance")
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		log.WithField("expired", expired).Info("Expired stale head-to-head instances")
	}
	return expired, nil
}

func (s *headToHeadService) expire(ctx context.Context, instanceID int64) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	instance, err := uow.HeadToHeadRepository().LockByID(ctx, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to lock instance: %w", err)
	}
	// Filled or cancelled since it was listed
	if instance == nil || !instance.CanCancel() {
		return false, nil
	}

	if err := s.cancelInstance(ctx, uow, instance); err != nil {
		return false, err
	}

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// ListOpen returns the matchmaking board; pending instances are never listed
func (s *headToHeadService) ListOpen(ctx context.Context, competitionID int64, limit int) ([]*models.HeadToHeadInstance, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	instances, err := uow.HeadToHeadRepository().ListOpen(ctx, competitionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open instances: %w", err)
	}
	return instances, nil
}

func (s *headToHeadService) logResult(msg string, userID int64, result *InstanceResult) {
	log.WithFields(log.Fields{
		"user_id":         userID,
		"instance_id":     result.Instance.ID,
		"status":          result.Instance.Status,
		"spots_remaining": result.Instance.SpotsRemaining(),
		"created":         result.Created,
		"new_balance":     result.NewBalance,
	}).Info(msg)
}
