package service

import (
	"context"
	"fmt"
	"time"

	"fantasygolf/events"
	"fantasygolf/models"

	log "github.com/sirupsen/logrus"
)

type statusService struct {
	uowFactory      UnitOfWorkFactory
	lock            SweepLock
	headToHead      HeadToHeadService
	payments        PaymentService
	stuckPaymentAge time.Duration
	now             Clock
}

// NewStatusService creates the reconciliation sweep. lock, headToHead and
// payments may be nil; without them the sweep runs unguarded and only
// recomputes lifecycle status.
func NewStatusService(uowFactory UnitOfWorkFactory, lock SweepLock, headToHead HeadToHeadService, payments PaymentService, stuckPaymentAge time.Duration) StatusService {
	return &statusService{
		uowFactory:      uowFactory,
		lock:            lock,
		headToHead:      headToHead,
		payments:        payments,
		stuckPaymentAge: stuckPaymentAge,
		now:             systemClock,
	}
}

// Reconcile recomputes lifecycle status for every non-terminal tournament and
// competition and persists the ones that moved. Each row is re-derived under its
// own row lock, so the sweep is idempotent and may run at any frequency.
// Completed and cancelled rows are never selected, so they never change.
// After status, it expires unfilled head-to-head instances whose competition
// closed and escalates payments stuck before their credit.
func (s *statusService) Reconcile(ctx context.Context) (*models.SweepReport, error) {
	report := &models.SweepReport{StartedAt: s.now()}

	if s.lock != nil {
		release, acquired, err := s.lock.Acquire(ctx)
		switch {
		case err != nil:
			// Every step below is idempotent, so overlapping sweeps are safe, only wasteful
			log.WithError(err).Warn("Sweep lock unavailable, reconciling without it")
		case !acquired:
			log.Debug("Another reconciliation sweep is running, skipping")
			report.Skipped = true
			return report, nil
		default:
			defer release()
		}
	}

	if err := s.reconcileTournaments(ctx, report); err != nil {
		return nil, err
	}
	if err := s.reconcileCompetitions(ctx, report); err != nil {
		return nil, err
	}

	if s.headToHead != nil {
		expired, err := s.headToHead.ExpireStale(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to expire stale head-to-head instances")
		}
		report.InstancesExpired = expired
	}

	if s.payments != nil && s.stuckPaymentAge > 0 {
		stuck, err := s.payments.EscalateStuck(ctx, StuckPaymentCutoff(s.now(), s.stuckPaymentAge))
		if err != nil {
			log.WithError(err).Error("Failed to escalate stuck payments")
		}
		report.StuckPayments = stuck
	}

	report.Duration = time.Since(report.StartedAt)

	log.WithFields(log.Fields{
		"tournaments":       report.TournamentsChecked,
		"competitions":      report.CompetitionsChecked,
		"status_changes":    len(report.StatusChanges),
		"instances_expired": report.InstancesExpired,
		"stuck_payments":    report.StuckPayments,
		"duration":          report.Duration,
	}).Info("Reconciliation sweep completed")

	return report, nil
}

func (s *statusService) reconcileTournaments(ctx context.Context, report *models.SweepReport) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tournaments, err := uow.TournamentRepository().ListNonTerminal(ctx)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to list tournaments: %w", err)
	}

	for _, t := range tournaments {
		report.TournamentsChecked++
		change, err := s.reconcileTournament(ctx, t.ID)
		if err != nil {
			log.WithError(err).WithField("tournament_id", t.ID).Error("Failed to reconcile tournament status")
			continue
		}
		if change != nil {
			report.StatusChanges = append(report.StatusChanges, *change)
		}
	}
	return nil
}

func (s *statusService) reconcileTournament(ctx context.Context, id int64) (*models.StatusChange, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	tournament, err := uow.TournamentRepository().LockByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock tournament: %w", err)
	}
	if tournament == nil {
		return nil, nil
	}

	derived := tournament.CurrentStatus(s.now())
	if derived == tournament.Status {
		return nil, nil
	}
	if err := uow.TournamentRepository().UpdateStatus(ctx, id, derived); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}

	change := &models.StatusChange{Subject: "tournament", ID: id, From: tournament.Status, To: derived}
	publishStatusChange(uow, change)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return change, nil
}

func (s *statusService) reconcileCompetitions(ctx context.Context, report *models.SweepReport) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	competitions, err := uow.CompetitionRepository().ListNonTerminal(ctx)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to list competitions: %w", err)
	}

	for _, c := range competitions {
		report.CompetitionsChecked++
		change, err := s.reconcileCompetition(ctx, c.ID)
		if err != nil {
			log.WithError(err).WithField("competition_id", c.ID).Error("Failed to reconcile competition status")
			continue
		}
		if change != nil {
			report.StatusChanges = append(report.StatusChanges, *change)
		}
	}
	return nil
}

func (s *statusService) reconcileCompetition(ctx context.Context, id int64) (*models.StatusChange, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	competition, err := uow.CompetitionRepository().LockByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock competition: %w", err)
	}
	if competition == nil {
		return nil, nil
	}

	derived := competition.CurrentStatus(s.now())
	if derived == competition.Status {
		return nil, nil
	}
	if err := uow.CompetitionRepository().UpdateStatus(ctx, id, derived); err != nil {
		return nil, fmt.Errorf("failed to update competition status: %w", err)
	}

	change := &models.StatusChange{Subject: "competition", ID: id, From: competition.Status, To: derived}
	publishStatusChange(uow, change)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return change, nil
}

func publishStatusChange(uow UnitOfWork, change *models.StatusChange) {
	uow.EventBus().Publish(events.StatusChangeEvent{
		Subject:   change.Subject,
		ID:        change.ID,
		OldStatus: change.From,
		NewStatus: change.To,
	})
}
