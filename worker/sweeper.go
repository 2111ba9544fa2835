package worker

import (
	"context"
	"sync"
	"time"

	"fantasygolf/observability"
	"fantasygolf/service"

	log "github.com/sirupsen/logrus"
)

// SweepRecorder receives the outcome of every sweep run
type SweepRecorder interface {
	RecordSweep(outcome string, duration time.Duration)
}

// Sweeper periodically runs the lifecycle reconciliation sweep
type Sweeper struct {
	status   service.StatusService
	interval time.Duration
	timeout  time.Duration
	recorder SweepRecorder

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper running every interval. recorder may be nil.
func NewSweeper(status service.StatusService, interval time.Duration, recorder SweepRecorder) *Sweeper {
	return &Sweeper{
		status:   status,
		interval: interval,
		timeout:  interval,
		recorder: recorder,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled or Stop is called
func (s *Sweeper) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithField("interval", s.interval).Info("Reconciliation sweeper started")

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Reconciliation sweeper shutting down (context cancelled)...")
			return nil
		case <-s.stopChan:
			log.Info("Reconciliation sweeper shutting down (stop requested)...")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop ends Run and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.status.Reconcile(sweepCtx)
	duration := time.Since(start)

	switch {
	case err != nil:
		log.WithError(err).Error("Reconciliation sweep failed")
		s.record(observability.SweepOutcomeFailed, duration)
	case report.Skipped:
		log.Debug("Reconciliation sweep skipped, another instance holds the lock")
		s.record(observability.SweepOutcomeSkipped, duration)
	default:
		log.WithFields(log.Fields{
			"tournaments":      report.TournamentsChecked,
			"competitions":     report.CompetitionsChecked,
			"statusChanges":    len(report.StatusChanges),
			"instancesExpired": report.InstancesExpired,
			"stuckPayments":    report.StuckPayments,
			"duration":         duration,
		}).Debug("Reconciliation sweep completed")
		s.record(observability.SweepOutcomeCompleted, duration)
	}
}

func (s *Sweeper) record(outcome string, duration time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordSweep(outcome, duration)
	}
}
