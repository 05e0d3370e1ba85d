// Package jobs runs the periodic background work of the service.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// RECONCILE_BATCH caps how many deferred credits one run retries.
const RECONCILE_BATCH = 100

// Reconciler retries credits that were parked after their retries ran out.
type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (int, error)
}

type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
}

func NewScheduler(reconciler Reconciler, schedule string) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler: reconciler,
		schedule:   schedule,
	}
}

// Start registers the jobs and starts the scheduler. An invalid schedule is
// reported before anything runs.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.reconcile(ctx) }); err != nil {
		return fmt.Errorf("reconcile schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.WithField("schedule", s.schedule).Info("[CRON] Scheduler started")
	return nil
}

func (s *Scheduler) reconcile(ctx context.Context) {
	log.Debug("[CRON] Reconciling deferred credits")
	paid, err := s.reconciler.Reconcile(ctx, RECONCILE_BATCH)
	if err != nil {
		log.WithError(err).Error("[CRON] Reconcile failed")
		return
	}
	if paid > 0 {
		log.WithField("paid", paid).Info("[CRON] Deferred credits paid")
	}
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[CRON] Scheduler stopped")
}
