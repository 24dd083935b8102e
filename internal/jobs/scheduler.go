// Package jobs schedules the periodic work of the payment core. The
// reconciliation sweep is an explicit scheduled component: the cron entry
// enqueues a sweep task, and the worker resolves stale pending pushes.
package jobs

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

type sweepEnqueuer interface {
	EnqueueReconcileSweep(ctx context.Context) error
}

// Scheduler owns the cron entries of the worker binary
type Scheduler struct {
	cron  *cron.Cron
	queue sweepEnqueuer
}

// NewScheduler creates a scheduler around the given queue
func NewScheduler(queue sweepEnqueuer) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		queue: queue,
	}
}

// Start registers the entries and starts the cron loop. spec is a cron
// expression or @every duration, e.g. "@every 2m".
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.queue.EnqueueReconcileSweep(context.Background()); err != nil {
			log.Printf("Failed to enqueue reconciliation sweep: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Reconciliation sweep scheduled: %s", spec)
	return nil
}

// Stop stops the cron loop and waits for running entries
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
