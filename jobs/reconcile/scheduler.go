// Package reconcile wires up the cron job that periodically repairs
// volunteer availability drift.
package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	corereconcile "github.com/sevaops/seva/core/reconcile"
	"github.com/sevaops/seva/infra/logger"
)

// Scheduler wraps robfig/cron and manages the reconcile loop.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *corereconcile.Reconciler
	spec       string // cron spec, e.g. "@every 300s"
	log        logger.Logger
}

// New creates a Scheduler that fires every intervalSeconds seconds.
func New(rec *corereconcile.Reconciler, intervalSeconds int, log logger.Logger) (*Scheduler, error) {
	if rec == nil {
		return nil, fmt.Errorf("scheduler requires a reconciler")
	}
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", intervalSeconds)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{
		cron:       cron.New(),
		reconciler: rec,
		spec:       fmt.Sprintf("@every %ds", intervalSeconds),
		log:        log,
	}, nil
}

// Start registers the job and starts the scheduler. Also runs one pass
// immediately so drift accumulated while the service was down is repaired
// without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Infof("reconcile loop started, spec %s", s.spec)

	go s.runPass(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler and waits for a running pass.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Infof("reconcile loop stopped")
}

func (s *Scheduler) runPass(ctx context.Context) {
	rep, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.log.Errorf("reconcile pass: %v", err)
		return
	}
	if rep.RepairedCount > 0 {
		s.log.Infof("reconcile pass repaired %d of %d volunteers", rep.RepairedCount, rep.Checked)
	} else {
		s.log.Debugf("reconcile pass clean, checked %d volunteers", rep.Checked)
	}
}
