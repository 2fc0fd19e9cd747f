// Package scheduler triggers pipeline cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cycle is one full crawl-to-delivery pass.
type Cycle func(ctx context.Context) error

// Scheduler runs the pipeline cycle on a cron expression. Cycles inherit the
// context passed to Run, so shutdown cancels an in-flight crawl and lets it
// seal its checkpoint instead of waiting out the soft deadline.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu     sync.Mutex
	runCtx context.Context
}

// New builds a Scheduler that invokes cycle per the expression (standard
// five-field cron, e.g. "0 0 * * 1" for Mondays at midnight).
func New(expr string, cycle Cycle, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
	_, err := s.cron.AddFunc(expr, func() {
		if err := cycle(s.lifecycle()); err != nil {
			logger.Error("scheduled cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until the context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started")
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) lifecycle() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}
