// Package schedule wires the intervention controller to its trigger
// paths: a cron-driven background cadence and a one-shot review timer
// armed after each pipeline run. Both converge on the controller's
// guarded RunCycle, so overlapping fires short-circuit instead of
// double-evaluating.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/finsight/finsight/internal/intervention"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler owns the background cron entry and the pending review timer.
type Scheduler struct {
	controller *intervention.Controller
	cron       *cron.Cron
	cronSpec   string

	timerMu sync.Mutex
	timer   *time.Timer
}

// New creates a scheduler for the given controller and cron spec
// (standard 5-field syntax, e.g. "0 */6 * * *").
func New(c *intervention.Controller, cronSpec string) *Scheduler {
	return &Scheduler{
		controller: c,
		cron:       cron.New(),
		cronSpec:   cronSpec,
	}
}

// Start registers the background entry and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cronSpec, func() {
		if _, err := s.controller.RunCycle(ctx, "background"); err != nil {
			log.Warn().Err(err).Msg("Background evaluation failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("spec", s.cronSpec).Msg("Background scheduler started")
	return nil
}

// ArmReviewTimer schedules a one-shot evaluation after delay. Re-arming
// replaces the pending timer, so rapid input edits collapse into one
// review.
func (s *Scheduler) ArmReviewTimer(ctx context.Context, delay time.Duration) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, func() {
		if _, err := s.controller.RunCycle(ctx, "post_snapshot"); err != nil {
			log.Warn().Err(err).Msg("Post-snapshot evaluation failed")
		}
	})
	log.Debug().Dur("delay", delay).Msg("Review timer armed")
}

// Stop cancels the pending timer and drains the cron runner.
func (s *Scheduler) Stop() {
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerMu.Unlock()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Info().Msg("Background scheduler stopped")
}
