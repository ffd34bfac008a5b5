// Package scheduler runs the periodic revaluation job.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/service"
)

// Revaluer is the job the scheduler runs.
type Revaluer interface {
	RevalueAll(ctx context.Context) (service.RevaluationReport, error)
}

// Scheduler triggers revaluation on a cron schedule evaluated in UTC.
// Runs never overlap: a trigger that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	revaluer Revaluer
	timeout  time.Duration
	logger   *logging.Logger
}

// New creates a Scheduler for the standard five-field cron spec.
func New(spec string, revaluer Revaluer, timeout time.Duration, logger *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		revaluer: revaluer,
		timeout:  timeout,
		logger:   logger.Component("scheduler"),
	}

	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid revaluation schedule %q: %w", spec, err)
	}

	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		s.logger.Info().Time("next_run", entry.Next).Msg("revaluation scheduled")
	}
}

// Stop stops scheduling and waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("revaluation still running at shutdown")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.revaluer.RevalueAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("revaluation failed")
		return
	}

	s.logger.Info().
		Int("updated", report.Updated).
		Int("current", report.Current).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failures)).
		Dur("duration", time.Since(start)).
		Msg("revaluation run complete")
}

// cronLogger adapts the zerolog logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
