// Package scheduler runs the batch pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "lecnote/internal/log"
)

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *appLog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, err, keysAndValues...)
}

// Scheduler wraps a cron runner. A job still running when its next tick
// arrives is skipped, so runs never overlap.
type Scheduler struct {
	cron   *cron.Cron
	logger *appLog.Logger
}

// New creates a Scheduler that evaluates schedules in loc.
func New(loc *time.Location, logger *appLog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{l: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job under a standard 5-field spec or a descriptor such as
// "@hourly" or "@every 10m". ctx is handed to every invocation.
func (s *Scheduler) Add(ctx context.Context, name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("scheduled job starting", "job", name)
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for %s: %w", spec, name, err)
	}
	s.logger.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// Next returns the next activation time across all jobs.
func (s *Scheduler) Next() (time.Time, bool) {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next, !next.IsZero()
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
}
