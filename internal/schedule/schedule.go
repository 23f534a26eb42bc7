// Package schedule triggers runs on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/docscraper/internal/job"
	"github.com/jonesrussell/docscraper/internal/logger"
)

// Starter launches a background run.
type Starter interface {
	Start(ctx context.Context) (string, error)
}

// Scheduler calls Starter.Start on every tick of a cron expression. Ticks that
// arrive while a run is active are skipped.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter
	logger  logger.Logger
	entry   cron.EntryID
}

// New creates a Scheduler for a standard five-field cron expression.
func New(expr string, starter Starter, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		starter: starter,
		logger:  log,
	}

	entry, err := s.cron.AddFunc(expr, s.Trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression %q: %w", expr, err)
	}
	s.entry = entry
	return s, nil
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started", logger.Any("next_run", s.Next()))
	s.cron.Start()
}

// Stop stops ticking and waits for a trigger in progress to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Next returns the next scheduled time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Schedule.Next(time.Now())
}

// Trigger starts a run now.
func (s *Scheduler) Trigger() {
	runID, err := s.starter.Start(context.Background())
	switch {
	case errors.Is(err, job.ErrRunInProgress):
		s.logger.Warn("Scheduled run skipped, previous run still active")
	case err != nil:
		s.logger.Error("Scheduled run failed to start", logger.Error(err))
	default:
		s.logger.Info("Scheduled run started", logger.String("run_id", runID))
	}
}
