// Package scheduler triggers the daily valuation run and the dedup ledger
// maintenance on a cron timetable.
package scheduler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Ledger is the maintenance surface of the dedup store.
type Ledger interface {
	CleanupOlderThan(days int) (int64, error)
}

// Options configure the timetable.
type Options struct {
	// DailyRunTime is "HH:MM" local time for the valuation run.
	DailyRunTime string
	// CleanupTime is "HH:MM" local time for ledger retention cleanup.
	CleanupTime string
	// RetentionDays is the ledger retention period.
	RetentionDays int
	// RunOnStart triggers a valuation run immediately on Start.
	RunOnStart bool
}

// Scheduler owns the cron timetable. Jobs run sequentially: a slow
// valuation run delays, never overlaps, the next one.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logrus.Logger
	opts    Options
	run     func() error
	ledger  Ledger
	jobLock sync.Mutex
}

func New(run func() error, ledger Ledger, opts Options, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		opts:   opts,
		run:    run,
		ledger: ledger,
	}
}

func (s *Scheduler) Start() error {
	runSpec, err := cronSpec(s.opts.DailyRunTime)
	if err != nil {
		return fmt.Errorf("invalid daily run time: %w", err)
	}
	if _, err := s.cron.AddFunc(runSpec, s.runValuation); err != nil {
		return err
	}

	cleanupSpec, err := cronSpec(s.opts.CleanupTime)
	if err != nil {
		return fmt.Errorf("invalid cleanup time: %w", err)
	}
	if _, err := s.cron.AddFunc(cleanupSpec, s.runCleanup); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"daily_run": s.opts.DailyRunTime,
		"cleanup":   s.opts.CleanupTime,
		"retention": s.opts.RetentionDays,
	}).Info("Scheduler started")

	if s.opts.RunOnStart {
		go s.runValuation()
	}
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

// TriggerRun runs a valuation pass out of schedule, used by the API.
func (s *Scheduler) TriggerRun() error {
	s.jobLock.Lock()
	defer s.jobLock.Unlock()
	return s.run()
}

func (s *Scheduler) runValuation() {
	s.jobLock.Lock()
	defer s.jobLock.Unlock()

	s.logger.Info("Starting scheduled valuation run")
	if err := s.run(); err != nil {
		s.logger.WithError(err).Error("Scheduled valuation run failed")
		return
	}
	s.logger.Info("Scheduled valuation run completed")
}

func (s *Scheduler) runCleanup() {
	s.jobLock.Lock()
	defer s.jobLock.Unlock()

	removed, err := s.ledger.CleanupOlderThan(s.opts.RetentionDays)
	if err != nil {
		s.logger.WithError(err).Error("Ledger cleanup failed")
		return
	}
	s.logger.WithField("removed", removed).Info("Ledger cleanup completed")
}

// cronSpec converts "HH:MM" into a cron expression.
func cronSpec(hhmm string) (string, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("expected HH:MM, got %q", hhmm)
	}

	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return "", fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("time out of range: %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
