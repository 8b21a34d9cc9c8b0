// Package jobs runs periodic maintenance on cron schedules.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type expirer interface {
	DeleteExpired() (int64, error)
}

type rotationPruner interface {
	DeleteBefore(day string) (int64, error)
}

type limiterCleaner interface {
	Cleanup() int
}

type weeklyExporter interface {
	Enabled() bool
	ExportPreviousWeek(ctx context.Context) (int, error)
}

// Cleanup removes expired sign-in state and rotation memory of past days.
type Cleanup struct {
	Sessions  expirer
	AuthCodes expirer
	Rotations rotationPruner
	Limiter   limiterCleaner
	Location  *time.Location
	Now       func() time.Time
}

// CleanupResult counts what one cleanup run removed.
type CleanupResult struct {
	Sessions  int64
	AuthCodes int64
	Rotations int64
	Limits    int
}

// Run performs every cleanup step and returns the counts of the steps that
// succeeded together with the joined errors of those that failed.
func (c Cleanup) Run() (CleanupResult, error) {
	var res CleanupResult
	var errs []error
	var err error

	if res.Sessions, err = c.Sessions.DeleteExpired(); err != nil {
		errs = append(errs, err)
	}
	if res.AuthCodes, err = c.AuthCodes.DeleteExpired(); err != nil {
		errs = append(errs, err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	today := now().In(loc).Format(time.DateOnly)
	if res.Rotations, err = c.Rotations.DeleteBefore(today); err != nil {
		errs = append(errs, err)
	}
	if c.Limiter != nil {
		res.Limits = c.Limiter.Cleanup()
	}
	return res, errors.Join(errs...)
}

type Schedules struct {
	Cleanup string
	Archive string
}

// Runner owns the cron scheduler.
type Runner struct {
	cron    *cron.Cron
	cleanup Cleanup
	archive weeklyExporter
	logger  *slog.Logger
}

// New registers the jobs. The archive job is skipped when the exporter is
// disabled.
func New(schedules Schedules, loc *time.Location, cleanup Cleanup, archive weeklyExporter, logger *slog.Logger) (*Runner, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Runner{
		cron:    cron.New(cron.WithLocation(loc)),
		cleanup: cleanup,
		archive: archive,
		logger:  logger,
	}

	if _, err := r.cron.AddFunc(schedules.Cleanup, r.runCleanup); err != nil {
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}
	if archive != nil && archive.Enabled() {
		if _, err := r.cron.AddFunc(schedules.Archive, r.runArchive); err != nil {
			return nil, fmt.Errorf("schedule archive: %w", err)
		}
	} else {
		logger.Info("weekly archive disabled")
	}
	return r, nil
}

func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("jobs started", "entries", len(r.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs until ctx expires.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("jobs still running at shutdown")
	}
}

func (r *Runner) runCleanup() {
	res, err := r.cleanup.Run()
	if err != nil {
		r.logger.Error("cleanup", "error", err)
	}
	r.logger.Info("cleanup finished",
		"sessions", res.Sessions,
		"auth_codes", res.AuthCodes,
		"rotation_states", res.Rotations,
		"rate_limits", res.Limits,
	)
}

func (r *Runner) runArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := r.archive.ExportPreviousWeek(ctx)
	if err != nil {
		r.logger.Error("weekly archive", "exported", n, "error", err)
		return
	}
	r.logger.Info("weekly archive finished", "exported", n)
}
