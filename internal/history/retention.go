package history

// retention.go schedules the ledger purge job.
//
// The job runs once at startup and then on the configured cron schedule.
// Failures are logged and never stop the scheduler.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes ledger entries older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig configures StartRetention.
type RetentionConfig struct {
	RetentionDays int    // Days to keep runs (default: 90)
	Schedule      string // Standard cron spec or descriptor (default: @daily)
}

const (
	defaultRetentionDays = 90
	defaultSchedule      = "@daily"
	purgeTimeout         = 5 * time.Minute
)

// StartRetention purges old runs now and then on cfg.Schedule until ctx is
// cancelled. It returns once the schedule is installed.
func StartRetention(ctx context.Context, p Purger, cfg RetentionConfig) error {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() { runPurge(ctx, p, cfg.RetentionDays) }); err != nil {
		return fmt.Errorf("history: invalid retention schedule %q: %w", cfg.Schedule, err)
	}

	slog.Info("history retention started",
		"retention_days", cfg.RetentionDays,
		"schedule", cfg.Schedule,
	)

	// Run immediately on startup
	runPurge(ctx, p, cfg.RetentionDays)
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("history retention stopped")
	}()
	return nil
}

// runPurge performs one purge cycle.
func runPurge(ctx context.Context, p Purger, retentionDays int) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	start := time.Now()
	cutoff := start.AddDate(0, 0, -retentionDays)
	purged, err := p.Purge(ctx, cutoff)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}
	slog.Info("history purged",
		"runs_deleted", purged,
		"cutoff", cutoff.Format(time.DateOnly),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
