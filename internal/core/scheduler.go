package core

// scheduler.go runs periodic maintenance. Completed import jobs older than
// the retention window are deleted together with their stored source files.
// A failed run is logged and retried on the next tick; it never stops the
// application.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig holds settings for the job retention scheduler.
type RetentionConfig struct {
	RetentionDays int           // Days to keep completed jobs (0 disables pruning)
	Schedule      string        // Cron spec, e.g. "@daily" or "0 3 * * *"
	RunTimeout    time.Duration // Bound on one run (default: 5m)
}

// PruneJobs deletes jobs completed before the cutoff and their sources.
// File deletion failures are logged; the job rows are already gone.
func (s *Service) PruneJobs(ctx context.Context, before time.Time) (int, error) {
	refs, err := s.jobs.PruneCompleted(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("prune import jobs: %w", err)
	}

	if s.files != nil {
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if err := s.files.Delete(ctx, ref); err != nil {
				slog.Warn("delete pruned import source", "key", ref, "error", err)
			}
		}
	}
	return len(refs), nil
}

// StartRetentionScheduler schedules PruneJobs. The returned cron is already
// running; stop it on shutdown. It returns nil when retention is disabled.
func (s *Service) StartRetentionScheduler(cfg RetentionConfig) (*cron.Cron, error) {
	if cfg.RetentionDays <= 0 {
		slog.Info("job retention disabled")
		return nil, nil
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}

	logger := cronLogger{slog.Default().With("component", "retention")}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
		defer cancel()
		s.runRetention(ctx, cfg.RetentionDays)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule job retention %q: %w", cfg.Schedule, err)
	}

	c.Start()
	slog.Info("job retention scheduler started",
		"schedule", cfg.Schedule,
		"retention_days", cfg.RetentionDays,
	)
	return c, nil
}

func (s *Service) runRetention(ctx context.Context, days int) {
	start := time.Now()
	cutoff := s.now().UTC().AddDate(0, 0, -days)

	pruned, err := s.PruneJobs(ctx, cutoff)
	if err != nil {
		slog.Error("job retention failed", "error", err)
		return
	}
	slog.Info("job retention completed",
		"jobs_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
