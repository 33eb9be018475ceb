// Package jobs runs the scheduled maintenance work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
)

// AuditPurger deletes audit entries past the retention window
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	RetentionDays() int
}

// RetentionJob removes audit entries older than the configured number of days
type RetentionJob struct {
	purger  AuditPurger
	metrics *metrics.Metrics
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRetentionJob creates a new RetentionJob
func NewRetentionJob(purger AuditPurger, m *metrics.Metrics, logger *zap.Logger) *RetentionJob {
	return &RetentionJob{
		purger:  purger,
		metrics: m,
		logger:  logger,
		timeout: 5 * time.Minute,
		now:     time.Now,
	}
}

// Run purges once. A retention of zero days or less keeps everything.
func (j *RetentionJob) Run(ctx context.Context) (int64, error) {
	days := j.purger.RetentionDays()
	if days <= 0 {
		j.logger.Debug("audit retention disabled")
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	cutoff := j.now().UTC().AddDate(0, 0, -days)
	purged, err := j.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit logs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.metrics.ObservePurge(purged)
	return purged, nil
}

// Scheduler wraps the cron runner
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler creates a scheduler running in UTC
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// ScheduleRetention registers job on a standard five-field cron spec
func (s *Scheduler) ScheduleRetention(spec string, job *RetentionJob) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("starting audit retention")
		purged, err := job.Run(context.Background())
		if err != nil {
			s.logger.Error("audit retention failed", zap.Error(err))
			return
		}
		s.logger.Info("audit retention completed", zap.Int64("purged", purged))
	})
	if err != nil {
		return fmt.Errorf("schedule audit retention %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever is first
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}
