// Package scheduler runs the periodic listing maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/listingsync"
)

// Synchronizer is the maintenance work the scheduler triggers.
type Synchronizer interface {
	SweepExpired(ctx context.Context) (*listingsync.SweepReport, error)
	Reconcile(ctx context.Context) (*listingsync.ReconcileReport, error)
}

// Job is a named periodic task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler wraps robfig/cron. Overlapping runs of the same job are skipped
// and panics are recovered.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	jobs    []Job
}

// New creates a Scheduler. Each run gets at most timeout.
func New(timeout time.Duration) *Scheduler {
	logger := zapLogger{log: zap.L().With(zap.String("component", "scheduler"))}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		timeout: timeout,
	}
}

// Add registers a job. It fails on an unparseable schedule.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() { s.run(ctx, job) })
	if err != nil {
		return eris.Wrapf(err, "scheduler: add %s (%q)", job.Name, job.Schedule)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	zap.L().Info("scheduler: started", zap.Int("jobs", len(s.jobs)))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	zap.L().Info("scheduler: stopped")
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	log := zap.L().With(zap.String("component", "scheduler"), zap.String("job", job.Name))
	if err := job.Run(ctx); err != nil {
		log.Error("scheduler: job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Info("scheduler: job complete", zap.Duration("elapsed", time.Since(start)))
}

// MaintenanceJobs returns the expiry sweep and reconciliation jobs.
func MaintenanceJobs(sync Synchronizer, sweepSchedule, reconcileSchedule string) []Job {
	return []Job{
		{
			Name:     "sweep-expired",
			Schedule: sweepSchedule,
			Run: func(ctx context.Context) error {
				report, err := sync.SweepExpired(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("scheduler: expiry sweep",
					zap.Int("expired", len(report.Expired)),
					zap.Int("matches_updated", report.MatchesUpdated),
					zap.Int("failed", report.Failed),
				)
				return nil
			},
		},
		{
			Name:     "reconcile",
			Schedule: reconcileSchedule,
			Run: func(ctx context.Context) error {
				report, err := sync.Reconcile(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("scheduler: reconciliation", zap.Int("corrected", report.Corrected))
				return nil
			},
		},
	}
}

// zapLogger adapts zap to cron.Logger.
type zapLogger struct {
	log *zap.Logger
}

func (l zapLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
