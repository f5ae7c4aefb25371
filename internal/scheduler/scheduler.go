package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/lock"
	obsmetrics "github.com/smallbiznis/lingohub/internal/observability/metrics"
	reconciliationservice "github.com/smallbiznis/lingohub/internal/reconciliation/service"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// ReconcileRunner is the audit and repair pipeline driven by the reconcile job.
type ReconcileRunner interface {
	Run(ctx context.Context, opts reconciliationservice.RunOptions) (*reconciliationservice.RunResult, error)
}

// SubscriptionExpirer ends lapsed subscriptions.
type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type Params struct {
	fx.In

	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Reconciler      *reconciliationservice.Service
	SubscriptionSvc subscriptiondomain.Service
	ReconcileConfig *config.ReconcileConfigHolder
	Locker          *lock.Locker `optional:"true"`
	Config          Config       `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	reconciler      ReconcileRunner
	subscriptions   SubscriptionExpirer
	reconcileConfig *config.ReconcileConfigHolder
	locker          *lock.Locker

	mu   sync.Mutex
	cron *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Reconciler == nil || p.SubscriptionSvc == nil || p.ReconcileConfig == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		genID:           p.GenID,
		clock:           p.Clock,
		reconciler:      p.Reconciler,
		subscriptions:   p.SubscriptionSvc,
		reconcileConfig: p.ReconcileConfig,
		locker:          p.Locker,
	}, nil
}

type job struct {
	name     string
	schedule string
	timeout  time.Duration
	run      func(context.Context) error
}

func (s *Scheduler) jobs() []job {
	return []job{
		{JobReconcile, s.cfg.ReconcileSchedule, s.cfg.ReconcileTimeout, s.ReconcileJob},
		{JobExpireSubscriptions, s.cfg.ExpirySchedule, s.cfg.ExpiryTimeout, s.ExpireSubscriptionsJob},
	}
}

// Start registers every enabled job with cron. Overlapping runs of the same
// job on this instance are skipped; the Redis lock covers other instances.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	cronLog := cron.PrintfLogger(zap.NewStdLog(s.log))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		if _, err := c.AddFunc(j.schedule, func() {
			if err := s.runJob(ctx, j.name, j.timeout, j.run); err != nil {
				s.log.Warn("scheduler job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
		}
		s.log.Info("scheduler job registered", zap.String("job", j.name), zap.String("schedule", j.schedule))
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop waits for running jobs or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every enabled job once, in order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if s.isJobEnabled(j.name) {
			err = errors.Join(err, s.runJob(parent, j.name, j.timeout, j.run))
		}
	}
	return err
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		run.start()
	}
	log := run.log
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errors == 0 {
			run.errors++
		}
		run.finish(s.clock.Now())
	}
	if err == nil {
		return nil
	}

	schedMetrics.IncJobError(name, err)
	if errors.Is(err, obsmetrics.ErrLockHeld) {
		log.Info("job skipped, lock held by another instance")
		return nil
	}
	// Deadline is a soft timeout; the next tick picks the work up again.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// withLock runs fn under the job's Redis lock. Without a lock client the job
// runs unguarded.
func (s *Scheduler) withLock(ctx context.Context, name string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	held, err := s.locker.WithLock(ctx, "job:"+name, s.cfg.LockTTL, fn)
	if err != nil {
		return err
	}
	if !held {
		return obsmetrics.ErrLockHeld
	}
	return nil
}

// ReconcileJob scans, records and optionally repairs using the reconcile
// config as of this run.
func (s *Scheduler) ReconcileJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReconcile)
	if owner {
		run.start()
		defer func() { run.finish(s.clock.Now()) }()
	}
	cfg := s.reconcileConfig.Get()

	return s.withLock(ctx, JobReconcile, func(ctx context.Context) error {
		result, err := s.reconciler.Run(ctx, reconciliationservice.RunOptions{
			Limit:      cfg.ScanLimit,
			Record:     cfg.RecordViolations,
			AutoRepair: cfg.AutoRepair,
		})
		if err != nil {
			run.fail("scheduler.reconcile.failed", err)
			return err
		}
		run.addProcessed(len(result.Violations))
		obsmetrics.Scheduler().AddBatchProcessed(JobReconcile, "violations", len(result.Violations))
		fields := []zap.Field{
			zap.String("correlation_id", result.CorrelationID),
			zap.Int("violations", len(result.Violations)),
			zap.Bool("auto_repair", cfg.AutoRepair),
		}
		if result.Report != nil {
			fields = append(fields,
				zap.Int("repaired", result.Report.Repaired),
				zap.Int("unrecoverable", result.Report.Unrecoverable),
			)
		}
		run.log.Info("scheduler.reconcile.done", fields...)
		return nil
	})
}

func (s *Scheduler) ExpireSubscriptionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireSubscriptions)
	if owner {
		run.start()
		defer func() { run.finish(s.clock.Now()) }()
	}

	return s.withLock(ctx, JobExpireSubscriptions, func(ctx context.Context) error {
		expired, err := s.subscriptions.ExpireDue(ctx, s.clock.Now())
		run.addProcessed(expired)
		obsmetrics.Scheduler().AddBatchProcessed(JobExpireSubscriptions, "subscriptions", expired)
		if err != nil {
			run.fail("scheduler.expire.failed", err, zap.Int("expired", expired))
			return err
		}
		return nil
	})
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
