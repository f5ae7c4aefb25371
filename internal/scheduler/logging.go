package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/lingohub/internal/observability/context"
	obslogger "github.com/smallbiznis/lingohub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/lingohub/internal/observability/metrics"
	"github.com/smallbiznis/lingohub/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Nested job calls share the run of
// the outermost call.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	log       *zap.Logger

	processed int
	errors    int
}

type jobRunKey struct{}

// ensureJobRun returns the run on ctx, or starts one. owner is true for the
// caller that started it and must finish it.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if existing, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && existing != nil {
		return ctx, existing, false
	}

	runID := s.genID.Generate().String()
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	// Violations recorded during the run carry the run id.
	ctx = correlation.ContextWithCorrelationID(ctx, runID)

	run := &jobRun{
		job:       job,
		runID:     runID,
		startedAt: s.clock.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", runID),
	)
	return context.WithValue(ctx, jobRunKey{}, run), run, true
}

func (r *jobRun) addProcessed(n int) {
	if n > 0 {
		r.processed += n
	}
}

func (r *jobRun) start() {
	r.log.Info("scheduler.job.start")
}

func (r *jobRun) finish(now time.Time) {
	fields := []zap.Field{
		zap.Int64("duration_ms", now.Sub(r.startedAt).Milliseconds()),
		zap.Int("processed_count", r.processed),
		zap.Int("error_count", r.errors),
	}
	if r.errors > 0 {
		r.log.Warn("scheduler.job.finish", fields...)
		return
	}
	r.log.Info("scheduler.job.finish", fields...)
}

// fail counts err against the run and logs it with its classified reason.
func (r *jobRun) fail(msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	r.errors++
	r.log.Error(msg, append([]zap.Field{
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	}, fields...)...)
}
