package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/lock"
	obsmetrics "github.com/smallbiznis/lingohub/internal/observability/metrics"
	reconciliationdomain "github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	reconciliationservice "github.com/smallbiznis/lingohub/internal/reconciliation/service"
	"github.com/smallbiznis/lingohub/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	opts           []reconciliationservice.RunOptions
	correlationIDs []string
	err            error
}

func (f *fakeRunner) Run(ctx context.Context, opts reconciliationservice.RunOptions) (*reconciliationservice.RunResult, error) {
	f.opts = append(f.opts, opts)
	f.correlationIDs = append(f.correlationIDs, correlation.ExtractCorrelationID(ctx))
	if f.err != nil {
		return nil, f.err
	}
	return &reconciliationservice.RunResult{
		CorrelationID: "corr-1",
		Violations:    []reconciliationdomain.Violation{{Kind: reconciliationdomain.ViolationMissingPayment}},
		Report:        &reconciliationdomain.RepairReport{Examined: 1, Unrecoverable: 1},
	}, nil
}

type fakeExpirer struct {
	calls []time.Time
	n     int
}

func (f *fakeExpirer) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, now)
	return f.n, nil
}

func newTestScheduler(t *testing.T, cfg Config, locker *lock.Locker) (*Scheduler, *fakeRunner, *fakeExpirer, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	runner := &fakeRunner{}
	expirer := &fakeExpirer{n: 2}
	s := &Scheduler{
		log:           zap.NewNop(),
		cfg:           cfg.withDefaults(),
		genID:         node,
		clock:         clk,
		reconciler:    runner,
		subscriptions: expirer,
		reconcileConfig: config.NewStaticReconcileConfigHolder(config.ReconcileConfig{
			AutoRepair: false, ScanLimit: 250, RecordViolations: true,
		}),
		locker: locker,
	}
	return s, runner, expirer, clk
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	obsmetrics.ResetSchedulerMetricsForTest(registry)
	t.Cleanup(func() { obsmetrics.ResetSchedulerMetricsForTest(prometheus.NewRegistry()) })

	s, _, _, _ := newTestScheduler(t, Config{}, nil)
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{"service": "lingohub", "env": "test", "job": "timeout_job"}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "lingohub_scheduler_job_timeouts_total", labels))

	errorLabels := map[string]string{
		"service": "lingohub",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "lingohub_scheduler_job_errors_total", errorLabels))
}

func TestRunJobWrapsHardErrors(t *testing.T) {
	obsmetrics.ResetSchedulerMetricsForTest(prometheus.NewRegistry())
	s, _, _, _ := newTestScheduler(t, Config{}, nil)
	boom := errors.New("boom")

	err := s.runJob(context.Background(), "reconcile", time.Second, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reconcile")
}

func TestReconcileJobUsesCurrentReconcileConfig(t *testing.T) {
	obsmetrics.ResetSchedulerMetricsForTest(prometheus.NewRegistry())
	s, runner, _, _ := newTestScheduler(t, Config{}, nil)

	require.NoError(t, s.runJob(context.Background(), JobReconcile, time.Second, s.ReconcileJob))
	require.Len(t, runner.opts, 1)
	assert.Equal(t, reconciliationservice.RunOptions{Limit: 250, Record: true, AutoRepair: false}, runner.opts[0])
}

func TestReconcileJobRunsUnderRunCorrelationID(t *testing.T) {
	obsmetrics.ResetSchedulerMetricsForTest(prometheus.NewRegistry())
	s, runner, _, _ := newTestScheduler(t, Config{}, nil)

	require.NoError(t, s.runJob(context.Background(), JobReconcile, time.Second, s.ReconcileJob))
	require.NoError(t, s.runJob(context.Background(), JobReconcile, time.Second, s.ReconcileJob))
	require.Len(t, runner.correlationIDs, 2)
	assert.NotEmpty(t, runner.correlationIDs[0])
	assert.NotEqual(t, runner.correlationIDs[0], runner.correlationIDs[1])
}

func TestExpireJobUsesSchedulerClock(t *testing.T) {
	obsmetrics.ResetSchedulerMetricsForTest(prometheus.NewRegistry())
	s, _, expirer, clk := newTestScheduler(t, Config{}, nil)
	clk.Advance(36 * time.Hour)

	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, expirer.calls, 1)
	assert.True(t, clk.Now().Equal(expirer.calls[0]))
}

func TestJobSkipsWhenLockHeldElsewhere(t *testing.T) {
	registry := prometheus.NewRegistry()
	obsmetrics.ResetSchedulerMetricsForTest(registry)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewLocker(client)

	s, runner, _, _ := newTestScheduler(t, Config{EnabledJobs: []string{JobReconcile}}, locker)

	_, ok, err := locker.TryLock(context.Background(), "job:"+JobReconcile, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, runner.opts)
	assert.Equal(t, 1.0, getCounterValue(t, registry, "lingohub_scheduler_job_errors_total", map[string]string{
		"service": "lingohub", "env": "test", "job": JobReconcile, "reason": obsmetrics.SchedulerJobReasonLockHeld,
	}))

	mr.FlushAll()
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, runner.opts, 1)
}

func TestEnabledJobsFilter(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, Config{EnabledJobs: []string{"EXPIRE_SUBSCRIPTIONS"}}, nil)
	assert.True(t, s.isJobEnabled(JobExpireSubscriptions))
	assert.False(t, s.isJobEnabled(JobReconcile))

	all, _, _, _ := newTestScheduler(t, Config{}, nil)
	assert.True(t, all.isJobEnabled(JobReconcile))
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, Config{ReconcileSchedule: "every other tuesday"}, nil)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobReconcile)
	require.NoError(t, s.Stop(context.Background()))

	ok, _, _, _ := newTestScheduler(t, Config{}, nil)
	require.NoError(t, ok.Start(context.Background()))
	require.NoError(t, ok.Stop(context.Background()))
}

func TestLockTTLCoversLongestTimeout(t *testing.T) {
	cfg := Config{ReconcileTimeout: 20 * time.Minute, LockTTL: time.Minute}.withDefaults()
	assert.Equal(t, 20*time.Minute, cfg.LockTTL)
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			require.NotNil(t, metric.Counter, "metric %s is not a counter", name)
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
