package scheduler

import (
	"time"

	"github.com/smallbiznis/lingohub/internal/config"
)

const (
	JobReconcile           = "reconcile"
	JobExpireSubscriptions = "expire_subscriptions"
)

// Config controls cron specs, per-run timeouts and the cross-instance lock.
type Config struct {
	ReconcileSchedule string
	ExpirySchedule    string
	EnabledJobs       []string
	ReconcileTimeout  time.Duration
	ExpiryTimeout     time.Duration
	LockTTL           time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReconcileSchedule: "@every 15m",
		ExpirySchedule:    "@every 1h",
		ReconcileTimeout:  5 * time.Minute,
		ExpiryTimeout:     time.Minute,
		LockTTL:           10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		ReconcileSchedule: cfg.ReconcileSchedule,
		ExpirySchedule:    cfg.ExpirySchedule,
		EnabledJobs:       cfg.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.ReconcileSchedule == "" {
		c.ReconcileSchedule = defaults.ReconcileSchedule
	}
	if c.ExpirySchedule == "" {
		c.ExpirySchedule = defaults.ExpirySchedule
	}
	if c.ReconcileTimeout <= 0 {
		c.ReconcileTimeout = defaults.ReconcileTimeout
	}
	if c.ExpiryTimeout <= 0 {
		c.ExpiryTimeout = defaults.ExpiryTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// The lock must outlive the slowest run it guards.
	if longest := max(c.ReconcileTimeout, c.ExpiryTimeout); c.LockTTL < longest {
		c.LockTTL = longest
	}
	return c
}
