package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReconcileConfig tunes the offline audit and repair jobs. It is re-read on
// every run so operators can flip auto repair without a deploy.
type ReconcileConfig struct {
	AutoRepair        bool `mapstructure:"autoRepair"`
	ScanLimit         int  `mapstructure:"scanLimit"`
	CleanupCutoffDays int  `mapstructure:"cleanupCutoffDays"`
	RecordViolations  bool `mapstructure:"recordViolations"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		AutoRepair:        true,
		ScanLimit:         5000,
		CleanupCutoffDays: 30,
		RecordViolations:  true,
	}
}

type ReconcileConfigHolder struct {
	current atomic.Value // holds ReconcileConfig
}

// NewStaticReconcileConfigHolder returns a holder that never reloads.
func NewStaticReconcileConfigHolder(cfg ReconcileConfig) *ReconcileConfigHolder {
	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconcileConfigHolder(log *zap.Logger) (*ReconcileConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reconcile")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lingohub/config")
	v.AddConfigPath("/etc/lingohub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LINGOHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcileConfig()
	v.SetDefault("reconcile.autoRepair", defaults.AutoRepair)
	v.SetDefault("reconcile.scanLimit", defaults.ScanLimit)
	v.SetDefault("reconcile.cleanupCutoffDays", defaults.CleanupCutoffDays)
	v.SetDefault("reconcile.recordViolations", defaults.RecordViolations)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var cfg ReconcileConfig
	if err := v.UnmarshalKey("reconcile", &cfg); err != nil {
		return nil, err
	}
	if err := validateReconcileConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	log = log.Named("config.reconcile")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReconcileConfig
		if err := v.UnmarshalKey("reconcile", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateReconcileConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReconcileConfigHolder) Get() ReconcileConfig {
	return h.current.Load().(ReconcileConfig)
}

func validateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.ScanLimit <= 0 {
		return errors.New("reconcile.scanLimit must be positive")
	}
	if cfg.CleanupCutoffDays < 1 {
		return errors.New("reconcile.cleanupCutoffDays must be at least 1")
	}
	return nil
}
