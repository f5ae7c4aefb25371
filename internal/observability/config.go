package observability

import (
	"strings"

	"github.com/smallbiznis/lingohub/internal/config"
)

// Config is the resolved observability setup for one process.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability
	out := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          obs.DeploymentEnv,
		Version:              obs.ServiceVersion,
		LogLevel:             obs.LogLevel,
		LogFormat:            obs.LogFormat,
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: obs.OtelEndpoint,
		OtelExporterProtocol: obs.OtelProtocol,
		OtelSamplingRatio:    obs.OtelSampleRatio,
	}
	if out.ServiceName == "" {
		out.ServiceName = "lingohub"
	}
	if out.Environment == "" {
		out.Environment = strings.TrimSpace(cfg.Environment)
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.LogFormat == "" {
		out.LogFormat = "json"
	}
	if out.OtelSamplingRatio < 0 || out.OtelSamplingRatio > 1 {
		out.OtelSamplingRatio = 0.1
	}
	return out
}

// Debug turns on console-friendly output and stack traces.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
