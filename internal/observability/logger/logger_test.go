package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/lingohub/internal/observability/context"
	"github.com/smallbiznis/lingohub/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsOnlyPresentFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "finance", "u-9")
	ctx = correlation.ContextWithCorrelationID(ctx, "run-42")
	WithContext(ctx, base).Info("enriched")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if n := len(entries[0].Context); n != 0 {
		t.Fatalf("expected no fields on a bare context, got %d", n)
	}

	got := entries[1].ContextMap()
	want := map[string]string{
		"request_id":     "req-1",
		"actor_role":     "finance",
		"actor_id":       "u-9",
		"correlation_id": "run-42",
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s = %v, want %s", key, got[key], value)
		}
	}
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	if _, err := Build(Config{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
	log, err := Build(Config{Level: "warn", Format: "console"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if log.Core().Enabled(zap.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
}
