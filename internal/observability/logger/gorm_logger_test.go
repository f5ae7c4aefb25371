package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestClassifySQL(t *testing.T) {
	cases := []struct {
		sql     string
		op      string
		locking bool
	}{
		{`SELECT * FROM "bookings" WHERE id = $1 FOR UPDATE`, "SELECT", true},
		{`WITH live AS (SELECT 1) UPDATE payments SET status = $1`, "SELECT", false},
		{`INSERT INTO consistency_violations (id) VALUES ($1)`, "INSERT", false},
		{`  `, "UNKNOWN", false},
	}
	for _, tc := range cases {
		op, locking := classifySQL(tc.sql)
		if op != tc.op || locking != tc.locking {
			t.Errorf("classifySQL(%q) = %s, %v; want %s, %v", tc.sql, op, locking, tc.op, tc.locking)
		}
	}
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())

	query := func() (string, int64) { return "SELECT * FROM bookings", 0 }
	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	if logs.Len() != 0 {
		t.Fatalf("expected record-not-found to be silent, got %d entries", logs.Len())
	}

	l.Trace(context.Background(), time.Now(), query, errors.New("connection reset"))
	if logs.Len() != 1 {
		t.Fatalf("expected one error entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Level != zap.ErrorLevel {
		t.Fatalf("expected error level, got %s", entry.Level)
	}
	if entry.ContextMap()["operation"] != "SELECT" {
		t.Fatalf("expected operation field, got %v", entry.ContextMap())
	}
}

func TestGormLoggerSlowQuery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "UPDATE payments SET status = 'COMPLETED'", 1
	}, nil)
	if logs.Len() != 1 || logs.All()[0].Level != zap.WarnLevel {
		t.Fatalf("expected one slow query warning, got %v", logs.All())
	}
}

func TestGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	l.Error(context.Background(), "ignored")
	if logs.Len() != 0 {
		t.Fatalf("expected silent logger, got %d entries", logs.Len())
	}
}
