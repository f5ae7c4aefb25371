package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/migration"
	"github.com/smallbiznis/lingohub/internal/settings/domain"
	"github.com/smallbiznis/lingohub/internal/settings/repository"
	"github.com/smallbiznis/lingohub/internal/settings/service"
	"github.com/smallbiznis/lingohub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*service.Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	require.NoError(t, migration.AutoMigrate(db))
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.Config{Gateway: config.GatewayConfig{SuccessURL: "https://app.example/ok"}}
	return service.NewService(service.Params{
		DB: db, Log: zap.NewNop(), Clock: clk, Repo: repository.Provide(), Cfg: cfg,
	}), clk
}

func TestGetFallsBackToDefaults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	currency, err := svc.Get(ctx, "currency")
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)

	successURL, err := svc.Get(ctx, domain.KeyCheckoutSuccessURL)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/ok", successURL)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSetting)
}

func TestSetInvalidatesCachedValue(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, domain.KeyCurrency)
	require.NoError(t, err)
	_, err = svc.Get(ctx, domain.KeyCurrency)
	require.NoError(t, err)
	hits, misses := svc.Cache().Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)

	_, err = svc.Set(ctx, "Currency", "eur")
	require.NoError(t, err)

	currency, err := svc.Get(ctx, domain.KeyCurrency)
	require.NoError(t, err)
	assert.Equal(t, "EUR", currency)

	_, err = svc.Set(ctx, domain.KeyCurrency, "EURO")
	assert.ErrorIs(t, err, domain.ErrInvalidSetting)
	_, err = svc.Set(ctx, domain.KeyCheckoutCancelURL, "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidSetting)
}

func TestListMergesStoredValues(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Set(ctx, domain.KeyCheckoutCancelURL, "https://app.example/cancel")
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, domain.KeyCheckoutCancelURL, items[0].Key)
	assert.Equal(t, "https://app.example/cancel", items[0].Value)
	assert.Equal(t, domain.KeyCurrency, items[2].Key)
}

func TestCacheExpires(t *testing.T) {
	loads := 0
	cache := service.NewCache(4, 20*time.Millisecond, func(ctx context.Context, key string) (string, error) {
		loads++
		return key + "-value", nil
	})
	ctx := context.Background()

	v, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a-value", v)
	_, _ = cache.Get(ctx, "a")
	assert.Equal(t, 1, loads)

	require.Eventually(t, func() bool {
		_, _ = cache.Get(ctx, "a")
		return loads > 1
	}, time.Second, 10*time.Millisecond)

	cache.Invalidate()
	_, _ = cache.Get(ctx, "a")
	assert.GreaterOrEqual(t, loads, 3)
}
