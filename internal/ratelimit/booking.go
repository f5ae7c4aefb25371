package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lingohub/internal/config"
)

const keyBookingClient = "lingohub:ratelimit:booking:%s"

// BookingLimiter throttles checkout creation per client. A nil limiter
// allows everything.
type BookingLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewBookingLimiter(cfg config.Config, client *redis.Client) *BookingLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil
	}
	if limitCfg.BookingRate <= 0 || limitCfg.BookingBurst <= 0 {
		return nil
	}
	return &BookingLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.BookingRate,
		burst:  limitCfg.BookingBurst,
	}
}

func (l *BookingLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *BookingLimiter) AllowClient(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyBookingClient, strings.TrimSpace(clientKey)), l.rate, l.burst)
}
