package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/schoolbilling/internal/config"
	"github.com/smallbiznis/schoolbilling/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyQuoteClient = "schoolbilling:quote:%s:%s"

// QuoteLimiter throttles the pricing endpoints per client. A disabled limiter
// allows everything, and redis failures fail open.
type QuoteLimiter struct {
	bucket  *TokenBucket
	rate    float64
	burst   int
	metrics *metrics.Metrics
	log     *zap.Logger
}

type QuoteLimiterParams struct {
	fx.In

	Config  config.Config
	Client  *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

func NewQuoteLimiter(p QuoteLimiterParams) *QuoteLimiter {
	l := &QuoteLimiter{
		rate:    float64(p.Config.QuoteRateLimit),
		burst:   p.Config.QuoteRateBurst,
		metrics: p.Metrics,
		log:     p.Log.Named("ratelimit.quote"),
	}
	if l.burst <= 0 {
		l.burst = p.Config.QuoteRateLimit
	}
	if p.Config.RateLimitEnabled() && p.Client != nil {
		l.bucket = NewTokenBucket(p.Client)
	}
	return l
}

func (l *QuoteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one request for client on endpoint.
func (l *QuoteLimiter) Allow(ctx context.Context, endpoint, client string) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}

	key := fmt.Sprintf(keyQuoteClient, strings.TrimSpace(endpoint), strings.TrimSpace(client))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
		return &Result{Allowed: true, Limit: l.burst}
	}

	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "quota_exhausted")
	}
	return res
}
