package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewQuoteLimiter),
	fx.Provide(ProvideEntityLocker),
)

// ProvideEntityLocker yields a nil interface when redis is disabled.
func ProvideEntityLocker(client *redis.Client) billingdomain.EntityLocker {
	if client == nil {
		return nil
	}
	return NewLocker(client)
}
