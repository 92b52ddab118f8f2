package redis

import (
	"context"
	"time"
)

// SendLimiter adapts the fixed-window limiter to the pool's per-customer
// outbound send policy.
type SendLimiter struct {
	rl     *RateLimiter
	limit  int
	window time.Duration
}

func NewSendLimiter(client RedisClient, limit int, window time.Duration) *SendLimiter {
	return &SendLimiter{rl: NewRateLimiter(client), limit: limit, window: window}
}

func (s *SendLimiter) Allow(ctx context.Context, customerID string) (bool, error) {
	return s.rl.Allow(ctx, CustomerSendKey(customerID), s.limit, s.window)
}
