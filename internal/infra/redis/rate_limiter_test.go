package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockRedisClient struct {
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error { return nil }
func (m *mockRedisClient) Close() error                                  { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("should allow under the limit and set TTL on first hit", func(t *testing.T) {
		expired := false
		rl := NewRateLimiter(&mockRedisClient{
			IncrFunc: func(ctx context.Context, key string) (int64, error) { return 1, nil },
			ExpireFunc: func(ctx context.Context, key string, _ time.Duration) error {
				expired = true
				return nil
			},
		})
		ok, err := rl.Allow(ctx, CustomerSendKey("c1"), 30, time.Second)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !ok {
			t.Error("expected first call to be allowed")
		}
		if !expired {
			t.Error("expected TTL to be set on first increment")
		}
	})

	t.Run("should deny over the limit", func(t *testing.T) {
		rl := NewRateLimiter(&mockRedisClient{
			IncrFunc:   func(ctx context.Context, key string) (int64, error) { return 31, nil },
			ExpireFunc: func(ctx context.Context, key string, _ time.Duration) error { return nil },
		})
		ok, err := rl.Allow(ctx, CustomerSendKey("c1"), 30, time.Second)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if ok {
			t.Error("expected call over the limit to be denied")
		}
	})

	t.Run("should propagate redis errors", func(t *testing.T) {
		wantErr := errors.New("redis down")
		rl := NewRateLimiter(&mockRedisClient{
			IncrFunc: func(ctx context.Context, key string) (int64, error) { return 0, wantErr },
		})
		if _, err := rl.Allow(ctx, "k", 1, time.Second); !errors.Is(err, wantErr) {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
	})
}
