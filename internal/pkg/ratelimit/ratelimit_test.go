package ratelimit

import (
	"context"
	"testing"

	"tourhive/internal/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Errorf("close redis: %v", err)
		}
	})
	return rdb
}

func TestLimiter_AllowWithinBurst(t *testing.T) {
	metrics.InitMetrics(1)
	rdb := newMiniRedis(t)

	limiter := NewRedisLimiter(rdb, 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "client-a")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
}

func TestLimiter_RejectsWhenBucketEmpty(t *testing.T) {
	metrics.InitMetrics(1)
	rdb := newMiniRedis(t)

	// rate 极低，桶耗尽后短期内不会补满
	limiter := NewRedisLimiter(rdb, 0.001, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, err := limiter.Allow(ctx, "client-b"); err != nil || !allowed {
			t.Fatalf("warmup %d: allowed=%v err=%v", i, allowed, err)
		}
	}

	allowed, err := limiter.Allow(ctx, "client-b")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Error("expected rejection once bucket is empty")
	}
}

func TestLimiter_BucketsArePerClient(t *testing.T) {
	metrics.InitMetrics(1)
	rdb := newMiniRedis(t)

	limiter := NewRedisLimiter(rdb, 0.001, 1)
	ctx := context.Background()

	if allowed, err := limiter.Allow(ctx, "client-c"); err != nil || !allowed {
		t.Fatalf("first client: allowed=%v err=%v", allowed, err)
	}
	// client-c 的桶空了，client-d 不受影响
	if allowed, err := limiter.Allow(ctx, "client-d"); err != nil || !allowed {
		t.Fatalf("second client: allowed=%v err=%v", allowed, err)
	}
	if allowed, _ := limiter.Allow(ctx, "client-c"); allowed {
		t.Error("first client should be exhausted")
	}
}

func TestLimiter_DisabledAlwaysAllows(t *testing.T) {
	metrics.InitMetrics(1)

	limiter := NewRedisLimiter(nil, 0, 0)
	allowed, err := limiter.Allow(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Error("disabled limiter must allow everything")
	}
}
