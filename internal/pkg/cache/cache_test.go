package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
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
	return New(rdb, time.Minute), s
}

func TestCache_SetGetRoundtrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	in := payload{Name: "forest hiker", Price: 497}
	if err := c.SetJSON(ctx, "stats", in); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out payload
	if err := c.GetJSON(ctx, "stats", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestCache_MissReturnsErrMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var out payload
	err := c.GetJSON(context.Background(), "nope", &out)
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "stats", payload{Name: "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete(ctx, "stats"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var out payload
	if err := c.GetJSON(ctx, "stats", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestCache_EntriesExpire(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "stats", payload{Name: "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	// miniredis 的时钟手动快进
	s.FastForward(2 * time.Minute)

	var out payload
	if err := c.GetJSON(ctx, "stats", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestCache_NilClientDegradesGracefully(t *testing.T) {
	var c *Cache

	if err := c.SetJSON(context.Background(), "k", payload{}); err != nil {
		t.Errorf("nil cache set should be a no-op, got %v", err)
	}
	var out payload
	if err := c.GetJSON(context.Background(), "k", &out); !errors.Is(err, ErrMiss) {
		t.Errorf("nil cache get should miss, got %v", err)
	}
}
