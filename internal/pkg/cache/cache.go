package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tourhive:cache:"

// ErrMiss 表示缓存未命中。
var ErrMiss = errors.New("cache miss")

// Cache 是基于 Redis 的 JSON 对象缓存。
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New 创建缓存，ttl 非法时回落到 5 分钟。
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		rdb: rdb,
		ttl: ttl,
	}
}

// GetJSON 读取 key 并反序列化到 dest；未命中返回 ErrMiss。
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if c == nil || c.rdb == nil {
		return ErrMiss
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

// SetJSON 序列化 value 并写入 key，带 TTL。
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete 删除 key。
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}
