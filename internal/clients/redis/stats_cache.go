package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/stratlab-backend/internal/logger"
)

// StatsCache is a read-through cache for progression stats. A nil cache is
// valid and does nothing, so the service runs fine without redis.
type StatsCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStatsCache(log *logger.Logger) (*StatsCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &StatsCache{
		log: log.With("service", "RedisStatsCache"),
		rdb: rdb,
		ttl: 5 * time.Minute,
	}, nil
}

func statsKey(userID uuid.UUID) string {
	return "stats:" + userID.String()
}

func (c *StatsCache) Get(ctx context.Context, userID uuid.UUID, out interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, statsKey(userID)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("Corrupt stats cache entry, dropping", "user_id", userID.String(), "error", err)
		_ = c.rdb.Del(ctx, statsKey(userID)).Err()
		return false
	}
	return true
}

func (c *StatsCache) Set(ctx context.Context, userID uuid.UUID, stats interface{}) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, statsKey(userID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Failed to write stats cache", "user_id", userID.String(), "error", err)
	}
}

func (c *StatsCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, statsKey(userID)).Err(); err != nil {
		c.log.Warn("Failed to invalidate stats cache", "user_id", userID.String(), "error", err)
	}
}

func (c *StatsCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
