// Package cache is a write-through Redis mirror of per-user position
// state and per-symbol delta/OBI snapshots.
// Never authoritative: a write failure is logged once and the caller
// falls back to its in-memory state, grounded on
// mandeep1729-algomatic-state/marketdata-service's redisbus.Bus for the
// go-redis/v9 client wiring style.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evdnx/brooksfutures/logger"
)

// OBITTL is the order-book-imbalance cache entry lifetime.
const OBITTL = 10 * time.Second

// AuxState is the `trade:aux:{user}` payload.
type AuxState struct {
	TP1Placed     bool      `json:"tp1_placed"`
	TP2Placed     bool      `json:"tp2_placed"`
	Trailing      bool      `json:"trailing"`
	CooldownUntil time.Time `json:"cooldown_until"`
}

// Cache wraps a go-redis client with this engine's key layout. A
// nil *Cache (constructed with no REDIS_URL configured) is valid and
// every method becomes a no-op, matching the optional-cache contract.
type Cache struct {
	client *redis.Client
	log    logger.Logger
	warned bool
}

// New connects to redisURL. Returns (nil, nil) when redisURL is empty,
// so callers can treat the cache as always-present but optional.
func New(redisURL string, log logger.Logger) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opt), log: log}, nil
}

func (c *Cache) warn(op string, err error) {
	if c == nil || c.log == nil || c.warned {
		return
	}
	c.warned = true
	c.log.Warn("redis cache degraded to in-memory", logger.String("op", op), logger.Err(err))
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func positionKey(user string) string { return "trade:position:" + user }
func auxKey(user string) string      { return "trade:aux:" + user }
func deltaKey(symbol string) string  { return "cache:delta:" + symbol }
func obiKey(symbol string) string    { return "cache:obi:" + symbol }

// SetPosition write-through mirrors a serialized trade record.
func (c *Cache) SetPosition(ctx context.Context, user string, v interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.warn("marshal_position", err)
		return
	}
	if err := c.client.Set(ctx, positionKey(user), data, 0).Err(); err != nil {
		c.warn("set_position", err)
	}
}

// GetPosition reads back a cached trade record, if any.
func (c *Cache) GetPosition(ctx context.Context, user string, out interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, positionKey(user)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.warn("get_position", err)
		}
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// DeletePosition removes a user's cached position (force-close on a
// reconciliation mismatch).
func (c *Cache) DeletePosition(ctx context.Context, user string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, positionKey(user)).Err(); err != nil {
		c.warn("del_position", err)
	}
}

// SetAux write-through mirrors the per-user auxiliary order state.
func (c *Cache) SetAux(ctx context.Context, user string, aux AuxState) {
	if c == nil {
		return
	}
	data, err := json.Marshal(aux)
	if err != nil {
		c.warn("marshal_aux", err)
		return
	}
	if err := c.client.Set(ctx, auxKey(user), data, 0).Err(); err != nil {
		c.warn("set_aux", err)
	}
}

// SetDelta write-through mirrors the order-flow delta snapshot.
func (c *Cache) SetDelta(ctx context.Context, symbol string, v interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.warn("marshal_delta", err)
		return
	}
	if err := c.client.Set(ctx, deltaKey(symbol), data, 0).Err(); err != nil {
		c.warn("set_delta", err)
	}
}

// SetOBI write-through mirrors the order-book-imbalance snapshot with a
// 10s TTL.
func (c *Cache) SetOBI(ctx context.Context, symbol string, v interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.warn("marshal_obi", err)
		return
	}
	if err := c.client.Set(ctx, obiKey(symbol), data, OBITTL).Err(); err != nil {
		c.warn("set_obi", err)
	}
}
