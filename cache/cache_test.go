package cache

import (
	"context"
	"testing"
	"time"

	"github.com/evdnx/brooksfutures/testutils"
)

func TestNewWithEmptyURLReturnsNilCache(t *testing.T) {
	c, err := New("", nil)
	if err != nil || c != nil {
		t.Fatalf("expected nil, nil for empty url, got %v, %v", c, err)
	}
}

func TestNewRejectsMalformedURL(t *testing.T) {
	if _, err := New("not-a-redis-url", nil); err == nil {
		t.Fatalf("expected parse error for malformed url")
	}
}

func TestNilCacheMethodsAreNoOps(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.SetPosition(ctx, "u1", map[string]string{"x": "y"})
	c.SetAux(ctx, "u1", AuxState{TP1Placed: true})
	c.SetDelta(ctx, "BTCUSDT", map[string]float64{"ratio": 0.5})
	c.SetOBI(ctx, "BTCUSDT", map[string]float64{"imbalance": 0.1})
	c.DeletePosition(ctx, "u1")

	var out map[string]string
	if c.GetPosition(ctx, "u1", &out) {
		t.Fatalf("nil cache GetPosition should report miss")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil cache Close should be a no-op: %v", err)
	}
}

func TestDegradedCacheWarnsOnce(t *testing.T) {
	log := testutils.NewMockLogger()
	// Port 1 refuses connections immediately on loopback; exercises the
	// degrade-to-in-memory path without a live Redis server.
	c, err := New("redis://127.0.0.1:1/0", log)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.SetPosition(ctx, "u1", map[string]string{"x": "y"})
	if log.LastMessage() != "redis cache degraded to in-memory" {
		t.Fatalf("expected degrade warning, got %q", log.LastMessage())
	}

	before := len(log.Entries())
	c.SetAux(ctx, "u1", AuxState{})
	if len(log.Entries()) != before {
		t.Fatalf("expected warn-once: no additional log entries after first failure")
	}
}
