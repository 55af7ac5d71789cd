package stream

import (
	"context"
	"time"

	"github.com/evdnx/brooksfutures/cache"
	"github.com/evdnx/brooksfutures/delta"
	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/metrics"
)

// DeltaSnapshotInterval is how often the aggregator snapshots the delta
// engine into the cache.
const DeltaSnapshotInterval = 5 * time.Second

// DeltaAggregator feeds one symbol's aggregate-trade stream into a
// delta.Engine and periodically mirrors its snapshot to the cache.
type DeltaAggregator struct {
	engine *delta.Engine
	c      *cache.Cache
	symbol string
}

// NewDeltaAggregator returns an aggregator writing symbol's delta
// snapshots through c (which may be nil).
func NewDeltaAggregator(engine *delta.Engine, c *cache.Cache, symbol string) *DeltaAggregator {
	return &DeltaAggregator{engine: engine, c: c, symbol: symbol}
}

// Run streams aggregate trades from source until ctx is cancelled,
// feeding the delta engine and snapshotting on a fixed tick.
func (a *DeltaAggregator) Run(ctx context.Context, source exchange.MarketStream) error {
	trades, err := source.AggTrades(ctx, a.symbol)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(DeltaSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-trades:
			if !ok {
				return nil
			}
			a.engine.AddTrade(t.TradeTimeMs, t.Price, t.Qty, t.BuyerIsMaker)
		case <-ticker.C:
			a.snapshot()
		}
	}
}

func (a *DeltaAggregator) snapshot() {
	start := time.Now()
	snap := a.engine.Snapshot(time.Now().UnixMilli())
	metrics.DeltaSnapshotLatency.Observe(time.Since(start).Seconds())
	a.c.SetDelta(context.Background(), a.symbol, snap)
}
