package stream

import (
	"context"

	"github.com/evdnx/brooksfutures/cache"
	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/filter"
)

// OBIWorker consumes one symbol's depth stream into a
// filter.OBITracker and mirrors every reading to the cache with its 10s
// TTL.
type OBIWorker struct {
	tracker *filter.OBITracker
	c       *cache.Cache
	symbol  string
	onUpdate func(filter.OBISnapshot)
}

// NewOBIWorker returns a worker updating tracker and mirroring to c
// (which may be nil). onUpdate, if non-nil, is invoked with every fresh
// snapshot so the orchestrator can apply it as a live signal modifier.
func NewOBIWorker(tracker *filter.OBITracker, c *cache.Cache, symbol string, onUpdate func(filter.OBISnapshot)) *OBIWorker {
	return &OBIWorker{tracker: tracker, c: c, symbol: symbol, onUpdate: onUpdate}
}

// Run streams depth updates from source until ctx is cancelled.
func (w *OBIWorker) Run(ctx context.Context, source exchange.MarketStream) error {
	depth, err := source.Depth(ctx, w.symbol)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-depth:
			if !ok {
				return nil
			}
			snap := w.tracker.Update(d.TotalBidQty, d.TotalAskQty)
			w.c.SetOBI(ctx, w.symbol, snap)
			if w.onUpdate != nil {
				w.onUpdate(snap)
			}
		}
	}
}
