package stream

import (
	"context"
	"time"

	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/filter"
	"github.com/evdnx/brooksfutures/indicator"
	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/market"
)

// HTFPollInterval is how often the higher-timeframe filter is
// refreshed.
const HTFPollInterval = 60 * time.Second

// HTFLookback is how many higher-timeframe closes are fetched per poll,
// enough to seed the EMA and its slope lookback.
const HTFLookback = 60

// HTFPoller periodically refetches a higher-timeframe kline series and
// recomputes a filter.HTFFilter's snapshot.
type HTFPoller struct {
	source    exchange.HistoricalSource
	target    *filter.HTFFilter
	swings    *market.HTFSwingTracker
	symbol    string
	interval  string
	emaPeriod int
	log       logger.Logger
}

// NewHTFPoller returns a poller that refreshes target, and swings (the
// optional higher-timeframe structural-stop tracker; nil-safe), every
// HTFPollInterval using symbol's interval-timeframe klines.
func NewHTFPoller(source exchange.HistoricalSource, target *filter.HTFFilter, swings *market.HTFSwingTracker, symbol, interval string, emaPeriod int, log logger.Logger) *HTFPoller {
	return &HTFPoller{source: source, target: target, swings: swings, symbol: symbol, interval: interval, emaPeriod: emaPeriod, log: log}
}

// Run polls until ctx is cancelled, refreshing the HTF filter on each
// tick (and once immediately on start).
func (p *HTFPoller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(HTFPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *HTFPoller) poll(ctx context.Context) {
	intervalMs := IntervalMs(p.interval)
	startMs := int64(0)
	if intervalMs > 0 {
		startMs = time.Now().UnixMilli() - intervalMs*HTFLookback
	}
	events, err := p.source.FetchKlines(ctx, p.symbol, p.interval, startMs, HTFLookback)
	if err != nil {
		if p.log != nil {
			p.log.Warn("htf poll failed", logger.Err(err))
		}
		return
	}
	if len(events) == 0 {
		return
	}

	closes := make([]float64, len(events))
	highs := make([]float64, len(events))
	lows := make([]float64, len(events))
	emaSeries := make([]float64, len(events))
	ema := indicator.NewEMA(p.emaPeriod)
	for i, ev := range events {
		closes[i] = ev.Close
		highs[i] = ev.High
		lows[i] = ev.Low
		emaSeries[i] = ema.Update(ev.Close)
	}
	p.target.Update(closes, emaSeries)
	if p.swings != nil {
		p.swings.UpdateFromSeries(highs, lows)
	}
}
