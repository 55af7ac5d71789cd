// Package stream runs the long-lived background workers that feed the
// orchestrator: a bar producer with gap-repair-by-refetch, an order-flow
// delta aggregator, an order-book-imbalance tracker, a higher-timeframe
// poller, and the per-user position lifecycle loop.
package stream

import (
	"context"
	"fmt"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/logger"
)

// intervalMillis resolves the handful of kline intervals this engine is
// deployed against.
var intervalMillis = map[string]int64{
	"1m":  60_000,
	"3m":  180_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"4h":  14_400_000,
	"1d":  86_400_000,
}

// IntervalMs returns the millisecond duration of a kline interval
// string, or 0 if unrecognized.
func IntervalMs(interval string) int64 { return intervalMillis[interval] }

// BarProducer consumes one symbol's kline stream, appends closed bars to
// a bar.Window, and repairs any gap left by a dropped websocket message
// by refetching the missing range over REST; a bar is only skipped once
// that refetch has already been tried.
type BarProducer struct {
	source     exchange.MarketStream
	historical exchange.HistoricalSource
	symbol     string
	interval   string
	intervalMs int64
	window     *bar.Window
	log        logger.Logger
}

// NewBarProducer returns a producer for symbol/interval, appending into
// window. historical may be nil, in which case gaps are logged and
// skipped rather than repaired.
func NewBarProducer(source exchange.MarketStream, historical exchange.HistoricalSource, symbol, interval string, window *bar.Window, log logger.Logger) *BarProducer {
	return &BarProducer{
		source:     source,
		historical: historical,
		symbol:     symbol,
		interval:   interval,
		intervalMs: IntervalMs(interval),
		window:     window,
		log:        log,
	}
}

// Run streams closed klines until ctx is cancelled, invoking onBar for
// every bar appended to the window (including ones recovered by gap
// repair, oldest first).
func (p *BarProducer) Run(ctx context.Context, onBar func(bar.Bar)) error {
	klines, err := p.source.Klines(ctx, p.symbol, p.interval)
	if err != nil {
		return fmt.Errorf("stream: subscribe klines: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-klines:
			if !ok {
				return nil
			}
			if !ev.Closed {
				continue
			}
			p.ingest(ctx, exchangeToBar(ev), onBar)
		}
	}
}

func exchangeToBar(ev exchange.KlineEvent) bar.Bar {
	return bar.Bar{OpenTime: ev.OpenTimeMs, Open: ev.Open, High: ev.High, Low: ev.Low, Close: ev.Close}
}

// ingest appends b, first repairing any gap between the window's last
// bar and b's open time.
func (p *BarProducer) ingest(ctx context.Context, b bar.Bar, onBar func(bar.Bar)) {
	last := p.window.LastOpenTime()
	if last >= 0 && p.intervalMs > 0 && b.OpenTime-last > p.intervalMs {
		p.repairGap(ctx, last+p.intervalMs, b.OpenTime, onBar)
	}
	if p.window.Append(b) {
		onBar(b)
	}
}

// repairGap refetches every missing closed bar in [fromMs, toMs) over
// REST, backing off between attempts, and gives up (logging once) after
// MaxAttempts — the gap is then left for the next live bar to close.
func (p *BarProducer) repairGap(ctx context.Context, fromMs, toMs int64, onBar func(bar.Bar)) {
	if p.historical == nil {
		if p.log != nil {
			p.log.Warn("kline gap detected, no historical source configured", logger.String("symbol", p.symbol))
		}
		return
	}

	backoff := NewBackoff()
	for {
		limit := int((toMs-fromMs)/p.intervalMs) + 1
		if limit < 1 {
			limit = 1
		}
		events, err := p.historical.FetchKlines(ctx, p.symbol, p.interval, fromMs, limit)
		if err == nil {
			for _, ev := range events {
				if ev.OpenTimeMs >= toMs {
					break
				}
				if p.window.Append(exchangeToBar(ev)) {
					onBar(exchangeToBar(ev))
				}
			}
			return
		}
		if p.log != nil {
			p.log.Warn("gap refetch failed", logger.String("symbol", p.symbol), logger.Err(err))
		}
		if !backoff.Sleep(ctx) {
			if p.log != nil {
				p.log.Warn("gap refetch abandoned after max attempts", logger.String("symbol", p.symbol))
			}
			return
		}
	}
}
