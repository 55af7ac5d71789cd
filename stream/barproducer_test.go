package stream

import (
	"context"
	"testing"
	"time"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/exchange"
)

type fakeMarketStream struct {
	klines chan exchange.KlineEvent
}

func (f *fakeMarketStream) Klines(ctx context.Context, symbol, interval string) (<-chan exchange.KlineEvent, error) {
	return f.klines, nil
}
func (f *fakeMarketStream) AggTrades(ctx context.Context, symbol string) (<-chan exchange.AggTradeEvent, error) {
	ch := make(chan exchange.AggTradeEvent)
	return ch, nil
}
func (f *fakeMarketStream) Depth(ctx context.Context, symbol string) (<-chan exchange.DepthEvent, error) {
	ch := make(chan exchange.DepthEvent)
	return ch, nil
}

type fakeHistorical struct {
	bars []exchange.KlineEvent
}

func (f *fakeHistorical) FetchKlines(ctx context.Context, symbol, interval string, startMs int64, limit int) ([]exchange.KlineEvent, error) {
	var out []exchange.KlineEvent
	for _, b := range f.bars {
		if b.OpenTimeMs >= startMs {
			out = append(out, b)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func TestBarProducerAppendsContiguousBars(t *testing.T) {
	src := &fakeMarketStream{klines: make(chan exchange.KlineEvent, 4)}
	window := bar.NewWindow(10)
	p := NewBarProducer(src, nil, "BTCUSDT", "1m", window, nil)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan bar.Bar, 4)
	go p.Run(ctx, func(b bar.Bar) { received <- b })

	src.klines <- exchange.KlineEvent{OpenTimeMs: 60_000, Close: 100, Closed: true}
	src.klines <- exchange.KlineEvent{OpenTimeMs: 120_000, Close: 101, Closed: true}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for bar %d", i)
		}
	}
	cancel()
	if window.Len() != 2 {
		t.Fatalf("expected 2 bars in window, got %d", window.Len())
	}
}

func TestBarProducerRepairsGapViaHistorical(t *testing.T) {
	src := &fakeMarketStream{klines: make(chan exchange.KlineEvent, 4)}
	historical := &fakeHistorical{bars: []exchange.KlineEvent{
		{OpenTimeMs: 120_000, Close: 50, Closed: true},
		{OpenTimeMs: 180_000, Close: 51, Closed: true},
	}}
	window := bar.NewWindow(10)
	window.Append(bar.Bar{OpenTime: 60_000, Close: 49})

	p := NewBarProducer(src, historical, "BTCUSDT", "1m", window, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan bar.Bar, 4)
	go p.Run(ctx, func(b bar.Bar) { received <- b })

	// A live bar at 240_000 skips two intervals (120_000 and 180_000),
	// which must be backfilled from the historical source first.
	src.klines <- exchange.KlineEvent{OpenTimeMs: 240_000, Close: 52, Closed: true}

	for i := 0; i < 3; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for bar %d", i)
		}
	}
	if window.Len() != 4 {
		t.Fatalf("expected 4 contiguous bars after gap repair, got %d", window.Len())
	}
}

func TestBackoffCapsAtSixtySeconds(t *testing.T) {
	b := NewBackoff()
	var last time.Duration
	for i := 0; i < 12; i++ {
		last = b.Next()
	}
	if last != 60*time.Second {
		t.Fatalf("expected backoff to cap at 60s, got %v", last)
	}
}

func TestBackoffResetZeroesAttempt(t *testing.T) {
	b := NewBackoff()
	b.Next()
	b.Next()
	b.Reset()
	if d := b.Next(); d != time.Second {
		t.Fatalf("expected first delay after reset to be 1s, got %v", d)
	}
}
