package stream

import (
	"context"
	"testing"
	"time"

	"github.com/evdnx/brooksfutures/delta"
	"github.com/evdnx/brooksfutures/exchange"
)

type tradeOnlyStream struct {
	trades chan exchange.AggTradeEvent
}

func (f *tradeOnlyStream) Klines(ctx context.Context, symbol, interval string) (<-chan exchange.KlineEvent, error) {
	return make(chan exchange.KlineEvent), nil
}
func (f *tradeOnlyStream) AggTrades(ctx context.Context, symbol string) (<-chan exchange.AggTradeEvent, error) {
	return f.trades, nil
}
func (f *tradeOnlyStream) Depth(ctx context.Context, symbol string) (<-chan exchange.DepthEvent, error) {
	return make(chan exchange.DepthEvent), nil
}

func TestDeltaAggregatorFeedsEngine(t *testing.T) {
	src := &tradeOnlyStream{trades: make(chan exchange.AggTradeEvent, 2)}
	engine := delta.NewEngine(300)
	agg := NewDeltaAggregator(engine, nil, "BTCUSDT")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx, src)

	src.trades <- exchange.AggTradeEvent{Price: 100, Qty: 1, BuyerIsMaker: false, TradeTimeMs: time.Now().UnixMilli()}
	src.trades <- exchange.AggTradeEvent{Price: 100, Qty: 1, BuyerIsMaker: true, TradeTimeMs: time.Now().UnixMilli()}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := engine.Snapshot(time.Now().UnixMilli())
		if snap.TradeCount == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected both trades to reach the engine")
}
