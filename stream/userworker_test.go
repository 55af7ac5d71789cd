package stream

import (
	"context"
	"testing"
	"time"

	"github.com/evdnx/brooksfutures/config"
	"github.com/evdnx/brooksfutures/position"
	"github.com/evdnx/brooksfutures/risk"
	"github.com/evdnx/brooksfutures/testutils"
	"github.com/evdnx/brooksfutures/types"
)

func TestUserWorkerOpensPositionFromEntrySignal(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	positions := position.NewManager(nil)
	w := NewUserWorker("u1", acct, positions, risk.DefaultSizePolicy{StepSize: 0.001, MinQty: 0.001}, config.Default(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Entries() <- EntrySignal{
		Symbol: "BTCUSDT", Side: types.Buy, Qty: 1, Price: 100, IsSpike: true,
		Stop: 95, TP1: 105, TP2: 110, TP1CloseRatio: 0.5, Strength: 2.0,
	}

	deadline := time.Now().Add(time.Second)
	for positions.Get("u1") == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	trade := positions.Get("u1")
	if trade == nil {
		t.Fatalf("expected a trade record to be opened")
	}
	if trade.EntryPrice != 100 || trade.Quantity != 1 {
		t.Fatalf("unexpected trade record: %+v", trade)
	}
}

func TestUserWorkerSizesFromBalanceWhenQtyUnset(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	acct.SetBalance(10_000)
	positions := position.NewManager(nil)
	cfg := config.Default()
	cfg.PositionSizePercent = 10
	cfg.Leverage = 5
	w := NewUserWorker("u1", acct, positions, risk.DefaultSizePolicy{StepSize: 0.001, MinQty: 0.001}, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Entries() <- EntrySignal{
		Symbol: "BTCUSDT", Side: types.Buy, Price: 100, IsSpike: true,
		Stop: 95, TP1: 105, TP2: 110, TP1CloseRatio: 0.5, Strength: 2.0,
	}

	deadline := time.Now().Add(time.Second)
	for positions.Get("u1") == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	trade := positions.Get("u1")
	if trade == nil {
		t.Fatalf("expected a trade record to be opened")
	}
	// balance 10,000 * 10% * 5x leverage / price 100 = 5
	if trade.Quantity != 5 {
		t.Fatalf("expected auto-sized quantity 5, got %v", trade.Quantity)
	}
}

func TestUserWorkerOnBarClosesOnStopTouch(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	positions := position.NewManager(nil)
	w := NewUserWorker("u1", acct, positions, risk.DefaultSizePolicy{StepSize: 0.001, MinQty: 0.001}, config.Default(), nil, nil)

	positions.Open(&position.TradeRecord{
		User: "u1", Symbol: "BTCUSDT", Side: types.Buy,
		EntryPrice: 100, Quantity: 1, EffectiveStop: 95, TP1: 110, TP2: 120, TP1CloseRatio: 0.5,
	})

	w.OnBar(context.Background(), 99, 94, 94, 1.0, 1)

	if positions.Get("u1") != nil {
		t.Fatalf("expected position closed on stop touch")
	}
	orders := acct.Orders()
	if len(orders) != 1 || orders[0].Side != types.Sell || !orders[0].ReduceOnly {
		t.Fatalf("expected one reduce-only sell close, got %+v", orders)
	}
}
