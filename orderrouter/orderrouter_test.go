package orderrouter

import (
	"context"
	"testing"

	"github.com/evdnx/brooksfutures/testutils"
	"github.com/evdnx/brooksfutures/types"
)

func TestOpenSpikeUsesMarketOrder(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	r := New(acct, nil)

	res, err := r.Open(context.Background(), EntryRequest{
		Symbol: "BTCUSDT", Side: types.Buy, Qty: 1, Price: 100, IsSpike: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Qty != 1 || res.Price != 100 {
		t.Fatalf("unexpected fill: %+v", res)
	}
	orders := acct.Orders()
	if len(orders) != 1 || orders[0].Type != types.OrderMarket {
		t.Fatalf("expected one market order, got %+v", orders)
	}
}

func TestOpenNonSpikeUsesLimitOrder(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	r := New(acct, nil)

	res, err := r.Open(context.Background(), EntryRequest{
		Symbol: "BTCUSDT", Side: types.Sell, Qty: 2, Price: 99.5, IsSpike: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Qty != 2 || res.Price != 99.5 {
		t.Fatalf("unexpected fill: %+v", res)
	}
	orders := acct.Orders()
	if len(orders) != 1 || orders[0].Type != types.OrderLimit || orders[0].TimeInForce != types.GTC {
		t.Fatalf("expected one GTC limit order, got %+v", orders)
	}
}

func TestPlaceTP1AndTP2AreReduceOnly(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	r := New(acct, nil)

	if _, err := r.PlaceTP1(context.Background(), "BTCUSDT", types.Buy, 0.5, 105); err != nil {
		t.Fatalf("tp1: %v", err)
	}
	if _, err := r.PlaceTP2(context.Background(), "BTCUSDT", types.Buy, 0.5, 110); err != nil {
		t.Fatalf("tp2: %v", err)
	}
	for _, o := range acct.Orders() {
		if !o.ReduceOnly {
			t.Fatalf("expected all TP orders reduce-only, got %+v", o)
		}
	}
}

func TestCloseSendsReduceOnlyMarketExit(t *testing.T) {
	acct := testutils.NewMockExchange("u1")
	r := New(acct, nil)

	if err := r.Close(context.Background(), "BTCUSDT", types.Buy, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	orders := acct.Orders()
	if len(orders) != 1 || orders[0].Side != types.Sell || !orders[0].ReduceOnly {
		t.Fatalf("expected one reduce-only sell close, got %+v", orders)
	}
}
