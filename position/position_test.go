package position

import (
	"testing"
	"time"

	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

func openBuy(m *Manager, user string) {
	m.Open(&TradeRecord{
		User:          user,
		Symbol:        "BTCUSDT",
		Signal:        "Spike_Buy",
		Side:          types.Buy,
		EntryPrice:    100,
		Quantity:      1,
		EffectiveStop: 95,
		TP1:           105,
		TP2:           115,
		TP1CloseRatio: 0.5,
		SignalStrength: 1.0,
	})
}

func TestEvaluateTP1ThenTP2(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	ev := m.Evaluate("u1", 105, 104, 105, 1)
	if ev == nil || ev.Stage != "tp1" {
		t.Fatalf("expected tp1 event, got %+v", ev)
	}
	if ev.CloseQty != 0.5 || ev.RemainingQty != 0.5 {
		t.Fatalf("unexpected tp1 quantities: %+v", ev)
	}

	tr := m.Get("u1")
	if tr.EffectiveStop <= tr.EntryPrice {
		t.Fatalf("expected stop moved to breakeven+fee, got %v", tr.EffectiveStop)
	}

	ev2 := m.Evaluate("u1", 116, 114, 116, 1)
	if ev2 == nil || ev2.Stage != "tp2" || !ev2.FullyClosed {
		t.Fatalf("expected tp2 full close, got %+v", ev2)
	}
	if m.Get("u1") != nil {
		t.Fatal("expected trade removed after tp2")
	}
}

func TestEvaluateStopLossSetsCooldown(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	ev := m.Evaluate("u1", 96, 94, 94, 1)
	if ev == nil || ev.Stage != "stop_loss" || !ev.IsLoss {
		t.Fatalf("expected stop_loss exit, got %+v", ev)
	}
	if !m.IsCoolingDown("u1", time.Now()) {
		t.Fatal("expected cooldown active after a loss exit")
	}
}

func TestEvaluateTrailingStopRatchetsOnly(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	// Push profit to 1R to activate trailing.
	m.Evaluate("u1", 105.5, 105, 105.5, 1)
	tr := m.Get("u1")
	if !tr.Trailing.Activated {
		t.Fatal("expected trailing activated at >=0.8R profit")
	}
	first := tr.Trailing.TrailingStop

	// Price retreats; trailing stop must not loosen.
	m.Evaluate("u1", 104, 103, 104, 1)
	tr2 := m.Get("u1")
	if tr2 != nil && tr2.Trailing.TrailingStop < first {
		t.Fatalf("trailing stop loosened: %v -> %v", first, tr2.Trailing.TrailingStop)
	}
}

func TestReversalAllowedGating(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	if m.ReversalAllowed("u1", types.Sell, 1.1, market.StateStrongTrend) {
		t.Fatal("expected reversal rejected below 1.5x threshold in StrongTrend")
	}
	if !m.ReversalAllowed("u1", types.Sell, 1.6, market.StateStrongTrend) {
		t.Fatal("expected reversal allowed above 1.5x threshold in StrongTrend")
	}
	if !m.ReversalAllowed("u1", types.Buy, 0.1, market.StateStrongTrend) {
		t.Fatal("same-side signal should never be gated")
	}
}

func TestReconcileWithinToleranceKeepsCache(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	rec, mismatch := m.Reconcile("u1", types.Position{Symbol: "BTCUSDT", Qty: 1.0, EntryPrice: 100}, 5)
	if mismatch {
		t.Fatal("expected no mismatch within 1% tolerance")
	}
	if rec.Signal != "Spike_Buy" {
		t.Fatalf("expected richer cached record preserved, got %+v", rec)
	}
}

func TestReconcileForceClosesWhenExchangeFlat(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	rec, mismatch := m.Reconcile("u1", types.Position{Symbol: "BTCUSDT", Qty: 0}, 5)
	if !mismatch || rec != nil {
		t.Fatalf("expected cached record force-closed, got rec=%+v mismatch=%v", rec, mismatch)
	}
	if m.Get("u1") != nil {
		t.Fatal("expected manager to drop the record")
	}
}

func TestReconcileRebuildsOnMismatch(t *testing.T) {
	m := NewManager(nil)
	openBuy(m, "u1")

	rec, mismatch := m.Reconcile("u1", types.Position{Symbol: "BTCUSDT", Qty: 5.0, EntryPrice: 100}, 5)
	if !mismatch {
		t.Fatal("expected mismatch for 5x quantity divergence")
	}
	if rec.Quantity != 5.0 || rec.Signal != "Reconciled" {
		t.Fatalf("expected minimal reconstructed record, got %+v", rec)
	}
}
