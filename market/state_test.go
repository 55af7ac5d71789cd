package market

import (
	"testing"

	"github.com/evdnx/brooksfutures/bar"
)

func pushBar(t *testing.T, w *bar.Window, emas *EMAHistory, openTime int64, open, high, low, close, emaVal float64) {
	t.Helper()
	if !w.Append(bar.Bar{OpenTime: openTime, Open: open, High: high, Low: low, Close: close}) {
		t.Fatalf("bar at %d rejected", openTime)
	}
	emas.Append(emaVal)
}

func TestStateTrackerStartsInChannel(t *testing.T) {
	s := NewStateTracker()
	if s.State != StateChannel {
		t.Fatalf("expected initial state Channel, got %v", s.State)
	}
	if s.Cycle != CycleChannel {
		t.Fatalf("expected initial cycle Channel, got %v", s.Cycle)
	}
}

func TestStateTrackerDetectsStrongUptrend(t *testing.T) {
	w := bar.NewWindow(100)
	emas := NewEMAHistory(100)
	swings := NewSwingTracker()
	s := NewStateTracker()

	price := 100.0
	for i := 0; i < 20; i++ {
		open := price
		close := price + 1.0
		high := close + 0.2
		low := open - 0.1
		pushBar(t, w, emas, int64(i), open, high, low, close, price-0.5)
		swings.Update(w)
		s.Update(w, emas, 1.0, swings)
		price = close
	}
	if s.State != StateStrongTrend {
		t.Fatalf("expected StrongTrend after a clean uptrend run, got %v", s.State)
	}
	if s.TrendDirection != "up" {
		t.Fatalf("expected trend direction up, got %q", s.TrendDirection)
	}
}

func TestIsTTRFalseOutsideTradingRange(t *testing.T) {
	w := bar.NewWindow(50)
	s := NewStateTracker()
	if s.IsTTR(w, 1.0) {
		t.Fatalf("expected IsTTR false when state is not TradingRange")
	}
}

func TestApplyInertiaHoldsLockedState(t *testing.T) {
	s := NewStateTracker()
	s.applyInertia(StateStrongTrend)
	if s.State != StateStrongTrend {
		t.Fatalf("expected immediate transition into StrongTrend, got %v", s.State)
	}
	s.applyInertia(StateChannel)
	if s.State != StateStrongTrend {
		t.Fatalf("expected state held at StrongTrend during min-hold window, got %v", s.State)
	}
}
