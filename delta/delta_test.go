package delta

import (
	"testing"

	"github.com/evdnx/brooksfutures/types"
)

func TestEngineVolumeConservation(t *testing.T) {
	e := NewEngine(300)
	base := int64(1_000_000)
	var total float64
	for i := 0; i < 50; i++ {
		qty := float64(i%7) + 1
		isSell := i%3 == 0
		e.AddTrade(base+int64(i)*1000, 100+float64(i)*0.01, qty, isSell)
		total += qty
	}
	snap := e.Snapshot(base + 49000)
	if got := snap.BuyVolume + snap.SellVolume; absDiff(got, total) > 1e-6 {
		t.Fatalf("buy+sell = %v, want %v", got, total)
	}
}

func TestEngineEvictsOldTrades(t *testing.T) {
	e := NewEngine(10) // 10s window
	e.AddTrade(0, 100, 5, false)
	e.AddTrade(5000, 100, 5, false)
	snap := e.Snapshot(25_000) // well past the window
	if snap.BuyVolume != 0 || snap.SellVolume != 0 {
		t.Fatalf("expected fully evicted window, got buy=%v sell=%v", snap.BuyVolume, snap.SellVolume)
	}
	if snap.TradeCount != 0 {
		t.Fatalf("expected 0 retained trades, got %d", snap.TradeCount)
	}
}

func TestEngineEmptySnapshot(t *testing.T) {
	e := NewEngine(60)
	snap := e.Snapshot(1000)
	if snap.TradeCount != 0 || snap.CumulativeDelta != 0 {
		t.Fatalf("expected zero-value snapshot on empty engine, got %+v", snap)
	}
}

func TestSignalModifierExtremeVeto(t *testing.T) {
	snap := Snapshot{
		Trend:             StrongBearish,
		DeltaRatio:        -0.8,
		DeltaAcceleration: -0.2,
	}
	mod, reason := SignalModifier(snap, types.Buy, 0)
	if mod != 0 {
		t.Fatalf("expected veto (0) on extreme opposite pressure, got %v (%s)", mod, reason)
	}
}

func TestSignalModifierAlignedBoost(t *testing.T) {
	snap := Snapshot{
		Trend:             StrongBullish,
		DeltaRatio:        0.5,
		DeltaAcceleration: 0.2,
	}
	mod, _ := SignalModifier(snap, types.Buy, 0)
	if mod <= 1.0 {
		t.Fatalf("expected boosted modifier for aligned strong bullish flow, got %v", mod)
	}
}

func TestWedgeBuyDeltaBoostAbsorption(t *testing.T) {
	snap := Snapshot{TradeCount: 10, IsAbsorption: true, DeltaRatio: -0.1}
	mult, reason := WedgeBuyDeltaBoost(snap)
	if mult <= 1.0 {
		t.Fatalf("expected absorption boost > 1.0, got %v (%s)", mult, reason)
	}
}

func absDiff(a, b float64) float64 {
	if a < b {
		return b - a
	}
	return a - b
}
