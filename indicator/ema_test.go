package indicator

import "testing"

func TestEMASeedsWithFirstValue(t *testing.T) {
	e := NewEMA(10)
	if e.Ready() {
		t.Fatalf("expected fresh EMA to be not ready")
	}
	v := e.Update(100)
	if v != 100 {
		t.Fatalf("expected seed value 100, got %v", v)
	}
	if !e.Ready() {
		t.Fatalf("expected EMA to be ready after first update")
	}
}

func TestEMAConvergesTowardConstantInput(t *testing.T) {
	e := NewEMA(5)
	for i := 0; i < 200; i++ {
		e.Update(50)
	}
	if got := e.Value(); absf(got-50) > 1e-6 {
		t.Fatalf("expected EMA to converge to 50, got %v", got)
	}
}

func TestATRSeedsThenSmooths(t *testing.T) {
	a := NewATR(3)
	a.Update(10, 8, 9)
	a.Update(11, 9, 10)
	v := a.Update(12, 10, 11)
	if a.Ready() {
		t.Fatalf("expected ATR not ready before `period` samples")
	}
	if v <= 0 {
		t.Fatalf("expected positive ATR, got %v", v)
	}
	a.Update(13, 11, 12)
	if !a.Ready() {
		t.Fatalf("expected ATR ready after period samples")
	}
}

func TestAdaptiveEMAPeriodStaysInBounds(t *testing.T) {
	a := NewAdaptiveEMA(20)
	atrHistory := []float64{1, 1, 1, 1, 1}
	for i := 0; i < 60; i++ {
		var atr float64
		if i%2 == 0 {
			atr = 0.2 // low volatility -> shorter period
		} else {
			atr = 5.0 // high volatility -> longer period
		}
		atrHistory = append(atrHistory, atr)
		a.Update(float64(100+i), atr)
	}
	if a.Period() < adaptiveMinPeriod || a.Period() > adaptiveMaxPeriod {
		t.Fatalf("adaptive period %d out of bounds [%d,%d]", a.Period(), adaptiveMinPeriod, adaptiveMaxPeriod)
	}
}
