package engine

import (
	"testing"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/config"
)

func mkBar(t int64, o, h, l, c float64) bar.Bar {
	return bar.Bar{OpenTime: t, Open: o, High: h, Low: l, Close: c}
}

func TestOrchestratorWithholdsSignalsBeforeWindowIsWarm(t *testing.T) {
	o := New("BTCUSDT", config.Default(), nil)
	for i := int64(0); i < 5; i++ {
		sig := o.OnBar(mkBar(i*60000, 100, 101, 99, 100.5))
		if sig != nil {
			t.Fatalf("bar %d: expected no signal before the window warms up, got %+v", i, sig)
		}
	}
}

func TestOrchestratorIgnoresDuplicateBar(t *testing.T) {
	o := New("BTCUSDT", config.Default(), nil)
	b := mkBar(1000, 100, 101, 99, 100.5)
	o.OnBar(b)
	lenAfterFirst := o.window.Len()
	atrAfterFirst := o.ATR()

	// A bar at or before the last OpenTime must be a no-op: the window,
	// ATR and EMA history must not advance a second time for it.
	if sig := o.OnBar(b); sig != nil {
		t.Fatalf("expected no signal from a duplicate bar, got %+v", sig)
	}
	if o.window.Len() != lenAfterFirst {
		t.Fatalf("duplicate bar changed window length: %d -> %d", lenAfterFirst, o.window.Len())
	}
	if o.ATR() != atrAfterFirst {
		t.Fatalf("duplicate bar changed ATR: %v -> %v", atrAfterFirst, o.ATR())
	}
	if o.emas.Len() != lenAfterFirst {
		t.Fatalf("EMA history fell out of lockstep with the window: emas=%d window=%d", o.emas.Len(), lenAfterFirst)
	}

	older := mkBar(500, 100, 101, 99, 100.5)
	if sig := o.OnBar(older); sig != nil {
		t.Fatalf("expected no signal from an out-of-order bar, got %+v", sig)
	}
	if o.window.Len() != lenAfterFirst {
		t.Fatalf("out-of-order bar changed window length: %d -> %d", lenAfterFirst, o.window.Len())
	}
}

func TestOrchestratorWithholdsSignalsDuringBarbWire(t *testing.T) {
	o := New("BTCUSDT", config.Default(), nil)

	// A run of small, overlapping, doji-like bars trips BarbWireFilter
	// (rng < 0.5*ATR or body/rng < 0.35, at least one near-zero body,
	// high mutual overlap) regardless of anything else in the pipeline;
	// OnBar must veto every bar in the run once it goes active.
	price := 100.0
	for i := int64(0); i < 25; i++ {
		b := mkBar(i*60000, price, price+0.6, price-0.6, price+0.01)
		sig := o.OnBar(b)
		if sig != nil {
			t.Fatalf("bar %d: expected no signal while inside a barb-wire consolidation, got %+v", i, sig)
		}
	}
	if !o.barbwire.Active {
		t.Fatalf("expected the barb-wire filter to be active after a run of tight overlapping bars")
	}
}

func TestOrchestratorStopNeverExceedsHardCap(t *testing.T) {
	o := New("BTCUSDT", config.Default(), nil)
	price := 100.0
	var lastATR float64
	for i := int64(0); i < 60; i++ {
		drift := float64(i%7) * 0.3
		b := mkBar(i*60000, price, price+1+drift, price-1, price+0.2)
		price += 0.1
		sig := o.OnBar(b)
		lastATR = o.ATR()
		if sig == nil {
			continue
		}
		dist := sig.Stop - sig.Price
		if dist < 0 {
			dist = -dist
		}
		if lastATR > 0 && dist > 3.0*lastATR+1e-6 {
			t.Fatalf("bar %d: signal %s stop distance %v exceeds the 3x ATR (%v) hard cap", i, sig.Pattern, dist, lastATR)
		}
	}
}

func TestOrchestratorEmitsAtMostOneSignalPerBar(t *testing.T) {
	o := New("BTCUSDT", config.Default(), nil)
	price := 100.0
	for i := int64(0); i < 80; i++ {
		b := mkBar(i*60000, price, price+1.5, price-1.2, price+0.3)
		price += 0.4
		sig := o.OnBar(b)
		// Signal is a single pointer, never a slice: by construction the
		// orchestrator cannot return more than one hit for this bar. This
		// guards against a future refactor accidentally widening the
		// return type.
		if sig != nil && sig.Symbol != "BTCUSDT" {
			t.Fatalf("bar %d: signal carries the wrong symbol: %+v", i, sig)
		}
	}
}
