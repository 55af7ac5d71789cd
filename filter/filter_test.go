package filter

import (
	"testing"

	"github.com/evdnx/brooksfutures/types"
)

func TestValidateSignalBarRejectsIndecisiveBar(t *testing.T) {
	if ValidateSignalBar(100, 101, 99, 100.2, types.Buy, false) {
		t.Fatalf("expected a tiny-body bar to fail standard validation")
	}
}

func TestValidateSignalBarAcceptsStrongBuyBar(t *testing.T) {
	if !ValidateSignalBar(100, 103, 99.5, 102.8, types.Buy, false) {
		t.Fatalf("expected a strong bullish bar to pass buy-side validation")
	}
}

func TestValidateSignalBarRelaxedAcceptsWeakerTradingRangeBar(t *testing.T) {
	if ValidateSignalBar(100, 101.1, 99.8, 100.7, types.Buy, false) {
		t.Fatalf("expected this bar to fail the standard threshold")
	}
	if !ValidateSignalBar(100, 101.1, 99.8, 100.7, types.Buy, true) {
		t.Fatalf("expected the relaxed TradingRange threshold to accept the same bar")
	}
}

func TestSpreadFilterFlagsWideSpread(t *testing.T) {
	f := &SpreadFilter{}
	for i := 0; i < 10; i++ {
		f.Update(1.0)
	}
	if f.Active {
		t.Fatalf("expected stable spread to not trip the filter")
	}
	f.Update(5.0)
	if !f.Active {
		t.Fatalf("expected a 5x spread spike to trip the filter")
	}
}

func TestSignalCooldownBlocksImmediateRepeat(t *testing.T) {
	c := NewSignalCooldownTracker()
	c.Tick()
	c.Record(types.Buy, 100)
	c.Tick()
	if c.Check(nil, types.Buy, 100.1, 1.0) {
		t.Fatalf("expected cooldown to block a same-side signal one bar later")
	}
}

func TestOIConfirmsBreakoutWithoutDataNeverBlocks(t *testing.T) {
	if !OIConfirmsBreakout(0, 0, false, 1.1) {
		t.Fatalf("expected missing OI data to never block a breakout")
	}
}
