package pattern

import (
	"testing"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/filter"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

func newCtx() *Context {
	return &Context{
		Swings:   market.NewSwingTracker(),
		HL:       market.NewHLCounter(),
		MState:   market.NewStateTracker(),
		Cooldown: filter.NewSignalCooldownTracker(),
		Gap20:    &filter.GapBar20Rule{},
		HTF:      &filter.HTFFilter{},
	}
}

func pushBar(w *bar.Window, t int64, o, h, l, c float64) {
	w.Append(bar.Bar{OpenTime: t, Open: o, High: h, Low: l, Close: c})
}

func TestCheckTrendBarFiresOnWideStrongBullBar(t *testing.T) {
	w := bar.NewWindow(50)
	for i := 0; i < 6; i++ {
		pushBar(w, int64(i), 100, 100.5, 99.5, 100.1)
	}
	pushBar(w, 6, 100, 102, 99.9, 101.9)

	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong

	r := CheckTrendBar(w, 1.0, ctx)
	if r == nil {
		t.Fatalf("expected a trend-bar buy signal")
	}
	if r.Signal != TrendBarBuy || r.Direction != Long {
		t.Fatalf("expected TrendBarBuy/Long, got %v/%v", r.Signal, r.Direction)
	}
	if r.Stop >= r.Entry {
		t.Fatalf("expected stop below entry for a long, got stop=%v entry=%v", r.Stop, r.Entry)
	}
}

func TestCheckTrendBarRejectsShallowBody(t *testing.T) {
	w := bar.NewWindow(50)
	for i := 0; i < 6; i++ {
		pushBar(w, int64(i), 100, 100.5, 99.5, 100.1)
	}
	pushBar(w, 6, 100, 102, 99.5, 100.3) // wide range, tiny body

	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong

	if r := CheckTrendBar(w, 1.0, ctx); r != nil {
		t.Fatalf("expected no signal on a low-body-ratio bar, got %v", r.Signal)
	}
}

func TestCheckSpikeRequiresMinimumConsecutiveBars(t *testing.T) {
	w := bar.NewWindow(50)
	price := 100.0
	for i := 0; i < 10; i++ {
		pushBar(w, int64(i), price, price+0.4, price-0.2, price+0.35)
		price += 0.3
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong

	if r := CheckSpike(w, 1.0, ctx); r == nil {
		t.Fatalf("expected a spike buy after several consecutive shallow-overlap bull bars")
	}
}

func TestCheckSpikeRejectsOnTooFewBars(t *testing.T) {
	w := bar.NewWindow(50)
	for i := 0; i < 7; i++ {
		pushBar(w, int64(i), 100, 100.1, 99.9, 100.0) // flat/indecisive bars
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong

	if r := CheckSpike(w, 1.0, ctx); r != nil {
		t.Fatalf("expected no spike signal from indecisive bars, got %v", r.Signal)
	}
}

func TestCheckIIFiresOnBreakoutAboveMotherBar(t *testing.T) {
	w := bar.NewWindow(50)
	for i := int64(0); i < 3; i++ {
		pushBar(w, i, 90, 90.5, 89.5, 90.1) // padding so the window clears the n>=7 guard
	}
	pushBar(w, 3, 100, 102, 99, 101)           // mother bar
	pushBar(w, 4, 100.5, 101.5, 99.5, 101.0)   // inside mother
	pushBar(w, 5, 100.7, 101.3, 99.7, 101.1)   // inside the prior inside bar
	pushBar(w, 6, 101.1, 102.5, 100.9, 101.9)  // breaks the inside-bar high, closes up

	ctx := newCtx()
	r := CheckII(w, 1.0, ctx)
	if r == nil {
		t.Fatalf("expected an II buy breakout")
	}
	if r.Signal != IIBuy {
		t.Fatalf("expected IIBuy, got %v", r.Signal)
	}
}

func TestCheckIINoSignalWithoutTwoInsideBars(t *testing.T) {
	w := bar.NewWindow(50)
	for i := int64(0); i < 4; i++ {
		pushBar(w, i, 90, 90.5, 89.5, 90.1)
	}
	pushBar(w, 4, 100, 105, 95, 102)
	pushBar(w, 5, 102, 110, 101, 109) // not an inside bar
	pushBar(w, 6, 109, 111, 108, 110.5)

	ctx := newCtx()
	if r := CheckII(w, 1.0, ctx); r != nil {
		t.Fatalf("expected no II signal without a qualifying inside-bar run, got %v", r.Signal)
	}
}

func TestCheckHLCountRejectsWhenPullbackExtremeUnknown(t *testing.T) {
	w := bar.NewWindow(50)
	for i := 0; i < 20; i++ {
		pushBar(w, int64(i), 100, 100.5, 99.8, 100.3)
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong
	ctx.HL.HCount = 2 // no matching LastPullbackLow() was ever recorded

	if r := CheckHLCount(w, 1.0, Long, ctx); r != nil {
		t.Fatalf("expected the stop-risk cap to reject a push with no recorded pullback low, got %v", r.Signal)
	}
}

func TestCheckHLCountSkipsWrongDirectionAlwaysIn(t *testing.T) {
	w := bar.NewWindow(50)
	for i := 0; i < 20; i++ {
		pushBar(w, int64(i), 100, 100.5, 99.8, 100.3)
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInShort
	ctx.HL.HCount = 2

	if r := CheckHLCount(w, 1.0, Long, ctx); r != nil {
		t.Fatalf("expected no H-count signal when AlwaysIn disagrees, got %v", r.Signal)
	}
}

func TestCheckHLCountBlockedByTradingRangeState(t *testing.T) {
	w := bar.NewWindow(50)
	for i := 0; i < 20; i++ {
		pushBar(w, int64(i), 100, 100.5, 99.8, 100.3)
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong
	ctx.MState.State = market.StateTradingRange
	ctx.HL.HCount = 2

	if r := CheckHLCount(w, 1.0, Long, ctx); r != nil {
		t.Fatalf("expected H-count signals to be suppressed in a trading range, got %v", r.Signal)
	}
}

func TestScanReturnsFirstPriorityHit(t *testing.T) {
	w := bar.NewWindow(50)
	price := 100.0
	for i := 0; i < 10; i++ {
		pushBar(w, int64(i), price, price+0.4, price-0.2, price+0.35)
		price += 0.3
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong

	r := Scan(w, 1.0, false, ctx)
	if r == nil {
		t.Fatalf("expected Scan to find the spike setup")
	}
	if r.Signal != SpikeBuy {
		t.Fatalf("expected Scan to prioritize SpikeBuy ahead of other matching detectors, got %v", r.Signal)
	}
}

func TestScanSkipsMomentumDetectorsInTightTradingRange(t *testing.T) {
	w := bar.NewWindow(50)
	price := 100.0
	for i := 0; i < 10; i++ {
		pushBar(w, int64(i), price, price+0.4, price-0.2, price+0.35)
		price += 0.3
	}
	ctx := newCtx()
	ctx.MState.AlwaysIn = market.AlwaysInLong

	if r := Scan(w, 1.0, true, ctx); r != nil && r.Signal == SpikeBuy {
		t.Fatalf("expected Spike to be suppressed under isTTR, got %v", r.Signal)
	}
}

func TestSignalSideMatchesDirection(t *testing.T) {
	if SpikeBuy.Side() != types.Buy {
		t.Fatalf("expected SpikeBuy.Side() == Buy")
	}
	if SpikeSell.Side() != types.Sell {
		t.Fatalf("expected SpikeSell.Side() == Sell")
	}
}

func TestBreakoutStateTickOnlyAgesWhenActive(t *testing.T) {
	var b BreakoutState
	b.Tick()
	if b.BarAge != 0 {
		t.Fatalf("expected an inactive breakout state to not age")
	}
	b.Active = true
	b.Tick()
	if b.BarAge != 1 {
		t.Fatalf("expected an active breakout state to age by one bar per tick")
	}
}
