package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/types"
)

// reversalBarLookback returns the 10-bar lookback extremes shared by both
// halves of CheckReversalBar.
func reversalBarLookback(w *bar.Window, last bar.Bar) (lbLow, lbHigh float64) {
	n := w.Len()
	lbLow, lbHigh = last.Low, last.High
	for i := 2; i <= 10 && i < n; i++ {
		if b, ok := w.At(i - 1); ok {
			if b.Low < lbLow {
				lbLow = b.Low
			}
			if b.High > lbHigh {
				lbHigh = b.High
			}
		}
	}
	return lbLow, lbHigh
}

// checkReversalBarLong is the long half of CheckReversalBar.
func checkReversalBarLong(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 11 {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 || rng < atr*0.5 {
		return nil
	}
	body := absf(last.Close - last.Open)
	lt := minf(last.Close, last.Open) - last.Low
	lbLow, _ := reversalBarLookback(w, last)

	if lt > rng*0.4 && last.Close > last.Open && lt > body {
		drop := last.High - lbLow
		if drop >= atr*1.5 && ctx.Cooldown.Check(w, types.Buy, last.Close, atr) {
			sl := last.Low - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: ReversalBarBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "RevBar"}
		}
	}
	return nil
}

// checkReversalBarShort is the short half of CheckReversalBar.
func checkReversalBarShort(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 11 {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 || rng < atr*0.5 {
		return nil
	}
	body := absf(last.Close - last.Open)
	ut := last.High - maxf(last.Close, last.Open)
	_, lbHigh := reversalBarLookback(w, last)

	if ut > rng*0.4 && last.Close < last.Open && ut > body {
		rise := lbHigh - last.Low
		if rise >= atr*1.5 && ctx.Cooldown.Check(w, types.Sell, last.Close, atr) {
			sl := last.High + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: ReversalBarSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "RevBar"}
		}
	}
	return nil
}

// CheckReversalBar detects a deep-tail reversal bar against a meaningful
// prior move.
func CheckReversalBar(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkReversalBarLong(w, atr, ctx); r != nil {
		return r
	}
	return checkReversalBarShort(w, atr, ctx)
}
