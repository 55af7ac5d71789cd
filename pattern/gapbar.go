package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// checkGapBarLong is the long half of CheckGapBar.
func checkGapBarLong(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 3 {
		return nil
	}
	last, _ := w.At(0)
	prev, _ := w.At(1)
	gapThresh := atr * 0.3
	gapUp := last.Open - prev.High
	if gapUp >= gapThresh && last.Close > last.Open {
		if ctx.MState.AlwaysIn == market.AlwaysInLong && validateAndCool(types.Buy, w, atr, ctx) {
			sl := minf(last.Low, prev.High) - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: GapBarBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "GapBar"}
		}
	}
	return nil
}

// checkGapBarShort is the short half of CheckGapBar.
func checkGapBarShort(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 3 {
		return nil
	}
	last, _ := w.At(0)
	prev, _ := w.At(1)
	gapThresh := atr * 0.3
	gapDn := prev.Low - last.Open
	if gapDn >= gapThresh && last.Close < last.Open {
		if ctx.MState.AlwaysIn == market.AlwaysInShort && validateAndCool(types.Sell, w, atr, ctx) {
			sl := maxf(last.High, prev.Low) + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: GapBarSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "GapBar"}
		}
	}
	return nil
}

// CheckGapBar detects an opening gap beyond the prior bar's extreme that
// continues in AlwaysIn's direction.
func CheckGapBar(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkGapBarLong(w, atr, ctx); r != nil {
		return r
	}
	return checkGapBarShort(w, atr, ctx)
}
