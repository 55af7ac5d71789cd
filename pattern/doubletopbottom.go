package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/types"
)

// doubleTopTolATRMult bounds how far apart the two tops/bottoms may sit
// and still count as "the same level".
const doubleTopTolATRMult = 0.3

// checkDoubleTopBottomLong is the long (double bottom) half of CheckDoubleTopBottom.
func checkDoubleTopBottomLong(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	tol := atr * doubleTopTolATRMult
	sl1 := ctx.Swings.RecentSwingLow(1, false)
	sl2 := ctx.Swings.RecentSwingLow(2, false)
	if sl1 > 0 && sl2 > 0 && absf(sl1-sl2) <= tol {
		if last.Close > last.Open && last.Close > maxf(sl1, sl2)+tol && validateAndCool(types.Buy, w, atr, ctx) {
			sl := minf(sl1, sl2) - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: DoubleTopBottomBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "DoubleBottom"}
		}
	}
	return nil
}

// checkDoubleTopBottomShort is the short (double top) half of CheckDoubleTopBottom.
func checkDoubleTopBottomShort(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	tol := atr * doubleTopTolATRMult
	sh1 := ctx.Swings.RecentSwingHigh(1, false)
	sh2 := ctx.Swings.RecentSwingHigh(2, false)
	if sh1 > 0 && sh2 > 0 && absf(sh1-sh2) <= tol {
		if last.Close < last.Open && last.Close < minf(sh1, sh2)-tol && validateAndCool(types.Sell, w, atr, ctx) {
			sl := maxf(sh1, sh2) + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: DoubleTopBottomSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "DoubleTop"}
		}
	}
	return nil
}

// CheckDoubleTopBottom detects two confirmed swing highs (a double top)
// or two confirmed swing lows (a double bottom) within tolerance of each
// other, followed by a reversal close away from the second one.
func CheckDoubleTopBottom(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkDoubleTopBottomLong(w, atr, ctx); r != nil {
		return r
	}
	return checkDoubleTopBottomShort(w, atr, ctx)
}
