package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// checkMTRLong is the long half of CheckMTR.
func checkMTRLong(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 || !ctx.TrendLineBroken || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	ms := ctx.MState
	if ms.AlwaysIn == market.AlwaysInShort {
		sl1 := ctx.Swings.RecentSwingLow(1, false)
		if sl1 > 0 && last.Low > sl1 && last.Close > last.Open && validateAndCool(types.Buy, w, atr, ctx) {
			sl := sl1 - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: MTRBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "MTR"}
		}
	}
	return nil
}

// checkMTRShort is the short half of CheckMTR.
func checkMTRShort(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 || !ctx.TrendLineBroken || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	ms := ctx.MState
	if ms.AlwaysIn == market.AlwaysInLong {
		sh1 := ctx.Swings.RecentSwingHigh(1, false)
		if sh1 > 0 && last.High < sh1 && last.Close < last.Open && validateAndCool(types.Sell, w, atr, ctx) {
			sl := sh1 + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: MTRSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "MTR"}
		}
	}
	return nil
}

// CheckMTR detects a major trend reversal: a broken trend line
// (ctx.TrendLineBroken, computed by the orchestrator from swing pairs in
// place of a tracked trend line) followed by a failure to make a new
// extreme and a reversal close.
func CheckMTR(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkMTRLong(w, atr, ctx); r != nil {
		return r
	}
	return checkMTRShort(w, atr, ctx)
}
