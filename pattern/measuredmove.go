package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// measuredMoveMinLegATR is the smallest prior-leg size worth projecting a
// continuation from; anything shallower is noise, not an impulse.
const measuredMoveMinLegATR = 2.0

// measuredMoveLeg returns the prior swing high/low leg shared by both
// halves of CheckMeasuredMove, or ok=false if it isn't tall enough to
// project from.
func measuredMoveLeg(ctx *Context, atr float64) (sh1, sl1 float64, ok bool) {
	sh1 = ctx.Swings.RecentSwingHigh(1, false)
	sl1 = ctx.Swings.RecentSwingLow(1, false)
	if sh1 <= 0 || sl1 <= 0 {
		return 0, 0, false
	}
	leg := sh1 - sl1
	if leg < atr*measuredMoveMinLegATR {
		return 0, 0, false
	}
	return sh1, sl1, true
}

// checkMeasuredMoveLong is the long half of CheckMeasuredMove.
func checkMeasuredMoveLong(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	ms := ctx.MState
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	sh1, _, lok := measuredMoveLeg(ctx, atr)
	if !lok {
		return nil
	}
	if ms.AlwaysIn == market.AlwaysInLong && last.Close > sh1 && last.Close > last.Open {
		if validateAndCool(types.Buy, w, atr, ctx) {
			sl := sh1 - atr*0.3
			if rsl := ctx.Swings.RecentSwingLow(1, true); rsl > 0 && rsl < sh1 {
				sl = rsl - atr*0.3
			}
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: MeasuredMoveBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "MM"}
		}
	}
	return nil
}

// checkMeasuredMoveShort is the short half of CheckMeasuredMove.
func checkMeasuredMoveShort(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	ms := ctx.MState
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	_, sl1, lok := measuredMoveLeg(ctx, atr)
	if !lok {
		return nil
	}
	if ms.AlwaysIn == market.AlwaysInShort && last.Close < sl1 && last.Close < last.Open {
		if validateAndCool(types.Sell, w, atr, ctx) {
			sl := sl1 + atr*0.3
			if rsh := ctx.Swings.RecentSwingHigh(1, true); rsh > 0 && rsh > sl1 {
				sl = rsh + atr*0.3
			}
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: MeasuredMoveSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "MM"}
		}
	}
	return nil
}

// CheckMeasuredMove detects a new trend leg starting from the most
// recent confirmed swing, sized against the leg that preceded it
//: buy when AlwaysIn is long and price
// breaks the last swing high with a leg (SL1->SH1) at least
// measuredMoveMinLegATR*ATR tall; sell is the mirror.
func CheckMeasuredMove(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkMeasuredMoveLong(w, atr, ctx); r != nil {
		return r
	}
	return checkMeasuredMoveShort(w, atr, ctx)
}
