package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// checkFinalFlagLong is the long half of CheckFinalFlag.
func checkFinalFlagLong(w *bar.Window, atr float64, ctx *Context) *Result {
	ms := ctx.MState
	if atr <= 0 || ms.State != market.StateFinalFlag || ms.TightChannelDir == "" {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	if ms.TightChannelDir == "up" && last.Close > last.Open && validateAndCool(types.Buy, w, atr, ctx) {
		sl := last.Low - atr*0.3
		if swingLow := ctx.Swings.RecentSwingLow(1, true); swingLow > 0 && swingLow < last.Low {
			sl = swingLow - atr*0.3
		}
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Buy, last.Close)
		return &Result{Signal: FinalFlagBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "FinalFlag"}
	}
	return nil
}

// checkFinalFlagShort is the short half of CheckFinalFlag.
func checkFinalFlagShort(w *bar.Window, atr float64, ctx *Context) *Result {
	ms := ctx.MState
	if atr <= 0 || ms.State != market.StateFinalFlag || ms.TightChannelDir == "" {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	if ms.TightChannelDir == "down" && last.Close < last.Open && validateAndCool(types.Sell, w, atr, ctx) {
		sl := last.High + atr*0.3
		if swingHigh := ctx.Swings.RecentSwingHigh(1, true); swingHigh > 0 && swingHigh > last.High {
			sl = swingHigh + atr*0.3
		}
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Sell, last.Close)
		return &Result{Signal: FinalFlagSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "FinalFlag"}
	}
	return nil
}

// CheckFinalFlag detects the last shallow pullback entry of a tight
// channel's final flag, continuing in the channel's direction
//, gated to the FinalFlag state only.
func CheckFinalFlag(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkFinalFlagLong(w, atr, ctx); r != nil {
		return r
	}
	return checkFinalFlagShort(w, atr, ctx)
}
