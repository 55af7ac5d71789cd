package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/risk"
	"github.com/evdnx/brooksfutures/types"
)

// checkClimaxLong is the long half of CheckClimax.
func checkClimaxLong(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	isClimax, _ := risk.DetectClimaxBar(w, risk.ClimaxBarMultiplier)
	if !isClimax {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	ms := ctx.MState
	if ms.AlwaysIn == market.AlwaysInShort && last.Close > last.Open && validateAndCool(types.Buy, w, atr, ctx) {
		sl := calcClimaxSL(w, true, atr)
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Buy, last.Close)
		return &Result{Signal: ClimaxBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "Climax"}
	}
	return nil
}

// checkClimaxShort is the short half of CheckClimax.
func checkClimaxShort(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	isClimax, _ := risk.DetectClimaxBar(w, risk.ClimaxBarMultiplier)
	if !isClimax {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	ms := ctx.MState
	if ms.AlwaysIn == market.AlwaysInLong && last.Close < last.Open && validateAndCool(types.Sell, w, atr, ctx) {
		sl := calcClimaxSL(w, false, atr)
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Sell, last.Close)
		return &Result{Signal: ClimaxSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "Climax"}
	}
	return nil
}

// CheckClimax detects a climax bar (range at least
// risk.ClimaxBarMultiplier times the 10-bar average) against the
// current trend, signalling exhaustion.
func CheckClimax(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkClimaxLong(w, atr, ctx); r != nil {
		return r
	}
	return checkClimaxShort(w, atr, ctx)
}

// calcClimaxSL places the stop at the climax bar's own extreme plus a
// buffer, separately for each side.
func calcClimaxSL(w *bar.Window, buy bool, atr float64) float64 {
	last, _ := w.At(0)
	if buy {
		return last.Low - atr*0.3
	}
	return last.High + atr*0.3
}
