package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// checkTRBreakoutLong is the long half of CheckTRBreakout.
func checkTRBreakoutLong(w *bar.Window, atr float64, ctx *Context) *Result {
	ms := ctx.MState
	if atr <= 0 || ms.State != market.StateTradingRange || ms.TrHigh <= ms.TrLow {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 {
		return nil
	}
	body := absf(last.Close - last.Open)
	if body/rng < 0.6 {
		return nil
	}
	if last.Close > ms.TrHigh && last.Close > last.Open && validateAndCool(types.Buy, w, atr, ctx) {
		sl := ms.TrHigh - atr*0.3
		if last.Close-sl > atr*MaxStopATRMult {
			sl = last.Low - atr*0.3
		}
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Buy, last.Close)
		ctx.Breakout = BreakoutState{Active: true, Direction: "up", Level: ms.TrHigh, BarAge: 0}
		return &Result{Signal: TRBreakoutBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "TRBreakout"}
	}
	return nil
}

// checkTRBreakoutShort is the short half of CheckTRBreakout.
func checkTRBreakoutShort(w *bar.Window, atr float64, ctx *Context) *Result {
	ms := ctx.MState
	if atr <= 0 || ms.State != market.StateTradingRange || ms.TrHigh <= ms.TrLow {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 {
		return nil
	}
	body := absf(last.Close - last.Open)
	if body/rng < 0.6 {
		return nil
	}
	if last.Close < ms.TrLow && last.Close < last.Open && validateAndCool(types.Sell, w, atr, ctx) {
		sl := ms.TrLow + atr*0.3
		if sl-last.Close > atr*MaxStopATRMult {
			sl = last.High + atr*0.3
		}
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Sell, last.Close)
		ctx.Breakout = BreakoutState{Active: true, Direction: "down", Level: ms.TrLow, BarAge: 0}
		return &Result{Signal: TRBreakoutSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "TRBreakout"}
	}
	return nil
}

// CheckTRBreakout detects a strong-bodied break of the current trading
// range's edge, gated to the TradingRange
// state only. A confirmed hit arms ctx.Breakout for BreakoutPullback.
func CheckTRBreakout(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkTRBreakoutLong(w, atr, ctx); r != nil {
		return r
	}
	return checkTRBreakoutShort(w, atr, ctx)
}
