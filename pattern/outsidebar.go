package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// allowReversal reports whether the current market state permits a
// counter-trend reversal detector to fire: Brooks only
// trusts these patterns inside a trading range or the final-flag fade,
// never mid-trend.
func allowReversal(ctx *Context) bool {
	st := ctx.MState.State
	return st == market.StateTradingRange || st == market.StateFinalFlag
}

// checkOutsideBarLong is the long half of CheckOutsideBar.
func checkOutsideBarLong(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 3 || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	prev, okP := w.At(1)
	if !ok || !okP {
		return nil
	}
	if last.High <= prev.High || last.Low >= prev.Low {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 {
		return nil
	}
	if last.Close > last.Open && (last.Close-last.Low)/rng >= 0.65 {
		if validateAndCool(types.Buy, w, atr, ctx) {
			sl := last.Low - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: OutsideBarBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "OutsideBar"}
		}
	}
	return nil
}

// checkOutsideBarShort is the short half of CheckOutsideBar.
func checkOutsideBarShort(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 3 || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	prev, okP := w.At(1)
	if !ok || !okP {
		return nil
	}
	if last.High <= prev.High || last.Low >= prev.Low {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 {
		return nil
	}
	if last.Close < last.Open && (last.High-last.Close)/rng >= 0.65 {
		if validateAndCool(types.Sell, w, atr, ctx) {
			sl := last.High + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: OutsideBarSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "OutsideBar"}
		}
	}
	return nil
}

// CheckOutsideBar detects a bar whose range engulfs the prior bar's
// range, closing strongly in one direction.
func CheckOutsideBar(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkOutsideBarLong(w, atr, ctx); r != nil {
		return r
	}
	return checkOutsideBarShort(w, atr, ctx)
}
