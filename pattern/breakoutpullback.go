package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/types"
)

const (
	breakoutPullbackMinAge = 1
	breakoutPullbackMaxAge = 6
)

// checkBreakoutPullbackLong is the long ("up" breakout) half of
// CheckBreakoutPullback.
func checkBreakoutPullbackLong(w *bar.Window, atr float64, ctx *Context) *Result {
	bo := ctx.Breakout
	if atr <= 0 || !bo.Active || bo.BarAge < breakoutPullbackMinAge || bo.Direction != "up" {
		return nil
	}
	if bo.BarAge > breakoutPullbackMaxAge {
		ctx.Breakout.Active = false
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	if last.Low > bo.Level+atr*1.0 {
		return nil
	}
	if last.Low < bo.Level-atr*0.3 {
		ctx.Breakout.Active = false
		return nil
	}
	if last.Close > last.Open && last.Close > bo.Level && validateAndCool(types.Buy, w, atr, ctx) {
		sl := minf(last.Low, bo.Level) - atr*0.3
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Buy, last.Close)
		ctx.Breakout.Active = false
		return &Result{Signal: BreakoutPullbackBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "BOPullback"}
	}
	return nil
}

// checkBreakoutPullbackShort is the short ("down" breakout) half of
// CheckBreakoutPullback.
func checkBreakoutPullbackShort(w *bar.Window, atr float64, ctx *Context) *Result {
	bo := ctx.Breakout
	if atr <= 0 || !bo.Active || bo.BarAge < breakoutPullbackMinAge || bo.Direction != "down" {
		return nil
	}
	if bo.BarAge > breakoutPullbackMaxAge {
		ctx.Breakout.Active = false
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	if last.High < bo.Level-atr*1.0 {
		return nil
	}
	if last.High > bo.Level+atr*0.3 {
		ctx.Breakout.Active = false
		return nil
	}
	if last.Close < last.Open && last.Close < bo.Level && validateAndCool(types.Sell, w, atr, ctx) {
		sl := maxf(last.High, bo.Level) + atr*0.3
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Sell, last.Close)
		ctx.Breakout.Active = false
		return &Result{Signal: BreakoutPullbackSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "BOPullback"}
	}
	return nil
}

// CheckBreakoutPullback detects the first shallow pullback to a recent
// TRBreakout's level that holds and resumes. ctx.Breakout is cleared
// once it ages out or resolves.
func CheckBreakoutPullback(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkBreakoutPullbackLong(w, atr, ctx); r != nil {
		return r
	}
	return checkBreakoutPullbackShort(w, atr, ctx)
}
