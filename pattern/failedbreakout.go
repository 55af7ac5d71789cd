package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// failedBreakoutMaxAge bounds how long a poke beyond the range edge can
// sit before a close back inside no longer counts as a failure.
const failedBreakoutMaxAge = 3

// failedBreakoutPokes scans back over the shared age window and reports
// whether the range's high or low edge was poked, for use by both halves
// of CheckFailedBreakout.
func failedBreakoutPokes(w *bar.Window, ms *market.StateTracker) (pokedHigh, pokedLow bool) {
	n := w.Len()
	limit := failedBreakoutMaxAge
	if limit > n-1 {
		limit = n - 1
	}
	for i := 1; i <= limit; i++ {
		b, ok := w.At(i)
		if !ok {
			break
		}
		if b.High > ms.TrHigh {
			pokedHigh = true
		}
		if b.Low < ms.TrLow {
			pokedLow = true
		}
	}
	return pokedHigh, pokedLow
}

// checkFailedBreakoutLong is the long half of CheckFailedBreakout.
func checkFailedBreakoutLong(w *bar.Window, atr float64, ctx *Context) *Result {
	ms := ctx.MState
	if atr <= 0 || ms.State != market.StateTradingRange || ms.TrHigh <= ms.TrLow {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	_, pokedLow := failedBreakoutPokes(w, ms)
	if pokedLow && last.Close > ms.TrLow && last.Close > last.Open && validateAndCool(types.Buy, w, atr, ctx) {
		sl := last.Low - atr*0.3
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Buy, last.Close)
		return &Result{Signal: FailedBreakoutBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "FailedBO"}
	}
	return nil
}

// checkFailedBreakoutShort is the short half of CheckFailedBreakout.
func checkFailedBreakoutShort(w *bar.Window, atr float64, ctx *Context) *Result {
	ms := ctx.MState
	if atr <= 0 || ms.State != market.StateTradingRange || ms.TrHigh <= ms.TrLow {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	pokedHigh, _ := failedBreakoutPokes(w, ms)
	if pokedHigh && last.Close < ms.TrHigh && last.Close < last.Open && validateAndCool(types.Sell, w, atr, ctx) {
		sl := last.High + atr*0.3
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Sell, last.Close)
		return &Result{Signal: FailedBreakoutSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "FailedBO"}
	}
	return nil
}

// CheckFailedBreakout detects price poking beyond the trading range's
// edge and closing back inside within a few bars, fading the poke.
// Gated to the TradingRange state only.
func CheckFailedBreakout(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkFailedBreakoutLong(w, atr, ctx); r != nil {
		return r
	}
	return checkFailedBreakoutShort(w, atr, ctx)
}
