package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// checkTrendBarLong is the long half of CheckTrendBar.
func checkTrendBarLong(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 || rng < atr*0.8 {
		return nil
	}
	body := absf(last.Close - last.Open)
	if body/rng < 0.70 {
		return nil
	}
	if last.Close > last.Open && ctx.MState.AlwaysIn == market.AlwaysInLong {
		cp := (last.Close - last.Low) / rng
		if cp >= 0.75 && ctx.Cooldown.Check(w, types.Buy, last.Close, atr) {
			sl := last.Low - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: TrendBarBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "TrendBar"}
		}
	}
	return nil
}

// checkTrendBarShort is the short half of CheckTrendBar.
func checkTrendBarShort(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	rng := last.High - last.Low
	if rng <= 0 || rng < atr*0.8 {
		return nil
	}
	body := absf(last.Close - last.Open)
	if body/rng < 0.70 {
		return nil
	}
	if last.Close < last.Open && ctx.MState.AlwaysIn == market.AlwaysInShort {
		cp := (last.High - last.Close) / rng
		if cp >= 0.75 && ctx.Cooldown.Check(w, types.Sell, last.Close, atr) {
			sl := last.High + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: TrendBarSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "TrendBar"}
		}
	}
	return nil
}

// CheckTrendBar detects a strong, wide-range trend bar with AlwaysIn
// confirmation.
func CheckTrendBar(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkTrendBarLong(w, atr, ctx); r != nil {
		return r
	}
	return checkTrendBarShort(w, atr, ctx)
}
