package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/types"
)

// wedgeSwings pulls up to three of the most recent swing highs and lows
// from ctx, newest-first, shared by both halves of CheckWedge.
func wedgeSwings(ctx *Context) (highs, lows []float64) {
	pts := ctx.Swings.Points()
	highs = make([]float64, 0, 3)
	lows = make([]float64, 0, 3)
	for _, p := range pts {
		if p.IsHigh && len(highs) < 3 {
			highs = append(highs, p.Price)
		}
		if !p.IsHigh && len(lows) < 3 {
			lows = append(lows, p.Price)
		}
		if len(highs) == 3 && len(lows) == 3 {
			break
		}
	}
	return highs, lows
}

// checkWedgeLong is the long (three falling swing lows) half of CheckWedge.
func checkWedgeLong(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	_, lows := wedgeSwings(ctx)
	// pts is newest-first, so three falling swing lows are l[2] > l[1] > l[0].
	if len(lows) == 3 && lows[2] > lows[1] && lows[1] > lows[0] {
		if last.Close > last.Open && last.Close > lows[0]+atr*0.2 && validateAndCool(types.Buy, w, atr, ctx) {
			sl := lows[0] - atr*0.3
			if last.Close-sl > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Buy, last.Close)
			return &Result{Signal: WedgeBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "Wedge"}
		}
	}
	return nil
}

// checkWedgeShort is the short (three rising swing highs) half of CheckWedge.
func checkWedgeShort(w *bar.Window, atr float64, ctx *Context) *Result {
	if atr <= 0 || !allowReversal(ctx) {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	highs, _ := wedgeSwings(ctx)
	// pts is newest-first, so a rising three-push top is h[2] < h[1] < h[0].
	if len(highs) == 3 && highs[2] < highs[1] && highs[1] < highs[0] {
		if last.Close < last.Open && last.Close < highs[0]-atr*0.2 && validateAndCool(types.Sell, w, atr, ctx) {
			sl := highs[0] + atr*0.3
			if sl-last.Close > atr*MaxStopATRMult {
				return nil
			}
			ctx.Cooldown.Record(types.Sell, last.Close)
			return &Result{Signal: WedgeSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "Wedge"}
		}
	}
	return nil
}

// CheckWedge detects a three-push wedge: three rising swing highs each
// higher than the last (a sell setup), or the mirror three falling swing
// lows (a buy setup); momentum across the pushes is not measured.
// Reversal-gated like the other counter-trend patterns.
func CheckWedge(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkWedgeLong(w, atr, ctx); r != nil {
		return r
	}
	return checkWedgeShort(w, atr, ctx)
}
