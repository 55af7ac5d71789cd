package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/types"
)

// iiMotherRange walks back the shared inside-bar run and returns its
// extremes and length, for use by both halves of CheckII.
func iiMotherRange(w *bar.Window) (pH, pL float64, inside int, ok bool) {
	n := w.Len()
	b2, ok2 := w.At(1) // python h[-3]/l[-3]
	if !ok2 {
		return 0, 0, 0, false
	}
	pH, pL = b2.High, b2.Low

	maxCheck := n - 3
	if maxCheck > 4 {
		maxCheck = 4
	}
	for i := 2; i <= maxCheck; i++ {
		cur, okc := w.At(i - 1)
		mother, okm := w.At(i)
		if !okc || !okm {
			break
		}
		if cur.High <= mother.High && cur.Low >= mother.Low {
			inside++
			if cur.High > pH {
				pH = cur.High
			}
			if cur.Low < pL {
				pL = cur.Low
			}
		} else {
			break
		}
	}
	return pH, pL, inside, true
}

// checkIILong is the long half of CheckII.
func checkIILong(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 7 {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	pH, pL, inside, rok := iiMotherRange(w)
	if !rok || inside < 2 {
		return nil
	}
	if last.High > pH && last.Close > last.Open && ctx.Cooldown.Check(w, types.Buy, last.Close, atr) {
		sl := pL - atr*0.3
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Buy, last.Close)
		return &Result{Signal: IIBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "ii"}
	}
	return nil
}

// checkIIShort is the short half of CheckII.
func checkIIShort(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 7 {
		return nil
	}
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	pH, pL, inside, rok := iiMotherRange(w)
	if !rok || inside < 2 {
		return nil
	}
	if last.Low < pL && last.Close < last.Open && ctx.Cooldown.Check(w, types.Sell, last.Close, atr) {
		sl := pH + atr*0.3
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
		ctx.Cooldown.Record(types.Sell, last.Close)
		return &Result{Signal: IISell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "ii"}
	}
	return nil
}

// CheckII detects an inside-inside (ii) pattern breaking out of its
// mother bar's range.
func CheckII(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkIILong(w, atr, ctx); r != nil {
		return r
	}
	return checkIIShort(w, atr, ctx)
}
