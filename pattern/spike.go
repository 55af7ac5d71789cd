package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

const (
	minSpikeBars    = 3
	spikeOverlapMax = 0.30
)

// countSpikeBull walks backward from the bar before the signal bar,
// counting consecutive bull trend bars whose overlap with the prior
// bar's midpoint-to-low stays under spikeOverlapMax.
func countSpikeBull(w *bar.Window, atr float64) int {
	n := w.Len()
	mx := n - 2
	if mx > 20 {
		mx = 20
	}
	count := 0
	for i := 2; i <= mx; i++ {
		cur, ok := w.At(i - 1)
		if !ok {
			break
		}
		body := cur.Close - cur.Open
		rng := cur.High - cur.Low
		if rng <= 0 {
			break
		}
		trend := body > 0 && body/rng > 0.50
		if !trend {
			cp := (cur.Close - cur.Low) / rng
			trend = cp > 0.6 && rng > atr*0.5
		}
		if !trend {
			break
		}
		if i > 2 {
			prev, ok := w.At(i - 2)
			if !ok {
				break
			}
			curMid := (cur.High + cur.Low) / 2.0
			overlap := curMid - prev.Low
			curRng := cur.High - cur.Low
			if curRng > 0 && overlap/curRng > spikeOverlapMax {
				break
			}
		}
		count++
	}
	return count
}

func countSpikeBear(w *bar.Window, atr float64) int {
	n := w.Len()
	mx := n - 2
	if mx > 20 {
		mx = 20
	}
	count := 0
	for i := 2; i <= mx; i++ {
		cur, ok := w.At(i - 1)
		if !ok {
			break
		}
		body := cur.Open - cur.Close
		rng := cur.High - cur.Low
		if rng <= 0 {
			break
		}
		trend := body > 0 && body/rng > 0.50
		if !trend {
			cp := (cur.High - cur.Close) / rng
			trend = cp > 0.6 && rng > atr*0.5
		}
		if !trend {
			break
		}
		if i > 2 {
			prev, ok := w.At(i - 2)
			if !ok {
				break
			}
			curMid := (cur.High + cur.Low) / 2.0
			overlap := prev.High - curMid
			curRng := cur.High - cur.Low
			if curRng > 0 && overlap/curRng > spikeOverlapMax {
				break
			}
		}
		count++
	}
	return count
}

// checkSpikeLong is the long half of CheckSpike.
func checkSpikeLong(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 8 {
		return nil
	}
	ai := ctx.MState.AlwaysIn
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	bull := countSpikeBull(w, atr)
	if bull < minSpikeBars {
		return nil
	}
	if (ai == market.AlwaysInShort && bull < 5) || !validateAndCool(types.Buy, w, atr, ctx) || last.Close <= last.Open {
		return nil
	}
	bot := last.Low
	for i := 1; i <= bull+1; i++ {
		if b, ok := w.At(i - 1); ok && b.Low < bot {
			bot = b.Low
		}
	}
	sl := bot - atr*0.3
	if last.Close-sl > atr*MaxStopATRMult {
		if rsl := ctx.Swings.RecentSwingLow(1, false); rsl > 0 {
			sl = rsl - atr*0.3
		}
		if last.Close-sl > atr*MaxStopATRMult {
			return nil
		}
	}
	ctx.Cooldown.Record(types.Buy, last.Close)
	return &Result{Signal: SpikeBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "Spike"}
}

// checkSpikeShort is the short half of CheckSpike.
func checkSpikeShort(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 8 {
		return nil
	}
	ai := ctx.MState.AlwaysIn
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	bear := countSpikeBear(w, atr)
	if bear < minSpikeBars {
		return nil
	}
	if ai == market.AlwaysInLong && bear < 5 {
		return nil
	}
	if !validateAndCool(types.Sell, w, atr, ctx) || last.Close >= last.Open {
		return nil
	}
	top := last.High
	for i := 1; i <= bear+1; i++ {
		if b, ok := w.At(i - 1); ok && b.High > top {
			top = b.High
		}
	}
	sl := top + atr*0.3
	if sl-last.Close > atr*MaxStopATRMult {
		if rsh := ctx.Swings.RecentSwingHigh(1, false); rsh > 0 {
			sl = rsh + atr*0.3
		}
		if sl-last.Close > atr*MaxStopATRMult {
			return nil
		}
	}
	ctx.Cooldown.Record(types.Sell, last.Close)
	return &Result{Signal: SpikeSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "Spike"}
}

// CheckSpike detects 3+ consecutive same-direction trend bars with shallow
// overlap. Entry is market at the signal bar's
// close; stop is the span's extreme minus/plus a buffer, falling back to
// the nearest swing and hard-capped.
func CheckSpike(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkSpikeLong(w, atr, ctx); r != nil {
		return r
	}
	return checkSpikeShort(w, atr, ctx)
}
