package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// checkMicroChannelLong is the long half of CheckMicroChannel.
func checkMicroChannelLong(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 8 {
		return nil
	}
	ai := ctx.MState.AlwaysIn
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	b2, ok2 := w.At(1)
	if !ok2 {
		return nil
	}

	limit := 10
	if n-1 < limit {
		limit = n - 1
	}

	up := 0
	for i := 2; i <= limit; i++ {
		cur, okc := w.At(i - 1)
		nxt, okn := w.At(i)
		if !okc || !okn {
			break
		}
		if cur.High <= nxt.High || cur.Low < nxt.Low {
			break
		}
		pr := nxt.High - nxt.Low
		if pr > 0 && cur.Low < nxt.Low+pr*0.75 {
			break
		}
		up++
	}
	if up < 5 || ai != market.AlwaysInLong || last.High <= b2.High || last.Close <= last.Open {
		return nil
	}
	if !validateAndCool(types.Buy, w, atr, ctx) {
		return nil
	}
	mcLow := b2.Low
	for i := 2; i <= up+1; i++ {
		if b, ok := w.At(i - 1); ok && b.Low < mcLow {
			mcLow = b.Low
		}
	}
	sl := mcLow - atr*0.3
	if last.Close-sl > atr*MaxStopATRMult {
		sl = minf(last.Low, b2.Low) - atr*0.3
	}
	if last.Close-sl > atr*MaxStopATRMult {
		return nil
	}
	ctx.Cooldown.Record(types.Buy, last.Close)
	return &Result{Signal: MicroChannelBuy, Direction: Long, Entry: last.Close, Stop: sl, Reason: "MicroCH"}
}

// checkMicroChannelShort is the short half of CheckMicroChannel.
func checkMicroChannelShort(w *bar.Window, atr float64, ctx *Context) *Result {
	n := w.Len()
	if atr <= 0 || n < 8 {
		return nil
	}
	ai := ctx.MState.AlwaysIn
	last, ok := w.At(0)
	if !ok {
		return nil
	}
	b2, ok2 := w.At(1)
	if !ok2 {
		return nil
	}

	limit := 10
	if n-1 < limit {
		limit = n - 1
	}

	dn := 0
	for i := 2; i <= limit; i++ {
		cur, okc := w.At(i - 1)
		nxt, okn := w.At(i)
		if !okc || !okn {
			break
		}
		if cur.Low >= nxt.Low || cur.High > nxt.High {
			break
		}
		pr := nxt.High - nxt.Low
		if pr > 0 && cur.High > nxt.High-pr*0.75 {
			break
		}
		dn++
	}
	if dn < 5 || ai != market.AlwaysInShort || last.Low >= b2.Low || last.Close >= last.Open {
		return nil
	}
	if !validateAndCool(types.Sell, w, atr, ctx) {
		return nil
	}
	mcHigh := b2.High
	for i := 2; i <= dn+1; i++ {
		if b, ok := w.At(i - 1); ok && b.High > mcHigh {
			mcHigh = b.High
		}
	}
	sl := mcHigh + atr*0.3
	if sl-last.Close > atr*MaxStopATRMult {
		sl = maxf(last.High, b2.High) + atr*0.3
	}
	if sl-last.Close > atr*MaxStopATRMult {
		return nil
	}
	ctx.Cooldown.Record(types.Sell, last.Close)
	return &Result{Signal: MicroChannelSell, Direction: Short, Entry: last.Close, Stop: sl, Reason: "MicroCH"}
}

// CheckMicroChannel detects 5+ bars of monotone highs and lows with
// shallow pullbacks, requiring a matching
// AlwaysIn bias.
func CheckMicroChannel(w *bar.Window, atr float64, ctx *Context) *Result {
	if r := checkMicroChannelLong(w, atr, ctx); r != nil {
		return r
	}
	return checkMicroChannelShort(w, atr, ctx)
}
