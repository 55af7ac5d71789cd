package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/filter"
	"github.com/evdnx/brooksfutures/market"
)

// CheckHLCount detects the H1/H2 (long) or L1/L2 (short) continuation
// pushes tracked by market.HLCounter. Count 1 additionally
// requires a very-strong trend background, 4 of the last 5 bars aligned,
// and a pass of the 20-Gap rule's H1/L1 block.
func CheckHLCount(w *bar.Window, atr float64, direction Direction, ctx *Context) *Result {
	if atr <= 0 {
		return nil
	}
	ms := ctx.MState

	var hlCount int
	var needAI market.AlwaysIn
	if direction == Long {
		hlCount = ctx.HL.HCount
		needAI = market.AlwaysInLong
	} else {
		hlCount = ctx.HL.LCount
		needAI = market.AlwaysInShort
	}
	if ms.AlwaysIn != needAI {
		return nil
	}
	side := direction.Side()

	machine := ctx.H1Machine
	if direction == Short {
		machine = ctx.L1Machine
	}
	if machine != nil && ctx.EMAs != nil {
		machine.Update(w, ctx.EMAs, *ms, true)
	}

	if snap := ctx.HTF.Snapshot(); snap != nil {
		if (direction == Long && snap.Trend == filter.HTFBearish) || (direction == Short && snap.Trend == filter.HTFBullish) {
			return nil
		}
	}
	if ms.State == market.StateTradingRange {
		return nil
	}

	last, ok := w.At(0)
	if !ok {
		return nil
	}
	var extreme float64
	if direction == Long {
		extreme = ctx.HL.LastPullbackLow()
	} else {
		extreme = ctx.HL.LastBounceHigh()
	}
	var sl float64
	if direction == Long {
		sl = extreme - atr*0.3
	} else {
		sl = extreme + atr*0.3
	}
	var risk float64
	if direction == Long {
		risk = last.Close - sl
	} else {
		risk = sl - last.Close
	}
	if risk > atr*MaxStopATRMult {
		return nil
	}

	if hlCount == 1 {
		isVeryStrong := (ms.State == market.StateStrongTrend && ms.TrendStrength >= 0.65) || ms.State == market.StateTightChannel
		n := w.Len()
		same := 0
		limit := 5
		if limit > n-1 {
			limit = n - 1
		}
		for i := 1; i <= limit; i++ {
			b, ok := w.At(i)
			if !ok {
				break
			}
			body := b.Close - b.Open
			if (direction == Long && body > 0) || (direction == Short && body < 0) {
				same++
			}
		}
		if !isVeryStrong || same < 4 {
			return nil
		}
		if machine != nil && !machine.ReadyForH1() {
			return nil
		}
		label := "H1"
		if direction == Short {
			label = "L1"
		}
		if ctx.Gap20.CheckBlock(label) {
			return nil
		}
	} else if hlCount < 2 {
		return nil
	} else if machine != nil && !machine.ReadyForH2() {
		return nil
	}

	if !ctx.Cooldown.Check(w, side, last.Close, atr) {
		return nil
	}
	relaxed := ms.State == market.StateTradingRange
	if !filter.ValidateSignalBar(last.Open, last.High, last.Low, last.Close, side, relaxed) {
		return nil
	}

	ctx.Cooldown.Record(side, last.Close)
	if direction == Long {
		ctx.HL.HCount = 0
		sig := H1Buy
		if hlCount >= 2 {
			sig = H2Buy
		}
		return &Result{Signal: sig, Direction: Long, Entry: last.Close, Stop: sl, Reason: sig.String()}
	}
	ctx.HL.LCount = 0
	sig := L1Sell
	if hlCount >= 2 {
		sig = L2Sell
	}
	return &Result{Signal: sig, Direction: Short, Entry: last.Close, Stop: sl, Reason: sig.String()}
}
