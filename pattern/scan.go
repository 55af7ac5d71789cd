package pattern

import "github.com/evdnx/brooksfutures/bar"

// detector is the common shape every single-direction checkXxx function
// satisfies.
type detector func(w *bar.Window, atr float64, ctx *Context) *Result

// scanOrder is the fixed, priority-ordered list of detector halves, in
// Spike, MicroChannel, H/L-count, BreakoutPullback, TrendBar, GapBar,
// TRBreakout, Climax, Wedge, MTR, FailedBreakout, DoubleTopBottom,
// OutsideBar, ReversalBar, II, MeasuredMove, FinalFlag order. Each entry
// pairs a detector's long half with its short half; Scan walks the full
// list for one direction before moving to the other, so the direction
// under consideration always wins ties across pattern types.
var scanOrder = []struct {
	long, short detector
}{
	{checkSpikeLong, checkSpikeShort},
	{checkMicroChannelLong, checkMicroChannelShort},
	{checkHLCountLong, checkHLCountShort},
	{checkBreakoutPullbackLong, checkBreakoutPullbackShort},
	{checkTrendBarLong, checkTrendBarShort},
	{checkGapBarLong, checkGapBarShort},
	{checkTRBreakoutLong, checkTRBreakoutShort},
	{checkClimaxLong, checkClimaxShort},
	{checkWedgeLong, checkWedgeShort},
	{checkMTRLong, checkMTRShort},
	{checkFailedBreakoutLong, checkFailedBreakoutShort},
	{checkDoubleTopBottomLong, checkDoubleTopBottomShort},
	{checkOutsideBarLong, checkOutsideBarShort},
	{checkReversalBarLong, checkReversalBarShort},
	{checkIILong, checkIIShort},
	{checkMeasuredMoveLong, checkMeasuredMoveShort},
	{checkFinalFlagLong, checkFinalFlagShort},
}

// ttrSkippedIndex marks the scanOrder positions suppressed while the
// market sits in a tight trading range: momentum-continuation and
// measured-move setups assume a directional push that a TTR, by
// definition, isn't making. Indices: Spike(0), MicroChannel(1),
// HLCount(2), TrendBar(4), GapBar(5), MeasuredMove(15).
var ttrSkippedIndex = map[int]bool{
	0: true, 1: true, 2: true, 4: true, 5: true, 15: true,
}

func checkHLCountLong(w *bar.Window, atr float64, ctx *Context) *Result {
	return CheckHLCount(w, atr, Long, ctx)
}

func checkHLCountShort(w *bar.Window, atr float64, ctx *Context) *Result {
	return CheckHLCount(w, atr, Short, ctx)
}

// Scan runs the full priority-ordered detector sweep for one closed bar:
// for each direction in turn (long, then short) it walks all 17
// detectors in priority order and returns the first hit for that
// direction; a short-side setup only surfaces once the whole long pass
// has come up empty. isTTR narrows out the momentum-continuation
// detectors that assume a directional push; state-gating
// (TradingRange-only, FinalFlag-only) and the shared reversal-allowed
// gate are each enforced inside their own detector.
func Scan(w *bar.Window, atr float64, isTTR bool, ctx *Context) *Result {
	if atr <= 0 || ctx == nil {
		return nil
	}
	ctx.Breakout.Tick()

	for i, d := range scanOrder {
		if isTTR && ttrSkippedIndex[i] {
			continue
		}
		if r := d.long(w, atr, ctx); r != nil {
			return r
		}
	}
	for i, d := range scanOrder {
		if isTTR && ttrSkippedIndex[i] {
			continue
		}
		if r := d.short(w, atr, ctx); r != nil {
			return r
		}
	}
	return nil
}
