package risk

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// RRRatio is a pair of TP distances expressed as multiples of entry risk.
type RRRatio struct {
	TP1R, TP2R float64
}

// SignalRRTable is the per-signal-type default R-multiple pair.
// Unlisted signal types fall back to DefaultRR passed by the caller.
var SignalRRTable = map[string]RRRatio{
	"Spike_Buy":                  {1.0, 2.5},
	"Spike_Sell":                 {1.0, 2.5},
	"FailedBreakout_Buy":         {0.8, 1.5},
	"FailedBreakout_Sell":        {0.8, 1.5},
	"Wedge_FailedBreakout_Buy":   {0.8, 1.5},
	"Wedge_FailedBreakout_Sell":  {0.8, 1.5},
	"Climax_Buy":                 {1.2, 3.0},
	"Climax_Sell":                {1.2, 3.0},
	"Wedge_Buy":                  {1.0, 2.5},
	"Wedge_Sell":                 {1.0, 2.5},
	"H2_Buy":                     {0.8, 2.0},
	"L2_Sell":                    {0.8, 2.0},
	"H1_Buy":                     {0.8, 1.8},
	"L1_Sell":                    {0.8, 1.8},
}

// ClimaxBarMultiplier is the range-vs-10-bar-average threshold that marks
// a signal bar as a climax bar.
const ClimaxBarMultiplier = 3.0

// DetectClimaxBar reports whether the most recently closed bar's range is
// at least multiplier times the average range of the 10 bars before it.
func DetectClimaxBar(w *bar.Window, multiplier float64) (bool, float64) {
	if w.Len() < 11 {
		return false, 1.0
	}
	var sum float64
	for i := 1; i <= 10; i++ {
		b, ok := w.At(i)
		if !ok {
			return false, 1.0
		}
		sum += b.High - b.Low
	}
	avg := sum / 10
	if avg <= 0 {
		return false, 1.0
	}
	last, ok := w.At(0)
	if !ok {
		return false, 1.0
	}
	ratio := (last.High - last.Low) / avg
	return ratio >= multiplier, ratio
}

// TakeProfitPlan is the computed, market-state-adjusted exit plan for a
// new position.
type TakeProfitPlan struct {
	TP1           float64
	TP2           float64
	TP1CloseRatio float64
	IsClimax      bool
}

// CalculateTakeProfits builds the Al-Brooks-style scaled-exit plan:
// TP1/TP2 from the signal type's R-multiples (or defaultRR), extended in
// TightChannel, capped to the opposite range edge in TradingRange, and
// tightened when the signal bar itself is a climax bar.
func CalculateTakeProfits(entry, stop float64, side types.Side, baseHeight float64, signalType string, defaultRR RRRatio, state market.MarketState, w *bar.Window) TakeProfitPlan {
	riskDist := absf(entry - stop)
	rr, ok := SignalRRTable[signalType]
	if !ok {
		rr = defaultRR
	}
	tp1Mult, tp2Mult := rr.TP1R, rr.TP2R
	closeRatio := 0.5

	isClimax := false
	if w != nil {
		var ratio float64
		isClimax, ratio = DetectClimaxBar(w, ClimaxBarMultiplier)
		_ = ratio
		if isClimax {
			tp2Mult = minf(tp2Mult, 1.5)
			closeRatio = 0.75
		}
	}

	if state == market.StateTightChannel && !isClimax {
		tp2Mult = maxf(tp2Mult, 3.0)
	} else if state == market.StateTradingRange && baseHeight > 0 && baseHeight < riskDist*tp2Mult && riskDist > 0 {
		tp2Mult = maxf(baseHeight/riskDist, 1.2)
	}

	dir := 1.0
	if side == types.Sell {
		dir = -1.0
	}
	tp1 := entry + dir*(riskDist*tp1Mult)

	measuredMove := entry + dir*(riskDist*tp2Mult)
	if baseHeight > 0 {
		measuredMove = entry + dir*baseHeight
	}
	rBasedTP2 := entry + dir*(riskDist*tp2Mult)

	var tp2 float64
	if side == types.Buy {
		tp2 = maxf(measuredMove, rBasedTP2)
	} else {
		tp2 = minf(measuredMove, rBasedTP2)
	}

	if state == market.StateTradingRange && baseHeight > 0 {
		rangeLimit := entry + dir*baseHeight
		if side == types.Buy {
			tp2 = minf(tp2, rangeLimit)
		} else {
			tp2 = maxf(tp2, rangeLimit)
		}
	}

	if baseHeight > 0 && baseHeight < riskDist*1.5 && state != market.StateTradingRange {
		conservative := entry + dir*(riskDist*(tp2Mult+0.5))
		if side == types.Buy {
			tp2 = maxf(tp2, conservative)
		} else {
			tp2 = minf(tp2, conservative)
		}
	}

	return TakeProfitPlan{TP1: tp1, TP2: tp2, TP1CloseRatio: closeRatio, IsClimax: isClimax}
}
