// Package filter implements the context and quality gates that stand
// between a raw pattern match and an emitted signal:
// signal-bar quality, consolidation/barb-wire detection, the 20-gap-bar
// overextension rule, higher-timeframe bias, spread, cooldown, measuring
// gaps and breakout mode.
package filter

import "github.com/evdnx/brooksfutures/types"

const (
	// MinBodyRatio is the minimum body/range ratio a signal bar must show.
	MinBodyRatio = 0.50
	// ClosePositionPct caps the opposite-direction tail as a fraction of range.
	ClosePositionPct = 0.25

	// TradingRange relaxes both thresholds: narrow-range
	// bars are the norm inside a trading range, so full-strength
	// reversal-bar quality would reject almost everything.
	RelaxedMinBodyRatio  = 0.40
	RelaxedClosePosition = 0.35
)

// ValidateSignalBar checks that a candidate signal bar has a decisive
// body and closes on the correct side. relaxed selects the
// TradingRange thresholds instead of the standard ones.
func ValidateSignalBar(open, high, low, close float64, side types.Side, relaxed bool) bool {
	rng := high - low
	if rng <= 0 {
		return false
	}
	minBody, maxTail := MinBodyRatio, ClosePositionPct
	if relaxed {
		minBody, maxTail = RelaxedMinBodyRatio, RelaxedClosePosition
	}
	body := absf(close - open)
	if body/rng < minBody {
		return false
	}
	if side == types.Buy && close <= open {
		return false
	}
	if side == types.Sell && close >= open {
		return false
	}
	upperTail := high - maxf(close, open)
	lowerTail := minf(close, open) - low
	if side == types.Buy && upperTail/rng > maxTail {
		return false
	}
	if side == types.Sell && lowerTail/rng > maxTail {
		return false
	}
	return true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
