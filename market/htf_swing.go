package market

import "github.com/evdnx/brooksfutures/types"

// MaxHTFSwings caps the retained higher-timeframe pivots.
const MaxHTFSwings = 12

// HTFSwingTracker mirrors SwingTracker's depth-3 confirmation but over a
// higher-timeframe bar series, feeding a tighter alternative stop for an
// open position once price has moved in its favor.
type HTFSwingTracker struct {
	lows, highs []float64 // oldest first
}

// NewHTFSwingTracker returns an empty tracker.
func NewHTFSwingTracker() *HTFSwingTracker { return &HTFSwingTracker{} }

// UpdateFromSeries rebuilds the tracker's pivot cache from a higher-
// timeframe high/low series (oldest first), as refreshed by the stream
// package's HTF poller on its fixed cadence.
func (t *HTFSwingTracker) UpdateFromSeries(highs, lows []float64) {
	const depth = 3
	n := len(highs)
	if n != len(lows) || n < depth*2+1 {
		return
	}

	var newLows, newHighs []float64
	for i := depth; i < n-depth && len(newLows) < MaxHTFSwings && len(newHighs) < MaxHTFSwings; i++ {
		isLow, isHigh := true, true
		for k := 1; k <= depth; k++ {
			if lows[i-k] <= lows[i] || lows[i+k] <= lows[i] {
				isLow = false
			}
			if highs[i-k] >= highs[i] || highs[i+k] >= highs[i] {
				isHigh = false
			}
		}
		if isLow {
			newLows = append(newLows, lows[i])
		}
		if isHigh {
			newHighs = append(newHighs, highs[i])
		}
	}
	// Newest first, matching SwingTracker's convention.
	t.lows = reversef(newLows)
	t.highs = reversef(newHighs)
}

func reversef(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}

// StructuralStop computes the tighter higher-timeframe structural stop
// alternative to the unified rule: the most recent HTF pivot beyond entry
// that has itself made a higher low (buy) / lower high (sell) and that
// tightens (never loosens) the position's current stop. Returns 0 when
// no qualifying pivot exists.
func (t *HTFSwingTracker) StructuralStop(side types.Side, entry, currentStop, atr float64) float64 {
	if atr <= 0 {
		return 0
	}
	buf := atr * 0.2
	if side == types.Buy {
		if len(t.lows) < 2 {
			return 0
		}
		for i := 0; i < len(t.lows)-1; i++ {
			newLow, prevLow := t.lows[i], t.lows[i+1]
			if newLow > entry && newLow > prevLow && (currentStop <= 0 || newLow > currentStop+buf) {
				return newLow - buf
			}
		}
		return 0
	}
	if len(t.highs) < 2 {
		return 0
	}
	for i := 0; i < len(t.highs)-1; i++ {
		newHigh, prevHigh := t.highs[i], t.highs[i+1]
		if newHigh < entry && newHigh < prevHigh && (currentStop <= 0 || newHigh < currentStop-buf) {
			return newHigh + buf
		}
	}
	return 0
}
