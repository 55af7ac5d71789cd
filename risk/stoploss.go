package risk

import (
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

const (
	// MaxStopATRMult hard-caps any computed stop distance.
	MaxStopATRMult = 3.0
	// MinBufferATRMult floors the stop buffer regardless of strength.
	MinBufferATRMult = 0.2

	// SoftStopConfirmClose requires a single close beyond the stop.
	SoftStopConfirmClose = 0
	// SoftStopConfirmBars requires N consecutive confirming closes.
	SoftStopConfirmBars = 2
)

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

// isStrongState reports whether the unified rule should use the tight,
// two-bar-extreme stop rather than the swing-based one.
func isStrongState(s market.MarketState) bool {
	return s == market.StateStrongTrend || s == market.StateBreakout || s == market.StateTightChannel
}

// BrooksStopLoss places a stop at the nearest swing point (allowing the
// temporary, depth-1 pivot) plus a buffer, falling back to the signal
// bar's own extreme when no usable swing exists.
func BrooksStopLoss(side types.Side, entry, atr float64, swings *market.SwingTracker, h1, l1, h2, l2, spread float64) float64 {
	buf := spread
	if atr > 0 {
		buf += atr * 0.3
	}
	minBuf := atr * MinBufferATRMult
	if buf < minBuf {
		buf = minBuf
	}

	if side == types.Buy {
		if sw := swings.RecentSwingLow(1, true); sw > 0 && sw < entry {
			dist := entry - sw
			if atr <= 0 || dist <= atr*MaxStopATRMult {
				return sw - buf
			}
		}
		barLow := l1
		if l2 > 0 {
			barLow = minf(l1, l2)
		}
		if barLow <= 0 {
			return 0
		}
		sl := barLow - buf
		if sl >= entry {
			fallback := buf
			if atr > 0 {
				fallback = atr * 0.3
			}
			sl = entry - fallback
		}
		if atr > 0 && (entry-sl) > atr*MaxStopATRMult {
			sl = entry - atr*MaxStopATRMult
		}
		return sl
	}

	if sw := swings.RecentSwingHigh(1, true); sw > 0 && sw > entry {
		dist := sw - entry
		if atr <= 0 || dist <= atr*MaxStopATRMult {
			return sw + buf
		}
	}
	barHigh := h1
	if h2 > 0 {
		barHigh = maxf(h1, h2)
	}
	if barHigh <= 0 {
		return 0
	}
	sl := barHigh + buf
	if sl <= entry {
		fallback := buf
		if atr > 0 {
			fallback = atr * 0.3
		}
		sl = entry + fallback
	}
	if atr > 0 && (sl-entry) > atr*MaxStopATRMult {
		sl = entry + atr*MaxStopATRMult
	}
	return sl
}

// UnifiedStopLoss is the rule used by both detectors and the position
// lifecycle: in strong-trend states prefer the tight
// two-bar-extreme stop; otherwise prefer the nearest swing, falling back
// to the two-bar rule when the swing is out of reach. Returns 0 when the
// resulting distance still exceeds MaxStopATRMult*atr.
func UnifiedStopLoss(side types.Side, atr, entry float64, state market.MarketState, swings *market.SwingTracker, h1, l1, h2, l2, spread float64) float64 {
	strong := isStrongState(state)

	atrBuf := atr * 0.5
	if strong {
		atrBuf = atr * 0.3
	}
	if atr <= 0 {
		atrBuf = 0
	}
	minBuf := atr * MinBufferATRMult
	totalBuf := maxf(atrBuf, minBuf) + spread

	var sl, dist float64
	if strong {
		if side == types.Buy {
			sl = minf(l1, l2) - totalBuf
			dist = entry - sl
		} else {
			sl = maxf(h1, h2) + totalBuf
			dist = sl - entry
		}
	} else if side == types.Buy {
		sw := swings.RecentSwingLow(1, true)
		if sw > 0 && (entry-sw-totalBuf) <= atr*MaxStopATRMult {
			sl = sw - totalBuf
		} else {
			sl = minf(l1, l2) - totalBuf
		}
		dist = entry - sl
	} else {
		sw := swings.RecentSwingHigh(1, true)
		if sw > 0 && (sw+totalBuf-entry) <= atr*MaxStopATRMult {
			sl = sw + totalBuf
		} else {
			sl = maxf(h1, h2) + totalBuf
		}
		dist = sl - entry
	}

	if atr > 0 && dist > atr*MaxStopATRMult {
		return 0
	}
	return sl
}

// CheckSoftStop reports whether a close-based soft stop should trigger,
// as an alternative (or precursor) to a resting hard stop order. mode 0
// triggers on a single close beyond technicalSL; mode 2 requires
// SoftStopConfirmBars consecutive confirming closes.
func CheckSoftStop(side types.Side, technicalSL, close float64, mode int, confirmCloses []float64) bool {
	if mode == 2 && len(confirmCloses) > 0 {
		need := SoftStopConfirmBars
		tail := confirmCloses
		if len(tail) > need {
			tail = tail[len(tail)-need:]
		}
		broken := 0
		for _, cc := range tail {
			if (side == types.Buy && cc < technicalSL) || (side == types.Sell && cc > technicalSL) {
				broken++
			}
		}
		return broken >= need
	}
	if side == types.Buy {
		return close < technicalSL
	}
	return close > technicalSL
}
