package filter

// obiHistorySize is the retained OBI sample count, roughly 30 samples
// at one per depth-stream tick.
const obiHistorySize = 30

// OBITrend labels the short-term direction of order-book imbalance.
type OBITrend string

const (
	OBIBullish OBITrend = "bullish"
	OBIBearish OBITrend = "bearish"
	OBINeutral OBITrend = "neutral"
)

// OBISnapshot is the cached reading served from the order-book-imbalance
// key for a symbol.
type OBISnapshot struct {
	OBI      float64
	Avg      float64
	Delta    float64
	Trend    OBITrend
}

// OBITracker computes the order-book-imbalance value from a depth-stream
// update and keeps a short rolling history for its average and rate of
// change.
type OBITracker struct {
	history []float64
}

// Update records one depth-stream reading's aggregate bid/ask quantity
// and returns the refreshed snapshot. OBI = (bids-asks)/(bids+asks).
func (t *OBITracker) Update(totalBidQty, totalAskQty float64) OBISnapshot {
	total := totalBidQty + totalAskQty
	obi := 0.0
	if total > 0 {
		obi = (totalBidQty - totalAskQty) / total
	}

	t.history = append(t.history, obi)
	if len(t.history) > obiHistorySize {
		t.history = t.history[len(t.history)-obiHistorySize:]
	}

	sum := 0.0
	for _, v := range t.history {
		sum += v
	}
	avg := obi
	if len(t.history) > 0 {
		avg = sum / float64(len(t.history))
	}

	delta := 0.0
	switch {
	case len(t.history) >= 20:
		recent := avgTail(t.history, 10)
		older := avgTail(t.history[:len(t.history)-10], 10)
		delta = recent - older
	case len(t.history) >= 5:
		delta = obi - t.history[0]
	}

	trend := OBINeutral
	switch {
	case delta > 0.05:
		trend = OBIBullish
	case delta < -0.05:
		trend = OBIBearish
	}

	return OBISnapshot{OBI: obi, Avg: avg, Delta: delta, Trend: trend}
}

func avgTail(vs []float64, n int) float64 {
	if n > len(vs) {
		n = len(vs)
	}
	if n == 0 {
		return 0
	}
	tail := vs[len(vs)-n:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	return sum / float64(len(tail))
}

// SignalModifier returns a soft multiplier derived from the OBI average,
// used alongside the HTF multiplier as one more entry in a signal's
// open-ended modifier map: strongly one-sided order flow boosts a
// same-side signal and dampens a counter-side one.
func (s OBISnapshot) SignalModifier(isBuy bool) float64 {
	switch {
	case isBuy && s.Avg > 0.3:
		return 1.15
	case isBuy && s.Avg < -0.3:
		return 0.85
	case !isBuy && s.Avg < -0.3:
		return 1.15
	case !isBuy && s.Avg > 0.3:
		return 0.85
	default:
		return 1.0
	}
}
