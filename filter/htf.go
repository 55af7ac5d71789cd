package filter

import "github.com/evdnx/brooksfutures/types"

// HTFTrend is the higher-timeframe directional bias.
type HTFTrend string

const (
	HTFBullish HTFTrend = "bullish"
	HTFBearish HTFTrend = "bearish"
	HTFNeutral HTFTrend = "neutral"
)

const (
	htfSlopeThresholdPct       = 0.003
	htfStrongSlopeThresholdPct = 0.005
	htfPriceNearEMAPct         = 0.008
	htfTrendBoost              = 1.2
	htfCounterTrend            = 0.5
	htfNeutralFactor           = 1.0
)

// HTFSnapshot is the most recently computed higher-timeframe reading.
type HTFSnapshot struct {
	Trend      HTFTrend
	EMAValue   float64
	EMASlope   float64
	LastClose  float64
	PriceVsEMA string // "above", "below", "at"
}

// HTFFilter is the higher-timeframe context filter: it never hard-blocks
// a signal on its own (H2/L2 hard-gating is the caller's decision via
// AllowsH2Buy/AllowsL2Sell), it only supplies a soft weighting via
// SignalModifier.
type HTFFilter struct {
	snapshot *HTFSnapshot
}

// Update recomputes the snapshot from a batch of higher-timeframe
// closes and their EMA20 series (oldest first), as fetched by the
// stream package's HTF poller task.
func (f *HTFFilter) Update(closes, emaSeries []float64) {
	if len(closes) == 0 || len(emaSeries) == 0 {
		return
	}
	lastClose := closes[len(closes)-1]
	lastEMA := emaSeries[len(emaSeries)-1]

	lookback := 6
	if lookback >= len(emaSeries) {
		lookback = len(emaSeries) - 1
	}
	slope := 0.0
	if lookback >= 1 {
		start := emaSeries[len(emaSeries)-1-lookback]
		if start > 0 {
			slope = (lastEMA - start) / start
		}
	}

	var trend HTFTrend
	switch {
	case slope > htfSlopeThresholdPct:
		trend = HTFBullish
	case slope < -htfSlopeThresholdPct:
		trend = HTFBearish
	default:
		trend = HTFNeutral
	}

	priceVsEMA := "at"
	switch {
	case lastClose > lastEMA*1.001:
		priceVsEMA = "above"
	case lastClose < lastEMA*0.999:
		priceVsEMA = "below"
	}

	f.snapshot = &HTFSnapshot{
		Trend:      trend,
		EMAValue:   lastEMA,
		EMASlope:   slope,
		LastClose:  lastClose,
		PriceVsEMA: priceVsEMA,
	}
}

// Snapshot returns the last computed reading, or nil before the first Update.
func (f *HTFFilter) Snapshot() *HTFSnapshot { return f.snapshot }

// SignalModifier returns the soft weighting factor for a signal of the
// given side: 1.2 with-trend, 0.5 counter-trend, 1.0 neutral/unset.
func (f *HTFFilter) SignalModifier(side types.Side) float64 {
	if f.snapshot == nil {
		return htfNeutralFactor
	}
	trend := f.snapshot.Trend
	if side == types.Buy {
		switch trend {
		case HTFBullish:
			return htfTrendBoost
		case HTFBearish:
			return htfCounterTrend
		default:
			return htfNeutralFactor
		}
	}
	switch trend {
	case HTFBearish:
		return htfTrendBoost
	case HTFBullish:
		return htfCounterTrend
	default:
		return htfNeutralFactor
	}
}

// IsPriceNearEMA reports whether price sits within tolerance of the HTF EMA.
func (f *HTFFilter) IsPriceNearEMA(price float64) bool {
	if f.snapshot == nil || price <= 0 || f.snapshot.EMAValue <= 0 {
		return false
	}
	pct := absf(price-f.snapshot.EMAValue) / f.snapshot.EMAValue
	return pct <= htfPriceNearEMAPct
}

// AllowsH2Buy hard-gates H1/H2 longs: only when the HTF is in a strong
// uptrend and price has pulled back near the HTF EMA.
func (f *HTFFilter) AllowsH2Buy(price float64) bool {
	if f.snapshot == nil {
		return false
	}
	strongBull := f.snapshot.Trend == HTFBullish && f.snapshot.EMASlope >= htfStrongSlopeThresholdPct
	return strongBull && f.IsPriceNearEMA(price)
}

// AllowsL2Sell hard-gates L1/L2 shorts: the mirror of AllowsH2Buy.
func (f *HTFFilter) AllowsL2Sell(price float64) bool {
	if f.snapshot == nil {
		return false
	}
	strongBear := f.snapshot.Trend == HTFBearish && f.snapshot.EMASlope <= -htfStrongSlopeThresholdPct
	return strongBear && f.IsPriceNearEMA(price)
}
