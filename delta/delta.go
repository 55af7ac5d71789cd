// Package delta implements the order-flow delta engine: a fixed-
// duration sliding window over aggressive buy/sell trade flow producing
// cumulative delta, trend/acceleration, anomaly flags and a
// signal-strength modifier.
package delta

import (
	"sync"

	"github.com/evdnx/brooksfutures/types"
)

// CleanupBatchSize triggers a batch eviction once this many trades have
// been appended since the last cleanup.
const CleanupBatchSize = 1000

// snapshotHistorySize bounds the cumulative-delta ring used for the
// sliding average and acceleration.
const snapshotHistorySize = 30

// volumeSampleSize bounds the rolling per-window total-volume samples
// used as the anomaly-detection baseline.
const volumeSampleSize = 20

const (
	strongDeltaThreshold     = 0.5
	absorptionPriceThreshold = 0.05 // percent
	absorptionDeltaThreshold = 0.3
	absorptionVolumeMult     = 1.5
	withdrawalPriceThreshold = 0.2 // percent
	withdrawalDeltaMismatch  = 0.15
)

// Trend is the labeled delta trend direction.
type Trend string

const (
	StrongBullish Trend = "strong_bullish"
	Bullish       Trend = "bullish"
	Neutral       Trend = "neutral"
	Bearish       Trend = "bearish"
	StrongBearish Trend = "strong_bearish"
)

// Snapshot is a point-in-time read of the delta engine.
type Snapshot struct {
	CumulativeDelta float64
	BuyVolume       float64
	SellVolume      float64

	DeltaRatio        float64
	DeltaAvg          float64
	DeltaAcceleration float64
	Trend             Trend

	IsClimaxBuy   bool
	IsClimaxSell  bool
	IsAbsorption  bool
	IsWithdrawal  bool

	TradeCount    int
	TimestampMs   int64
	WindowSeconds int64
}

type trade struct {
	ts           int64
	price        float64
	qty          float64
	isBuyerMaker bool
}

// Engine is the windowed order-flow aggregator. One Engine per symbol; a
// single sync.Mutex guards AddTrade and Snapshot.
type Engine struct {
	mu sync.Mutex

	windowMs      int64
	shortWindowMs int64

	trades []trade // oldest first

	buyVolume, sellVolume float64
	tradesSinceCleanup    int

	deltaHistory  []float64
	volumeSamples []float64
	avgVolume     float64

	lastPrice float64
}

// NewEngine returns an engine whose primary window matches the given bar
// period.
func NewEngine(windowSeconds int64) *Engine {
	if windowSeconds <= 0 {
		windowSeconds = 300
	}
	shortSeconds := windowSeconds / 5
	if shortSeconds < 30 {
		shortSeconds = 30
	}
	return &Engine{
		windowMs:      windowSeconds * 1000,
		shortWindowMs: shortSeconds * 1000,
	}
}

// AddTrade appends one aggressive trade. isBuyerMaker true means the
// taker was a seller (aggressive sell); false means an aggressive buy.
func (e *Engine) AddTrade(tsMs int64, price, qty float64, isBuyerMaker bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trades = append(e.trades, trade{ts: tsMs, price: price, qty: qty, isBuyerMaker: isBuyerMaker})
	e.lastPrice = price

	if isBuyerMaker {
		e.sellVolume += qty
	} else {
		e.buyVolume += qty
	}
	e.tradesSinceCleanup++

	if e.tradesSinceCleanup >= CleanupBatchSize {
		e.cleanup(tsMs)
	}
}

// cleanup evicts trades older than the window, subtracting their
// contribution from the incremental volumes and clamping the result to
// >=0 to absorb floating-point drift.
func (e *Engine) cleanup(nowMs int64) {
	cutoff := nowMs - e.windowMs
	i := 0
	for i < len(e.trades) && e.trades[i].ts < cutoff {
		t := e.trades[i]
		if t.isBuyerMaker {
			e.sellVolume -= t.qty
		} else {
			e.buyVolume -= t.qty
		}
		i++
	}
	if i > 0 {
		e.trades = e.trades[i:]
	}
	if e.buyVolume < 0 {
		e.buyVolume = 0
	}
	if e.sellVolume < 0 {
		e.sellVolume = 0
	}
	e.tradesSinceCleanup = 0
}

// Snapshot forces a cleanup and returns the current reading.
func (e *Engine) Snapshot(nowMs int64) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cleanup(nowMs)

	if len(e.trades) == 0 {
		return Snapshot{TimestampMs: nowMs, WindowSeconds: e.windowMs / 1000}
	}

	buyVolume, sellVolume := e.buyVolume, e.sellVolume
	total := buyVolume + sellVolume

	shortCutoff := nowMs - e.shortWindowMs
	var shortBuy, shortSell float64
	var firstPrice, lastPrice float64
	haveFirst, haveLast := false, false
	for i := len(e.trades) - 1; i >= 0; i-- {
		t := e.trades[i]
		if t.ts < shortCutoff {
			if !haveFirst {
				firstPrice = t.price
				haveFirst = true
			}
			break
		}
		if !haveLast {
			lastPrice = t.price
			haveLast = true
		}
		firstPrice = t.price
		haveFirst = true
		if t.isBuyerMaker {
			shortSell += t.qty
		} else {
			shortBuy += t.qty
		}
	}
	if !haveFirst {
		firstPrice = e.trades[0].price
	}
	if !haveLast {
		lastPrice = e.trades[len(e.trades)-1].price
	}

	cumulativeDelta := buyVolume - sellVolume
	shortDelta := shortBuy - shortSell

	deltaRatio := 0.0
	if total > 0 {
		deltaRatio = cumulativeDelta / total
	}

	deltaAvg, deltaAccel := e.trendMetrics(cumulativeDelta)
	trend := determineTrend(deltaRatio, deltaAccel, shortDelta, total)

	priceChangePct := 0.0
	if firstPrice > 0 {
		priceChangePct = (lastPrice - firstPrice) / firstPrice * 100
	}

	e.volumeSamples = append(e.volumeSamples, total)
	if len(e.volumeSamples) > volumeSampleSize {
		e.volumeSamples = e.volumeSamples[len(e.volumeSamples)-volumeSampleSize:]
	}
	sum := 0.0
	for _, v := range e.volumeSamples {
		sum += v
	}
	if len(e.volumeSamples) > 0 {
		e.avgVolume = sum / float64(len(e.volumeSamples))
	} else {
		e.avgVolume = total
	}

	climaxBuy, climaxSell, absorption, withdrawal := detectAnomalies(buyVolume, sellVolume, priceChangePct, total, deltaRatio, e.avgVolume)

	snap := Snapshot{
		CumulativeDelta:   cumulativeDelta,
		BuyVolume:         buyVolume,
		SellVolume:        sellVolume,
		DeltaRatio:        deltaRatio,
		DeltaAvg:          deltaAvg,
		DeltaAcceleration: deltaAccel,
		Trend:             trend,
		IsClimaxBuy:       climaxBuy,
		IsClimaxSell:      climaxSell,
		IsAbsorption:      absorption,
		IsWithdrawal:      withdrawal,
		TradeCount:        len(e.trades),
		TimestampMs:       nowMs,
		WindowSeconds:     e.windowMs / 1000,
	}

	e.deltaHistory = append(e.deltaHistory, cumulativeDelta)
	if len(e.deltaHistory) > snapshotHistorySize {
		e.deltaHistory = e.deltaHistory[len(e.deltaHistory)-snapshotHistorySize:]
	}

	return snap
}

func (e *Engine) trendMetrics(current float64) (avg, accel float64) {
	if len(e.deltaHistory) == 0 {
		return current, 0
	}
	sum := 0.0
	for _, d := range e.deltaHistory {
		sum += d
	}
	avg = sum / float64(len(e.deltaHistory))

	n := len(e.deltaHistory)
	switch {
	case n >= 10:
		recent := meanTail(e.deltaHistory, 5)
		older := meanTail(e.deltaHistory[:n-5], 5)
		accel = recent - older
	case n >= 2:
		mid := n / 2
		recent := meanOf(e.deltaHistory[mid:])
		older := meanOf(e.deltaHistory[:mid])
		accel = recent - older
	}
	return avg, accel
}

func meanTail(vs []float64, n int) float64 {
	if n > len(vs) {
		n = len(vs)
	}
	return meanOf(vs[len(vs)-n:])
}

func meanOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func determineTrend(deltaRatio, acceleration, shortDelta, totalVolume float64) Trend {
	score := deltaRatio
	switch {
	case acceleration > 0.1:
		score += 0.2
	case acceleration < -0.1:
		score -= 0.2
	}
	if totalVolume > 0 {
		shortRatio := shortDelta / (totalVolume * 0.2)
		if shortRatio > 0.3 && deltaRatio > 0 {
			score += 0.1
		} else if shortRatio < -0.3 && deltaRatio < 0 {
			score -= 0.1
		}
	}
	switch {
	case score > 0.5:
		return StrongBullish
	case score > 0.3:
		return Bullish
	case score < -0.5:
		return StrongBearish
	case score < -0.3:
		return Bearish
	default:
		return Neutral
	}
}

func detectAnomalies(buyVol, sellVol, priceChangePct, totalVol, deltaRatio, avgVolume float64) (climaxBuy, climaxSell, absorption, withdrawal bool) {
	if totalVol == 0 {
		return false, false, false, false
	}
	volumeMultiple := 1.0
	if avgVolume > 0 {
		volumeMultiple = totalVol / avgVolume
	}

	if absf(priceChangePct) < absorptionPriceThreshold {
		if absf(deltaRatio) > absorptionDeltaThreshold && volumeMultiple >= absorptionVolumeMult {
			absorption = true
			if deltaRatio > 0 {
				climaxBuy = true
			} else {
				climaxSell = true
			}
		}
	} else if absf(priceChangePct) >= withdrawalPriceThreshold {
		if priceChangePct > 0 && deltaRatio < withdrawalDeltaMismatch {
			withdrawal = true
		} else if priceChangePct < 0 && deltaRatio > -withdrawalDeltaMismatch {
			withdrawal = true
		}
	}
	return
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// SignalModifier computes the delta-based strength multiplier for a
// candidate signal: aligned
// trend and acceleration boost the multiplier; absorption or liquidity
// withdrawal against the side reduce it; extreme opposite delta with
// accelerating opposite momentum returns 0 to veto the signal outright.
func SignalModifier(snap Snapshot, side types.Side, priceChangePct float64) (float64, string) {
	modifier := 1.0
	reason := ""

	isBuy := side == types.Buy
	ratio := snap.DeltaRatio

	if isBuy {
		if (snap.Trend == StrongBullish || snap.Trend == Bullish) && ratio > 0.3 {
			modifier *= 1.2
			reason = "buy-side dominant"
			if snap.DeltaAcceleration > 0.1 {
				modifier *= 1.1
				reason = "buy-side dominant, accelerating"
			}
		}
		switch {
		case snap.IsAbsorption && ratio > 0:
			modifier = 0.4
			reason = "absorption against buy"
		case snap.IsClimaxBuy:
			modifier *= 0.5
			reason = "buy climax"
		}
		if priceChangePct > 0.2 && ratio < 0.1 {
			severity := clamp01((0.2 - ratio) / 0.3)
			modifier *= 0.6 + 0.2*(1-severity)
			reason = "liquidity withdrawal on rally"
		}
		if snap.Trend == StrongBearish || snap.Trend == Bearish {
			if ratio < -0.3 {
				modifier *= 0.6
				reason = "sell-side dominant"
			}
			if ratio < -strongDeltaThreshold && snap.DeltaAcceleration < -0.1 {
				return 0, "extreme sell pressure vetoes buy"
			}
		}
		return modifier, reason
	}

	if snap.Trend == StrongBearish || snap.Trend == Bearish {
		if ratio < -0.3 {
			modifier *= 1.2
			reason = "sell-side dominant"
			if snap.DeltaAcceleration < -0.1 {
				modifier *= 1.1
				reason = "sell-side dominant, accelerating"
			}
		}
	}
	switch {
	case snap.IsAbsorption && ratio < 0:
		modifier = 0.4
		reason = "absorption against sell"
	case snap.IsClimaxSell:
		modifier *= 0.5
		reason = "sell climax"
	}
	if priceChangePct < -0.2 && ratio > -0.1 {
		severity := clamp01((ratio + 0.2) / 0.3)
		modifier *= 0.6 + 0.2*(1-severity)
		reason = "liquidity withdrawal on selloff"
	}
	if snap.Trend == StrongBullish || snap.Trend == Bullish {
		if ratio > 0.3 {
			modifier *= 0.6
			reason = "buy-side dominant"
		}
		if ratio > strongDeltaThreshold && snap.DeltaAcceleration > 0.1 {
			return 0, "extreme buy pressure vetoes sell"
		}
	}
	return modifier, reason
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// WedgeBuyDeltaBoost is the Wedge_Buy-specific booster: a wedge's third
// push already guarantees a fresh price low, so positive delta
// divergence or absorption-by-hidden-buyers there is an unusually
// strong confirming signal.
func WedgeBuyDeltaBoost(snap Snapshot) (float64, string) {
	if snap.TradeCount == 0 {
		return 1.0, "no delta data"
	}
	multiplier := 1.0
	reason := ""

	if snap.IsAbsorption && snap.DeltaRatio < 0 {
		multiplier = 1.25
		reason = "absorption: hidden buyers under a falling price"
	}
	if snap.DeltaRatio > 0.2 || snap.Trend == Bullish || snap.Trend == StrongBullish {
		boost := 1.2
		if multiplier > 1.0 {
			multiplier = minf(multiplier*boost, 1.35)
		} else {
			multiplier = boost
		}
		if reason != "" {
			reason += ", positive divergence"
		} else {
			reason = "positive divergence: new low, delta turning up"
		}
	}
	if reason == "" {
		reason = "delta neutral"
	}
	return multiplier, reason
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
