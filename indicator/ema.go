// Package indicator implements the incremental EMA/ATR calculators the
// orchestrator updates once per closed bar.
package indicator

import "github.com/evdnx/goti"

// EMA is an incremental exponential moving average over close prices.
// The first update seeds the average with the raw price; every later
// update applies the standard EMA recurrence. The numeric series stays
// on this hand-rolled recurrence because goti's HMA exposes no numeric
// accessor, only crossover booleans; a companion goti.IndicatorSuite
// tracks the Hull moving average alongside it purely for
// TrendConfirmed's crossover read.
type EMA struct {
	period      int
	alpha       float64
	value       float64
	initialized bool
	suite       *goti.IndicatorSuite
}

// NewEMA creates an EMA calculator for the given period (must be >=1).
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	cfg := goti.DefaultConfig()
	cfg.HMAPeriod = period
	suite, _ := goti.NewIndicatorSuiteWithConfig(cfg)
	return &EMA{period: period, alpha: 2.0 / (float64(period) + 1.0), suite: suite}
}

// Update feeds one closing price and returns the updated EMA value.
func (e *EMA) Update(close float64) float64 {
	if e.suite != nil {
		_ = e.suite.Add(close, close, close, 0)
	}
	if !e.initialized {
		e.value = close
		e.initialized = true
		return e.value
	}
	e.value = e.alpha*close + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current EMA without updating it.
func (e *EMA) Value() float64 { return e.value }

// Ready reports whether at least one bar has been fed.
func (e *EMA) Ready() bool { return e.initialized }

// Period returns the configured period.
func (e *EMA) Period() int { return e.period }

// TrendConfirmed reports whether the companion Hull moving average just
// crossed in the direction asked about: a bullish crossover confirms a
// buy, a bearish crossover confirms a sell.
func (e *EMA) TrendConfirmed(isBuy bool) bool {
	if e.suite == nil {
		return false
	}
	if isBuy {
		ok, _ := e.suite.GetHMA().IsBullishCrossover()
		return ok
	}
	ok, _ := e.suite.GetHMA().IsBearishCrossover()
	return ok
}
