package indicator

import "github.com/evdnx/goti"

// ATR wraps goti's ATSO oscillator as a volatility-per-bar reading, the
// same role the strategy package's own suites use it for ("ATSO as a
// proxy for volatility"). Values before the suite has warmed up fall
// back to the last reading, which is zero until the first successful
// Calculate.
type ATR struct {
	period int
	suite  *goti.IndicatorSuite
	value  float64
}

// NewATR creates an ATR calculator backed by a goti.IndicatorSuite
// configured with ATSEMAperiod set to period (must be >=1).
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	cfg := goti.DefaultConfig()
	cfg.ATSEMAperiod = period
	suite, _ := goti.NewIndicatorSuiteWithConfig(cfg)
	return &ATR{period: period, suite: suite}
}

// Update feeds one bar's high/low/close into the suite (volume unknown
// at this layer, so it goes in as 0) and returns the latest ATSO
// reading.
func (a *ATR) Update(high, low, close float64) float64 {
	if a.suite == nil {
		return a.value
	}
	if err := a.suite.Add(high, low, close, 0); err != nil {
		return a.value
	}
	if v, err := a.suite.GetATSO().Calculate(); err == nil {
		a.value = v
	}
	return a.value
}

// Value returns the current ATR reading without updating it.
func (a *ATR) Value() float64 { return a.value }

// Ready reports whether the suite has warmed past its seed period.
func (a *ATR) Ready() bool {
	if a.suite == nil {
		return false
	}
	return len(a.suite.GetATSO().GetATSOValues()) > a.period
}
