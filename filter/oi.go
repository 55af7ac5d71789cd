package filter

import "context"

// OIProvider supplies open-interest readings used to confirm breakouts.
// It is a documented placeholder pending a real data source.
type OIProvider interface {
	OpenInterest(ctx context.Context, symbol string) (value float64, ok bool, err error)
}

// NoopOIProvider always reports no data available, so
// OIConfirmsBreakout never blocks a breakout on missing open interest.
type NoopOIProvider struct{}

func (NoopOIProvider) OpenInterest(context.Context, string) (float64, bool, error) {
	return 0, false, nil
}

// OIConfirmsBreakout reports whether current open interest confirms a
// breakout (current >= avg * multiplier). Absent data never blocks.
func OIConfirmsBreakout(currentOI, avgOI float64, haveData bool, multiplier float64) bool {
	if !haveData || avgOI <= 0 {
		return true
	}
	return currentOI >= avgOI*multiplier
}
