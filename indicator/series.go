package indicator

import "github.com/evdnx/brooksfutures/bar"

// EMASeries computes an EMA over an entire batch of closes in one call;
// no package in this module calls it. The first `period-1` values have
// no stable average, so they
// are forward-then-backward filled so every bar carries a defined
// value.
func EMASeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	e := NewEMA(period)
	for i, c := range closes {
		out[i] = e.Update(c)
	}
	return fillEdges(out)
}

// ATRSeries computes an ATR over an entire batch of bars, the ATR
// counterpart of EMASeries.
func ATRSeries(bars []bar.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	a := NewATR(period)
	for i, b := range bars {
		out[i] = a.Update(b.High, b.Low, b.Close)
	}
	return fillEdges(out)
}

// fillEdges forward-fills from the first nonzero value backward to the
// start of the slice (there is no earlier value to forward-fill with,
// so the earliest defined value is copied back over the warm-up bars).
func fillEdges(vs []float64) []float64 {
	firstDefined := -1
	for i, v := range vs {
		if v != 0 {
			firstDefined = i
			break
		}
	}
	if firstDefined <= 0 {
		return vs
	}
	for i := 0; i < firstDefined; i++ {
		vs[i] = vs[firstDefined]
	}
	return vs
}
