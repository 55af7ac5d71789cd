package filter

import "github.com/evdnx/brooksfutures/bar"

const measuringGapMinSize = 0.3

// MeasuringGapInfo is an open, unfilled gap whose midpoint projects a
// measured-move target.
type MeasuringGapInfo struct {
	GapHigh, GapLow float64
	Direction       string // "up" or "down"
	BarIndex        int
	IsValid         bool
}

// MeasuringGapTracker maintains at most one active measuring gap at a time.
type MeasuringGapTracker struct {
	Gap    MeasuringGapInfo
	HasGap bool
}

// Update re-evaluates the tracker against the current closed-bar window.
func (t *MeasuringGapTracker) Update(w *bar.Window, atr float64) {
	if atr <= 0 || w.Len() < 3 {
		return
	}

	if t.HasGap && t.Gap.IsValid {
		t.Gap.BarIndex++
		mid := (t.Gap.GapHigh + t.Gap.GapLow) / 2.0
		last, _ := w.At(0)
		if t.Gap.Direction == "up" && last.Low < mid {
			t.Gap.IsValid = false
		}
		if t.Gap.Direction == "down" && last.High > mid {
			t.Gap.IsValid = false
		}
		if t.Gap.BarIndex > 20 {
			t.Gap.IsValid = false
			t.HasGap = false
		}
		if t.Gap.IsValid {
			return
		}
	}

	b1, ok1 := w.At(0)
	b2, ok2 := w.At(1)
	if !ok1 || !ok2 {
		return
	}
	rng := b1.High - b1.Low
	if rng <= 0 {
		return
	}
	body := absf(b1.Close - b1.Open)

	gapUp := b1.Low - b2.High
	if gapUp >= atr*measuringGapMinSize && b1.Close > b1.Open && body/rng > 0.5 {
		t.HasGap = true
		t.Gap = MeasuringGapInfo{GapHigh: b1.Low, GapLow: b2.High, Direction: "up", IsValid: true}
		return
	}
	gapDown := b2.Low - b1.High
	if gapDown >= atr*measuringGapMinSize && b1.Close < b1.Open && body/rng > 0.5 {
		t.HasGap = true
		t.Gap = MeasuringGapInfo{GapHigh: b2.Low, GapLow: b1.High, Direction: "down", IsValid: true}
	}
}
