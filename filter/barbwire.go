package filter

import "github.com/evdnx/brooksfutures/bar"

const (
	barbWireMinBars    = 3
	barbWireBodyRatio  = 0.35
	barbWireRangeRatio = 0.5
)

// BarbWireFilter detects a tight, overlapping consolidation ("barb
// wire") and reports the direction of any breakout out of it.
type BarbWireFilter struct {
	Active         bool
	BarCount       int
	High, Low      float64
	breakoutDir    string
}

// Update re-evaluates the filter against the current closed-bar window.
func (f *BarbWireFilter) Update(w *bar.Window, atr float64) {
	n := w.Len()
	if atr <= 0 || n < barbWireMinBars+2 {
		f.Active = false
		return
	}

	last, ok := w.At(0)
	if !ok {
		f.Active = false
		return
	}
	rh, rl := last.High, last.Low

	small, doji, overlap := 0, 0, 0
	check := barbWireMinBars + 2
	for i := 1; i <= check; i++ {
		age := i - 1
		b, ok := w.At(age)
		if !ok {
			break
		}
		rng := b.High - b.Low
		body := absf(b.Close - b.Open)
		if rng <= 0 {
			continue
		}
		if b.High > rh {
			rh = b.High
		}
		if b.Low < rl {
			rl = b.Low
		}
		if rng < atr*barbWireRangeRatio || body/rng < barbWireBodyRatio {
			small++
		}
		if body/rng < 0.15 {
			doji++
		}
		if i > 1 {
			if prev, ok := w.At(age - 1); ok {
				ovH := minf(b.High, prev.High)
				ovL := maxf(b.Low, prev.Low)
				if ovH > ovL && rng > 0 && (ovH-ovL)/rng > 0.5 {
					overlap++
				}
			}
		}
	}

	totalRng := rh - rl
	highOverlap := totalRng < atr*1.5 || overlap >= barbWireMinBars-1

	if small >= barbWireMinBars && doji >= 1 && highOverlap {
		if !f.Active {
			f.Active = true
			f.BarCount = 0
			f.High, f.Low = rh, rl
		}
		f.BarCount++
		if last.High > f.High {
			f.High = last.High
		}
		if last.Low < f.Low {
			f.Low = last.Low
		}
		return
	}

	if f.Active {
		cr := last.High - last.Low
		cb := absf(last.Close - last.Open)
		strong := cr > atr*0.5 && cr > 0 && cb/cr > 0.5
		boUp := last.Close > f.High && strong && last.Close > last.Open
		boDown := last.Close < f.Low && strong && last.Close < last.Open
		switch {
		case boUp:
			f.breakoutDir = "up"
		case boDown:
			f.breakoutDir = "down"
		default:
			f.breakoutDir = ""
		}
		f.Active = false
		f.BarCount = 0
	} else {
		f.breakoutDir = ""
	}
}

// BreakoutDirection is "up", "down" or "" for the most recent bar's
// barb-wire breakout (only meaningful the bar the filter deactivates).
func (f *BarbWireFilter) BreakoutDirection() string { return f.breakoutDir }
