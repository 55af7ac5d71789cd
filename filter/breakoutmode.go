package filter

import "github.com/evdnx/brooksfutures/bar"

const breakoutModeBars = 5

// BreakoutModeTracker tracks a short post-breakout window: the breakout
// direction, its entry level and the running extreme, for
// breakoutModeBars bars. Signal-bar validation and stop placement do not
// read it.
type BreakoutModeTracker struct {
	Active    bool
	Direction string
	BarCount  int
	Entry     float64
	Extreme   float64
}

// Activate starts (or restarts) breakout mode.
func (t *BreakoutModeTracker) Activate(direction string, entry, extreme float64) {
	t.Active = true
	t.Direction = direction
	t.BarCount = 0
	t.Entry = entry
	t.Extreme = extreme
}

// Tick advances the window by one bar, tracking the running extreme,
// and deactivates once breakoutModeBars have elapsed.
func (t *BreakoutModeTracker) Tick(w *bar.Window) {
	if !t.Active {
		return
	}
	t.BarCount++
	last, ok := w.At(0)
	if ok {
		if t.Direction == "up" && last.High > t.Extreme {
			t.Extreme = last.High
		}
		if t.Direction == "down" && last.Low < t.Extreme {
			t.Extreme = last.Low
		}
	}
	if t.BarCount >= breakoutModeBars {
		t.Active = false
	}
}
