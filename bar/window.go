package bar

// MaxHistory bounds the retained closed-bar history: the window stays
// contiguous and duplicate-free with at most this many bars retained.
const MaxHistory = 500

// Window is a rolling, de-duplicated, gap-checked history of closed bars.
// It is the analysis timeline: the orchestrator only ever looks at bars that
// have been appended here, never at a forming bar.
type Window struct {
	bars []Bar
	max  int
}

// NewWindow creates a window retaining at most max bars (MaxHistory if max<=0).
func NewWindow(max int) *Window {
	if max <= 0 {
		max = MaxHistory
	}
	return &Window{max: max}
}

// Append adds a new closed bar. Bars with an OpenTime at or before the
// current last bar are ignored as duplicate or out-of-order data.
func (w *Window) Append(b Bar) bool {
	if n := len(w.bars); n > 0 && b.OpenTime <= w.bars[n-1].OpenTime {
		return false
	}
	w.bars = append(w.bars, b)
	if len(w.bars) > w.max {
		w.bars = w.bars[len(w.bars)-w.max:]
	}
	return true
}

// Len returns the number of retained bars.
func (w *Window) Len() int { return len(w.bars) }

// Last returns the most recently closed bar (the "signal bar" candidate).
// ok is false on an empty window.
func (w *Window) Last() (Bar, bool) {
	if len(w.bars) == 0 {
		return Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}

// At returns the bar `age` closed bars back from the most recent one (age=0
// is the last bar, age=1 is the one before it, ...). ok is false if the
// window does not hold enough history.
func (w *Window) At(age int) (Bar, bool) {
	idx := len(w.bars) - 1 - age
	if idx < 0 || idx >= len(w.bars) {
		return Bar{}, false
	}
	return w.bars[idx], true
}

// Tail returns the last n bars, oldest first. If fewer than n are available
// it returns everything it has.
func (w *Window) Tail(n int) []Bar {
	if n <= 0 || len(w.bars) == 0 {
		return nil
	}
	if n > len(w.bars) {
		n = len(w.bars)
	}
	out := make([]Bar, n)
	copy(out, w.bars[len(w.bars)-n:])
	return out
}

// LastOpenTime returns the open-time of the most recent bar, or -1 if empty.
// Used by the bar producer to request a gap-repair refetch starting here.
func (w *Window) LastOpenTime() int64 {
	if len(w.bars) == 0 {
		return -1
	}
	return w.bars[len(w.bars)-1].OpenTime
}

// Closes returns the close prices of the last n bars, oldest first.
func (w *Window) Closes(n int) []float64 {
	tail := w.Tail(n)
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = b.Close
	}
	return out
}
