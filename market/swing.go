// Package market implements the swing tracker, H/L push counter and
// market-state classifier: the trackers the orchestrator owns and
// updates once per closed bar.
package market

import "github.com/evdnx/brooksfutures/bar"

const (
	// ConfirmDepth is the symmetric bar count required to confirm a
	// swing pivot.
	ConfirmDepth = 3
	// TempDepth is the shallower, lower-latency pivot used for stops.
	TempDepth = 1
	// MaxSwingAge evicts points once they have aged past this many bars.
	MaxSwingAge = 40
	// MaxSwingPoints caps retained points.
	MaxSwingPoints = 40
)

// SwingPoint is a confirmed local extremum.
type SwingPoint struct {
	Price  float64
	Age    int
	IsHigh bool
}

// SwingTracker maintains confirmed (depth-3) and temporary (depth-1)
// pivots plus O(1)-lookup caches of the two most recent highs/lows.
type SwingTracker struct {
	points []SwingPoint // newest first

	cachedSH1, cachedSH2 float64
	cachedSL1, cachedSL2 float64

	tempHigh, tempLow float64
}

// NewSwingTracker returns an empty tracker.
func NewSwingTracker() *SwingTracker { return &SwingTracker{} }

// Update ages existing points, prunes expired ones, and looks for a new
// confirmed and/or temporary pivot now that w has a fresh closed bar.
func (t *SwingTracker) Update(w *bar.Window) {
	for i := range t.points {
		t.points[i].Age++
	}
	kept := t.points[:0]
	for _, p := range t.points {
		if p.Age <= MaxSwingAge {
			kept = append(kept, p)
		}
	}
	t.points = kept

	if high, low, ok := detectPivot(w, TempDepth); ok {
		if high.detected {
			t.tempHigh = high.price
		}
		if low.detected {
			t.tempLow = low.price
		}
	}

	if high, low, ok := detectPivot(w, ConfirmDepth); ok {
		if high.detected {
			t.add(SwingPoint{Price: high.price, Age: ConfirmDepth, IsHigh: true})
		}
		if low.detected {
			t.add(SwingPoint{Price: low.price, Age: ConfirmDepth, IsHigh: false})
		}
	}
}

type pivotSide struct {
	detected bool
	price    float64
}

// detectPivot looks for a bar exactly `depth` ages back whose high (resp.
// low) is strictly more extreme than the `depth` newer and `depth` older
// bars around it.
func detectPivot(w *bar.Window, depth int) (pivotSide, pivotSide, bool) {
	center, ok := w.At(depth)
	if !ok {
		return pivotSide{}, pivotSide{}, false
	}

	isHigh, isLow := true, true
	for i := 1; i <= depth; i++ {
		newer, ok1 := w.At(depth - i)
		older, ok2 := w.At(depth + i)
		if !ok1 || !ok2 {
			return pivotSide{}, pivotSide{}, false
		}
		if newer.High >= center.High || older.High >= center.High {
			isHigh = false
		}
		if newer.Low <= center.Low || older.Low <= center.Low {
			isLow = false
		}
	}
	return pivotSide{detected: isHigh, price: center.High},
		pivotSide{detected: isLow, price: center.Low},
		true
}

func (t *SwingTracker) add(p SwingPoint) {
	if len(t.points) >= MaxSwingPoints {
		t.points = t.points[:len(t.points)-1]
	}
	t.points = append([]SwingPoint{p}, t.points...)
	t.refreshCache()
}

func (t *SwingTracker) refreshCache() {
	t.cachedSH1, t.cachedSH2 = 0, 0
	t.cachedSL1, t.cachedSL2 = 0, 0
	shSeen, slSeen := 0, 0
	for _, p := range t.points {
		if shSeen >= 2 && slSeen >= 2 {
			break
		}
		if p.IsHigh && shSeen < 2 {
			if shSeen == 0 {
				t.cachedSH1 = p.Price
			} else {
				t.cachedSH2 = p.Price
			}
			shSeen++
		} else if !p.IsHigh && slSeen < 2 {
			if slSeen == 0 {
				t.cachedSL1 = p.Price
			} else {
				t.cachedSL2 = p.Price
			}
			slSeen++
		}
	}
}

// RecentSwingHigh returns the nth most recent confirmed swing high
// (nth=1 or 2). When allowTemp is set and nth==1, the depth-1 temporary
// pivot is used as a fallback if no confirmed high is cached yet.
func (t *SwingTracker) RecentSwingHigh(nth int, allowTemp bool) float64 {
	switch nth {
	case 1:
		if t.cachedSH1 > 0 {
			return t.cachedSH1
		}
		if allowTemp && t.tempHigh > 0 {
			return t.tempHigh
		}
		return 0
	case 2:
		return t.cachedSH2
	default:
		return 0
	}
}

// RecentSwingLow is the mirror of RecentSwingHigh.
func (t *SwingTracker) RecentSwingLow(nth int, allowTemp bool) float64 {
	switch nth {
	case 1:
		if t.cachedSL1 > 0 {
			return t.cachedSL1
		}
		if allowTemp && t.tempLow > 0 {
			return t.tempLow
		}
		return 0
	case 2:
		return t.cachedSL2
	default:
		return 0
	}
}

// Points returns the currently retained confirmed swing points, newest first.
func (t *SwingTracker) Points() []SwingPoint {
	out := make([]SwingPoint, len(t.points))
	copy(out, t.points)
	return out
}
