package market

import "github.com/evdnx/brooksfutures/bar"

const (
	// HLResetNewExtremeATR is the ATR multiple for the "significant new
	// extreme" reset condition.
	HLResetNewExtremeATR = 0.5
	// HLMinPullbackATR is the minimum intervening pullback/bounce depth,
	// in ATR units, required for a push to count.
	HLMinPullbackATR = 0.2
)

// HLCounter is the Brooks "push" counter: h-count tracks higher-high
// pushes above the prior swing high, l-count tracks lower-low pushes
// below the prior swing low.
type HLCounter struct {
	HCount            int
	hLastSwingHigh    float64
	hLastPullbackLow  float64
	hLastPullbackBar  int
	LCount            int
	lLastSwingLow     float64
	lLastBounceHigh   float64
	lLastBounceBar    int
}

// NewHLCounter returns a fresh, zeroed counter.
func NewHLCounter() *HLCounter { return &HLCounter{} }

// LastPullbackLow returns the low of the pullback that produced the
// current H-count, used by the H1/H2 detector to anchor its stop.
func (c *HLCounter) LastPullbackLow() float64 { return c.hLastPullbackLow }

// LastBounceHigh is the mirror of LastPullbackLow for the L-count.
func (c *HLCounter) LastBounceHigh() float64 { return c.lLastBounceHigh }

// Update applies one bar's worth of H/L push-counting logic. swings must
// already have been updated for the same bar.
func (c *HLCounter) Update(w *bar.Window, atr float64, swings *SwingTracker) {
	if w.Len() < 4 || atr <= 0 {
		return
	}
	sh1 := swings.RecentSwingHigh(1, false)
	sh2 := swings.RecentSwingHigh(2, false)
	sl1 := swings.RecentSwingLow(1, false)
	sl2 := swings.RecentSwingLow(2, false)

	last, ok := w.At(0)
	if !ok {
		return
	}
	h1, l1, o1, c1 := last.High, last.Low, last.Open, last.Close

	resetExtreme := atr * HLResetNewExtremeATR
	minPullback := atr * HLMinPullbackATR
	rng := h1 - l1
	rngSafe := rng
	if rngSafe <= 0 {
		rngSafe = 1e-10
	}

	strongRevDown := rng > atr*0.8 && c1 < o1 && (h1-c1)/rngSafe < 0.3
	strongRevUp := rng > atr*0.8 && c1 > o1 && (c1-l1)/rngSafe < 0.3

	// --- H count ---
	if sh1 > 0 && sh2 > 0 && sl1 > 0 {
		if h1 > sh1 && sl1 < sh2 && c.hLastSwingHigh < sh1 {
			pullbackDepth := sh2 - sl1
			if pullbackDepth >= minPullback {
				c.HCount++
				c.hLastSwingHigh = sh1
				c.hLastPullbackLow = sl1
				c.hLastPullbackBar = 1
			}
		}
		switch {
		case sl1 > 0 && sl2 > 0 && l1 < sl1 && sl1 < sl2:
			c.resetH()
		case sl1 > 0 && l1 < sl1-resetExtreme:
			c.resetH()
		case strongRevDown:
			c.resetH()
		}
	}

	// --- L count ---
	if sl1 > 0 && sl2 > 0 && sh1 > 0 {
		if l1 < sl1 && sh1 > sl2 && (c.lLastSwingLow == 0 || sl1 < c.lLastSwingLow) {
			bounceDepth := sh1 - sl2
			if bounceDepth >= minPullback {
				c.LCount++
				c.lLastSwingLow = sl1
				c.lLastBounceHigh = sh1
				c.lLastBounceBar = 1
			}
		}
		switch {
		case sh1 > 0 && sh2 > 0 && h1 > sh1 && sh1 > sh2:
			c.resetL()
		case sh1 > 0 && h1 > sh1+resetExtreme:
			c.resetL()
		case strongRevUp:
			c.resetL()
		}
	}
}

func (c *HLCounter) resetH() {
	c.HCount = 0
	c.hLastSwingHigh = 0
	c.hLastPullbackLow = 0
}

func (c *HLCounter) resetL() {
	c.LCount = 0
	c.lLastSwingLow = 0
	c.lLastBounceHigh = 0
}
