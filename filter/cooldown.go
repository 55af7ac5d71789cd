package filter

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/types"
)

const signalCooldownBars = 3

// SignalCooldownTracker enforces a minimum bar gap between same-side
// signals, unless the market has since ranged far enough to make a
// repeat entry a genuinely new opportunity.
type SignalCooldownTracker struct {
	lastBuyBar, lastSellBar     int
	lastBuyPrice, lastSellPrice float64
	barCounter                  int
}

// NewSignalCooldownTracker returns a tracker with no prior signals recorded.
func NewSignalCooldownTracker() *SignalCooldownTracker {
	return &SignalCooldownTracker{lastBuyBar: -999, lastSellBar: -999}
}

// Tick advances the bar counter; call once per closed bar.
func (c *SignalCooldownTracker) Tick() {
	c.barCounter++
}

// Check reports whether a new signal on the given side is allowed right now.
func (c *SignalCooldownTracker) Check(w *bar.Window, side types.Side, currentPrice, atr float64) bool {
	lastBar, lastPrice := c.lastBuyBar, c.lastBuyPrice
	if side == types.Sell {
		lastBar, lastPrice = c.lastSellBar, c.lastSellPrice
	}

	if c.barCounter-lastBar < signalCooldownBars {
		return false
	}
	if lastPrice <= 0 || atr <= 0 {
		return true
	}

	var diff float64
	if side == types.Buy {
		diff = absf(currentPrice - lastPrice)
	} else {
		diff = absf(lastPrice - currentPrice)
	}
	if diff >= atr*1.5 {
		return true
	}

	last, ok := w.At(0)
	if !ok {
		return true
	}
	rh, rl := last.High, last.Low
	n := w.Len()
	cb := signalCooldownBars + 2
	if cb > n-1 {
		cb = n - 1
	}
	for i := 2; i <= cb; i++ {
		b, ok := w.At(i - 1)
		if !ok {
			break
		}
		if b.High > rh {
			rh = b.High
		}
		if b.Low < rl {
			rl = b.Low
		}
	}
	return rh-rl >= atr*2.0
}

// Record marks that a signal just fired on the given side.
func (c *SignalCooldownTracker) Record(side types.Side, price float64) {
	if side == types.Buy {
		c.lastBuyBar, c.lastBuyPrice = c.barCounter, price
	} else {
		c.lastSellBar, c.lastSellPrice = c.barCounter, price
	}
}
