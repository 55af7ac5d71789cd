package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/market"
)

// PullbackState is the 4-state machine driving H2/L2 detection.
// CheckHLCount fires off market.HLCounter's push tally directly; this
// FSM is an independent, price-structure-only confirmation that
// CheckHLCount consults before honoring a fresh H2/L2 count.
type PullbackState uint8

const (
	WaitingForPullback PullbackState = iota
	InPullback
	H1Detected
	WaitingForH2
)

func (s PullbackState) String() string {
	switch s {
	case InPullback:
		return "InPullback"
	case H1Detected:
		return "H1Detected"
	case WaitingForH2:
		return "WaitingForH2"
	default:
		return "WaitingForPullback"
	}
}

// H2L2Machine tracks one direction's pullback/continuation cycle.
// isBuy selects H2 (close-below-EMA pullback, new-high continuation) vs.
// L2 (close-above-EMA pullback, new-low continuation).
type H2L2Machine struct {
	isBuy bool

	State          PullbackState
	PullbackStart  float64 // price level the pullback began from
	TrendExtreme   float64 // the trend-high (buy) / trend-low (sell) the pullback is retracing
	H1Extreme      float64 // the high (buy) / low (sell) that confirmed H1
	H1Fired        bool
	H2Fired        bool
}

// NewH2Machine returns a fresh buy-side (H1/H2) machine.
func NewH2Machine() *H2L2Machine { return &H2L2Machine{isBuy: true} }

// NewL2Machine returns a fresh sell-side (L1/L2) machine.
func NewL2Machine() *H2L2Machine { return &H2L2Machine{isBuy: false} }

func (m *H2L2Machine) reset() {
	m.State = WaitingForPullback
	m.PullbackStart = 0
	m.TrendExtreme = 0
	m.H1Extreme = 0
	m.H1Fired = false
	m.H2Fired = false
}

// Update advances the machine by one closed bar. allowH1 gates whether an
// H1/L1 hit is honored this bar (H1 is only emitted, optionally, when in
// StrongTrend); it does not gate H2/L2, which this machine always tracks
// once a qualifying pullback has started.
func (m *H2L2Machine) Update(w *bar.Window, emas *market.EMAHistory, state market.StateTracker, allowH1 bool) {
	last, ok := w.At(0)
	if !ok {
		return
	}
	ema, okE := emas.At(0)
	if !okE {
		return
	}

	switch m.State {
	case WaitingForPullback:
		pulledBack := (m.isBuy && last.Close < ema) || (!m.isBuy && last.Close > ema)
		if pulledBack {
			m.State = InPullback
			m.PullbackStart = last.Close
			if m.isBuy {
				m.TrendExtreme = last.High
			} else {
				m.TrendExtreme = last.Low
			}
			m.H1Fired, m.H2Fired = false, false
		}

	case InPullback:
		// An outside-bar violation of the pullback start that also makes a
		// new extreme in the pullback direction is a failure reset, not a
		// continuation.
		violated := (m.isBuy && last.Low < m.PullbackStart) || (!m.isBuy && last.High > m.PullbackStart)
		madeNewExtreme := (m.isBuy && last.High > m.TrendExtreme) || (!m.isBuy && last.Low < m.TrendExtreme)
		if violated && madeNewExtreme {
			m.reset()
			return
		}
		if violated {
			m.reset()
			return
		}
		newExtreme := (m.isBuy && last.High > m.TrendExtreme) || (!m.isBuy && last.Low < m.TrendExtreme)
		if newExtreme && allowH1 {
			m.State = H1Detected
			m.H1Fired = true
			if m.isBuy {
				m.H1Extreme = last.High
			} else {
				m.H1Extreme = last.Low
			}
		}

	case H1Detected:
		startingNewPullback := (m.isBuy && last.Close < ema) || (!m.isBuy && last.Close > ema)
		if startingNewPullback {
			m.State = WaitingForH2
			m.PullbackStart = last.Close
		}

	case WaitingForH2:
		brokeBelowStart := (m.isBuy && last.Low < m.PullbackStart) || (!m.isBuy && last.High > m.PullbackStart)
		if brokeBelowStart {
			m.reset()
			return
		}
		secondLeg := (m.isBuy && last.High > m.H1Extreme) || (!m.isBuy && last.Low < m.H1Extreme)
		if secondLeg {
			m.H2Fired = true
			m.State = WaitingForPullback
			m.PullbackStart = 0
		}
	}
}

// ReadyForH1 reports whether this bar's close is eligible to confirm an
// H1/L1 signal (the machine just transitioned into H1Detected).
func (m *H2L2Machine) ReadyForH1() bool { return m.State == H1Detected && m.H1Fired }

// ReadyForH2 reports whether this bar just completed the second pullback
// leg (H2/L2 confirmation).
func (m *H2L2Machine) ReadyForH2() bool { return m.H2Fired }
