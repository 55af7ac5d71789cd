// Package pattern implements the seventeen Al Brooks price-action signal
// detectors, scanned in a fixed priority order per direction by Scan.
// Each detector is a one-function-per-pattern check following a
// bar-indexing convention where bar 1 is the most recently closed bar,
// preserved here via bar.Window.At's age indexing.
package pattern

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/filter"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

// MaxStopATRMult hard-caps the distance between entry and stop for every
// detector.
const MaxStopATRMult = 3.0

// Direction is the scan direction requested by the orchestrator.
type Direction int8

const (
	Long  Direction = 1
	Short Direction = -1
)

// Side maps a scan direction to an order side.
func (d Direction) Side() types.Side {
	if d == Long {
		return types.Buy
	}
	return types.Sell
}

// Signal names every distinct pattern x side combination.
type Signal int

const (
	NoSignal Signal = iota
	SpikeBuy
	SpikeSell
	H1Buy
	H2Buy
	L1Sell
	L2Sell
	MicroChannelBuy
	MicroChannelSell
	DoubleTopBottomBuy
	DoubleTopBottomSell
	TrendBarBuy
	TrendBarSell
	ReversalBarBuy
	ReversalBarSell
	IIBuy
	IISell
	OutsideBarBuy
	OutsideBarSell
	MeasuredMoveBuy
	MeasuredMoveSell
	TRBreakoutBuy
	TRBreakoutSell
	BreakoutPullbackBuy
	BreakoutPullbackSell
	GapBarBuy
	GapBarSell
	WedgeBuy
	WedgeSell
	ClimaxBuy
	ClimaxSell
	MTRBuy
	MTRSell
	FailedBreakoutBuy
	FailedBreakoutSell
	FinalFlagBuy
	FinalFlagSell
)

var signalNames = map[Signal]string{
	SpikeBuy: "Spike_Buy", SpikeSell: "Spike_Sell",
	H1Buy: "H1_Buy", H2Buy: "H2_Buy", L1Sell: "L1_Sell", L2Sell: "L2_Sell",
	MicroChannelBuy: "MicroCH_Buy", MicroChannelSell: "MicroCH_Sell",
	DoubleTopBottomBuy: "DT_Buy", DoubleTopBottomSell: "DT_Sell",
	TrendBarBuy: "TrendBar_Buy", TrendBarSell: "TrendBar_Sell",
	ReversalBarBuy: "RevBar_Buy", ReversalBarSell: "RevBar_Sell",
	IIBuy: "II_Buy", IISell: "II_Sell",
	OutsideBarBuy: "OutsideBar_Buy", OutsideBarSell: "OutsideBar_Sell",
	MeasuredMoveBuy: "MM_Buy", MeasuredMoveSell: "MM_Sell",
	TRBreakoutBuy: "TRBreakout_Buy", TRBreakoutSell: "TRBreakout_Sell",
	BreakoutPullbackBuy: "BOPullback_Buy", BreakoutPullbackSell: "BOPullback_Sell",
	GapBarBuy: "GapBar_Buy", GapBarSell: "GapBar_Sell",
	WedgeBuy: "Wedge_Buy", WedgeSell: "Wedge_Sell",
	ClimaxBuy: "Climax_Buy", ClimaxSell: "Climax_Sell",
	MTRBuy: "MTR_Buy", MTRSell: "MTR_Sell",
	FailedBreakoutBuy: "FailedBreakout_Buy", FailedBreakoutSell: "FailedBreakout_Sell",
	FinalFlagBuy: "FinalFlag_Buy", FinalFlagSell: "FinalFlag_Sell",
}

func (s Signal) String() string {
	if n, ok := signalNames[s]; ok {
		return n
	}
	return "None"
}

// Side reports the order side a signal belongs to, used by Scan to
// discard hits that fired on the wrong side of a shared detector.
func (s Signal) Side() types.Side {
	switch s {
	case SpikeSell, L1Sell, L2Sell, MicroChannelSell, DoubleTopBottomSell,
		TrendBarSell, ReversalBarSell, IISell, OutsideBarSell, MeasuredMoveSell,
		TRBreakoutSell, BreakoutPullbackSell, GapBarSell, WedgeSell, ClimaxSell,
		MTRSell, FailedBreakoutSell, FinalFlagSell:
		return types.Sell
	default:
		return types.Buy
	}
}

// Result is what a detector returns on a hit. Detectors set Entry to the
// signal bar's close; for everything but Spike-family signals the
// orchestrator rewrites it to the signal bar's high (buy) or low (sell)
// before the signal is emitted.
type Result struct {
	Signal    Signal
	Direction Direction
	Entry     float64
	Stop      float64
	Reason    string
}

// BreakoutState is the scratch state a confirmed TRBreakout leaves behind
// for BreakoutPullback to consume a few bars later.
type BreakoutState struct {
	Active    bool
	Direction string // "up" or "down"
	Level     float64
	BarAge    int
}

// Tick ages the breakout window by one bar; call once per closed bar
// before scanning.
func (b *BreakoutState) Tick() {
	if b.Active {
		b.BarAge++
	}
}

// Context bundles the read-only state every detector needs.
type Context struct {
	Swings   *market.SwingTracker
	HL       *market.HLCounter
	MState   *market.StateTracker
	Cooldown *filter.SignalCooldownTracker
	Gap20    *filter.GapBar20Rule
	HTF      *filter.HTFFilter
	EMAs     *market.EMAHistory

	// H1Machine/L1Machine independently confirm the H1/H2 and L1/L2 push
	// sequence from price structure alone, gating
	// CheckHLCount's push-counter hits.
	H1Machine *H2L2Machine
	L1Machine *H2L2Machine

	// TrendLineBroken is set by the orchestrator from
	// its simplified trend-line tracker: swing pairs stand in for a
	// tracked trend line.
	TrendLineBroken bool

	Breakout BreakoutState
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// validateAndCool runs the shared signal-bar-validation + cooldown gate
// used by most detectors.
func validateAndCool(side types.Side, w *bar.Window, atr float64, ctx *Context) bool {
	last, ok := w.At(0)
	if !ok {
		return false
	}
	relaxed := ctx.MState.State == market.StateTradingRange
	if !filter.ValidateSignalBar(last.Open, last.High, last.Low, last.Close, side, relaxed) {
		return false
	}
	return ctx.Cooldown.Check(w, side, last.Close, atr)
}
