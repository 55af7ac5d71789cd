// Package engine wires the indicator, swing, H/L, market-state, filter,
// pattern and risk packages into a single per-bar pipeline.
package engine

import (
	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/config"
	"github.com/evdnx/brooksfutures/delta"
	"github.com/evdnx/brooksfutures/filter"
	"github.com/evdnx/brooksfutures/indicator"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/pattern"
	"github.com/evdnx/brooksfutures/risk"
	"github.com/evdnx/brooksfutures/types"
)

// MinEffectiveStrengthATRMult floors the modifier-adjusted signal
// strength (body size x delta modifier x HTF modifier x OBI modifier x
// trend modifier): below this multiple of ATR a signal is withheld even
// though no single modifier hit
// zero, so a combination of weak-but-nonzero modifiers still vetoes the
// signal outright.
const MinEffectiveStrengthATRMult = 0.15

// trendConfirmedBoost rewards a signal whose Hull moving average just
// crossed in the same direction, the same soft multiplicative role
// htfModifier and obiModifier already play.
const trendConfirmedBoost = 1.1

// Signal is the one value the orchestrator hands upward per bar. It
// carries no order quantity: sizing is a per-user decision made
// downstream from each account's own balance.
type Signal struct {
	Symbol        string
	Side          types.Side
	Price         float64
	IsSpike       bool
	Stop          float64
	TP1           float64
	TP2           float64
	TP1CloseRatio float64
	Strength      float64
	MarketState   string
	State         market.MarketState
	Pattern       string
	IsClimaxBar   bool
}

// Orchestrator owns every indicator/swing/H-L/market-state/filter/H2L2
// instance for one symbol and runs the per-closed-bar pipeline,
// producing at most one Signal.
type Orchestrator struct {
	symbol string
	cfg    config.StrategyConfig

	window *bar.Window
	ema    *indicator.EMA
	atr    *indicator.ATR
	emas   *market.EMAHistory

	swings *market.SwingTracker
	hl     *market.HLCounter
	state  *market.StateTracker

	cooldown     *filter.SignalCooldownTracker
	gap20        *filter.GapBar20Rule
	htf          *filter.HTFFilter
	spread       *filter.SpreadFilter
	barbwire     *filter.BarbWireFilter
	measuringGap *filter.MeasuringGapTracker
	breakoutMode *filter.BreakoutModeTracker
	obi          *filter.OBITracker
	lastOBI      filter.OBISnapshot

	h1Machine *pattern.H2L2Machine
	l1Machine *pattern.H2L2Machine
	ctx       *pattern.Context

	delta *delta.Engine

	defaultRR risk.RRRatio
}

// New returns an orchestrator for symbol, sharing deltaEngine with the
// stream package's delta aggregator task.
func New(symbol string, cfg config.StrategyConfig, deltaEngine *delta.Engine) *Orchestrator {
	swings := market.NewSwingTracker()
	hl := market.NewHLCounter()
	cooldown := filter.NewSignalCooldownTracker()

	o := &Orchestrator{
		symbol:       symbol,
		cfg:          cfg,
		window:       bar.NewWindow(500),
		ema:          indicator.NewEMA(cfg.EMAPeriod),
		atr:          indicator.NewATR(cfg.ATRPeriod),
		emas:         market.NewEMAHistory(500),
		swings:       swings,
		hl:           hl,
		state:        market.NewStateTracker(),
		cooldown:     cooldown,
		gap20:        &filter.GapBar20Rule{},
		htf:          &filter.HTFFilter{},
		spread:       &filter.SpreadFilter{},
		barbwire:     &filter.BarbWireFilter{},
		measuringGap: &filter.MeasuringGapTracker{},
		breakoutMode: &filter.BreakoutModeTracker{},
		obi:          &filter.OBITracker{},
		h1Machine:    pattern.NewH2Machine(),
		l1Machine:    pattern.NewL2Machine(),
		delta:        deltaEngine,
		defaultRR:    risk.RRRatio{TP1R: 1.0, TP2R: 2.0},
	}
	o.ctx = &pattern.Context{
		Swings:    swings,
		HL:        hl,
		MState:    o.state,
		Cooldown:  cooldown,
		Gap20:     o.gap20,
		HTF:       o.htf,
		EMAs:      o.emas,
		H1Machine: o.h1Machine,
		L1Machine: o.l1Machine,
	}
	return o
}

// HTFFilter exposes the shared higher-timeframe filter instance so the
// stream package's HTF poller task can refresh it.
func (o *Orchestrator) HTFFilter() *filter.HTFFilter { return o.htf }

// DeltaEngine exposes the shared delta engine so the stream package's
// aggregator task can feed it trades.
func (o *Orchestrator) DeltaEngine() *delta.Engine { return o.delta }

// OBITracker exposes the shared order-book-imbalance tracker so the
// stream package's OBI worker task can feed it directly from the depth
// stream, the same sharing pattern as HTFFilter.
func (o *Orchestrator) OBITracker() *filter.OBITracker { return o.obi }

// SetOBISnapshot records the OBI worker's latest computed snapshot for
// use as a signal modifier on the next OnBar.
// It does not recompute the snapshot itself: the tracker already did
// that once, in the OBI worker's own goroutine.
func (o *Orchestrator) SetOBISnapshot(snap filter.OBISnapshot) {
	o.lastOBI = snap
}

// UpdateSpread records a new bid/ask spread sample.
func (o *Orchestrator) UpdateSpread(spread float64) {
	o.spread.Update(spread)
}

func (o *Orchestrator) updateTrendLine() {
	last, ok := o.window.At(0)
	if !ok {
		o.ctx.TrendLineBroken = false
		return
	}
	switch o.state.AlwaysIn {
	case market.AlwaysInLong:
		sl := o.swings.RecentSwingLow(1, false)
		o.ctx.TrendLineBroken = sl > 0 && last.Close < sl
	case market.AlwaysInShort:
		sh := o.swings.RecentSwingHigh(1, false)
		o.ctx.TrendLineBroken = sh > 0 && last.Close > sh
	default:
		o.ctx.TrendLineBroken = false
	}
}

// OnBar runs the full A-I-scan-emit pipeline for one newly closed bar
// and returns the resulting signal, or nil if nothing cleared every
// gate.
func (o *Orchestrator) OnBar(b bar.Bar) *Signal {
	// A duplicate or out-of-order bar is skipped for signal purposes
	//: EMAHistory.Append must run in lockstep with a real
	// bar.Window.Append, never once per call.
	if !o.window.Append(b) {
		return nil
	}

	// Step 1: indicators, swings, H/L, market-state, 20-Gap, BarbWire,
	// MeasuringGap, BreakoutMode, trend-line, breakout-pullback, in order.
	o.ema.Update(b.Close)
	atr := o.atr.Update(b.High, b.Low, b.Close)
	o.emas.Append(o.ema.Value())

	o.swings.Update(o.window)
	o.hl.Update(o.window, atr, o.swings)
	o.state.Update(o.window, o.emas, atr, o.swings)
	o.gap20.Update(o.window, o.emas, atr)
	o.barbwire.Update(o.window, atr)
	o.measuringGap.Update(o.window, atr)
	o.breakoutMode.Tick(o.window)
	o.cooldown.Tick()
	o.updateTrendLine()

	h1State := *o.state
	o.h1Machine.Update(o.window, o.emas, h1State, true)
	o.l1Machine.Update(o.window, o.emas, h1State, true)

	if atr <= 0 || o.window.Len() < 12 {
		return nil
	}

	// Step 2: BarbWire veto.
	if o.barbwire.Active {
		return nil
	}

	// Step 3: TTR flag.
	isTTR := o.state.IsTTR(o.window, atr)

	// Step 4: scan.
	result := pattern.Scan(o.window, atr, isTTR, o.ctx)
	if result == nil {
		return nil
	}
	if o.gap20.CheckBlock(result.Signal.String()) {
		return nil
	}

	// Step 5: spread veto.
	if o.spread.Active {
		return nil
	}

	side := result.Direction.Side()
	entry := result.Entry
	isSpike := result.Signal == pattern.SpikeBuy || result.Signal == pattern.SpikeSell

	// Step 6: unified stop and take-profit table.
	last, _ := o.window.At(0)
	prev, _ := o.window.At(1)
	stop := risk.UnifiedStopLoss(side, atr, entry, o.state.State, o.swings, last.High, last.Low, prev.High, prev.Low, o.spread.Current)
	if stop == 0 {
		stop = result.Stop
	}
	if stop == 0 {
		return nil
	}

	var baseHeight float64
	if o.measuringGap.HasGap && o.measuringGap.Gap.IsValid {
		baseHeight = absf(o.measuringGap.Gap.GapHigh - o.measuringGap.Gap.GapLow)
	}
	plan := risk.CalculateTakeProfits(entry, stop, side, baseHeight, result.Signal.String(), o.defaultRR, o.state.State, o.window)

	// Step 7: rewrite entry to the signal bar's extremum for non-Spike signals.
	if !isSpike {
		if side == types.Buy {
			entry = last.High
		} else {
			entry = last.Low
		}
	}

	// Step 8: modifiers.
	priceChangePct := 0.0
	if prevClose, ok := o.window.At(1); ok && prevClose.Close != 0 {
		priceChangePct = (last.Close - prevClose.Close) / prevClose.Close * 100
	}
	deltaModifier := 1.0
	if o.delta != nil {
		snap := o.delta.Snapshot(last.OpenTime)
		deltaModifier, _ = delta.SignalModifier(snap, side, priceChangePct)
		if result.Signal == pattern.WedgeBuy {
			boost, _ := delta.WedgeBuyDeltaBoost(snap)
			deltaModifier *= boost
		}
	}
	htfModifier := o.htf.SignalModifier(side)
	obiModifier := o.lastOBI.SignalModifier(side == types.Buy)
	trendModifier := 1.0
	if o.ema.TrendConfirmed(side == types.Buy) {
		trendModifier = trendConfirmedBoost
	}

	if deltaModifier <= 0 || htfModifier <= 0 {
		return nil
	}

	strength := last.BodySize() * deltaModifier * htfModifier * obiModifier * trendModifier
	if strength < MinEffectiveStrengthATRMult*atr {
		return nil
	}

	// Step 9: record cooldown, return signal.
	o.cooldown.Record(side, last.Close)

	if side == types.Buy && o.barbwire.BreakoutDirection() == "up" {
		o.breakoutMode.Activate("up", entry, last.High)
	} else if side == types.Sell && o.barbwire.BreakoutDirection() == "down" {
		o.breakoutMode.Activate("down", entry, last.Low)
	}

	return &Signal{
		Symbol:        o.symbol,
		Side:          side,
		Price:         entry,
		IsSpike:       isSpike,
		Stop:          stop,
		TP1:           plan.TP1,
		TP2:           plan.TP2,
		TP1CloseRatio: plan.TP1CloseRatio,
		Strength:      strength,
		MarketState:   o.state.State.String(),
		State:         o.state.State,
		Pattern:       result.Signal.String(),
		IsClimaxBar:   plan.IsClimax,
	}
}

// ATR returns the current ATR reading, used by callers that need it for
// reconciliation or structural-stop evaluation outside OnBar.
func (o *Orchestrator) ATR() float64 { return o.atr.Value() }

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
