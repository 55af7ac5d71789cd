// Package backtest replays a closed historical bar series through the
// same engine.Orchestrator and position.Manager lifecycle the live
// runner uses, simulating fills at the signal price instead of placing
// real orders, and scores the run against the handful of objectives a
// parameter search optimizes for. The lifecycle math itself reuses
// package position unchanged rather than re-deriving it.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/evdnx/brooksfutures/bar"
	"github.com/evdnx/brooksfutures/config"
	"github.com/evdnx/brooksfutures/delta"
	"github.com/evdnx/brooksfutures/engine"
	"github.com/evdnx/brooksfutures/position"
	"github.com/evdnx/brooksfutures/risk"
	"github.com/evdnx/brooksfutures/types"
)

// simUser is the fixed account name the lifecycle manager tracks; a
// backtest only ever carries one position at a time, with no
// portfolio-level concurrency in the historical replay.
const simUser = "backtest"

// Config is everything one backtest run needs: symbol, interval, the
// replay window, starting capital, leverage, and an optional stop
// override.
type Config struct {
	Symbol         string
	Interval       string
	InitialCapital float64
	Leverage       int
	// SLATRMult overrides Strategy.MaxStopATRMult when positive, letting
	// the CLI tune the hard stop cap without editing every other
	// threshold.
	SLATRMult float64
	Strategy  config.StrategyConfig
}

// Trade is one completed simulated trade.
type Trade struct {
	Pattern    string
	Side       types.Side
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	PnL        float64
	ExitStage  string
	OpenTime   int64
	CloseTime  int64
}

// Result is the scored summary of a backtest run.
type Result struct {
	Trades         []Trade
	FinalEquity    float64
	TotalPnL       float64
	TotalPnLPct    float64
	WinRate        float64
	ProfitFactor   float64
	Sharpe         float64
}

// Objective returns the value of one of the five named scoring
// functions the grid search ranks runs by.
func (r *Result) Objective(name string) (float64, error) {
	switch name {
	case "sharpe":
		return r.Sharpe, nil
	case "win_rate":
		return r.WinRate, nil
	case "total_pnl":
		return r.TotalPnL, nil
	case "total_pnl_pct":
		return r.TotalPnLPct, nil
	case "profit_factor":
		return r.ProfitFactor, nil
	default:
		return 0, fmt.Errorf("backtest: unknown objective %q", name)
	}
}

// Run replays bars (oldest first, already closed) through a fresh
// orchestrator and lifecycle manager, simulating one fill per accepted
// signal at the signal's entry price (no slippage/partial-fill model;
// order-execution realism is deliberately out of scope for the core).
func Run(bars []bar.Bar, cfg Config) *Result {
	strat := cfg.Strategy
	if cfg.SLATRMult > 0 {
		strat.MaxStopATRMult = cfg.SLATRMult
	}

	windowSeconds := int64(300)
	if iv := intervalSeconds(cfg.Interval); iv > 0 {
		windowSeconds = iv
	}
	orch := engine.New(cfg.Symbol, strat, delta.NewEngine(windowSeconds))

	positions := position.NewManager(nil)
	sizer := risk.DefaultSizePolicy{StepSize: 0.001, MinQty: 0.001}

	equity := cfg.InitialCapital
	barMinutes := int(windowSeconds / 60)
	if barMinutes < 1 {
		barMinutes = 1
	}

	var trades []Trade
	var openedAt int64
	var pattern string

	for _, b := range bars {
		if t := positions.Get(simUser); t != nil {
			ev := positions.Evaluate(simUser, b.High, b.Low, b.Close, barMinutes)
			if ev != nil {
				pnl := signedPnL(t.Side, t.EntryPrice, ev.Price, ev.CloseQty)
				equity += pnl
				trades = append(trades, Trade{
					Pattern: pattern, Side: t.Side, EntryPrice: t.EntryPrice,
					ExitPrice: ev.Price, Qty: ev.CloseQty, PnL: pnl,
					ExitStage: ev.Stage, OpenTime: openedAt, CloseTime: b.OpenTime,
				})
			}
		}

		sig := orch.OnBar(b)
		if sig == nil {
			continue
		}
		if t := positions.Get(simUser); t != nil {
			if t.Side == sig.Side {
				continue
			}
			if !positions.ReversalAllowed(simUser, sig.Side, sig.Strength, sig.State) {
				continue
			}
			// Force-close the existing trade at the new signal's price
			// before reversing.
			pnl := signedPnL(t.Side, t.EntryPrice, sig.Price, t.Quantity)
			equity += pnl
			trades = append(trades, Trade{
				Pattern: pattern, Side: t.Side, EntryPrice: t.EntryPrice,
				ExitPrice: sig.Price, Qty: t.Quantity, PnL: pnl,
				ExitStage: "reversed", OpenTime: openedAt, CloseTime: b.OpenTime,
			})
			positions.Close(simUser)
		}

		if positions.IsCoolingDown(simUser, time.Now()) {
			continue
		}
		qty := sizer.Size(equity, strat.PositionSizePercent, cfg.Leverage, sig.Price)
		if qty <= 0 {
			continue
		}
		positions.Open(&position.TradeRecord{
			User: simUser, Symbol: cfg.Symbol, Signal: sig.Pattern, Side: sig.Side,
			EntryPrice: sig.Price, Quantity: qty, EffectiveStop: sig.Stop,
			TP1: sig.TP1, TP2: sig.TP2, TP1CloseRatio: sig.TP1CloseRatio,
			SignalStrength: sig.Strength, MarketState: sig.MarketState, IsClimaxBar: sig.IsClimaxBar,
		})
		openedAt = b.OpenTime
		pattern = sig.Pattern
	}

	return summarize(trades, cfg.InitialCapital, equity)
}

func signedPnL(side types.Side, entry, exit, qty float64) float64 {
	if side == types.Buy {
		return (exit - entry) * qty
	}
	return (entry - exit) * qty
}

func intervalSeconds(interval string) int64 {
	switch interval {
	case "1m":
		return 60
	case "3m":
		return 180
	case "5m":
		return 300
	case "15m":
		return 900
	case "30m":
		return 1800
	case "1h":
		return 3600
	case "4h":
		return 14400
	case "1d":
		return 86400
	default:
		return 0
	}
}

func summarize(trades []Trade, initialCapital, finalEquity float64) *Result {
	r := &Result{Trades: trades, FinalEquity: finalEquity}
	if initialCapital > 0 {
		r.TotalPnL = finalEquity - initialCapital
		r.TotalPnLPct = r.TotalPnL / initialCapital * 100
	}
	if len(trades) == 0 {
		return r
	}

	var wins, grossProfit, grossLoss float64
	returns := make([]float64, 0, len(trades))
	basis := initialCapital
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else {
			grossLoss += -t.PnL
		}
		if basis > 0 {
			returns = append(returns, t.PnL/basis)
		}
		basis += t.PnL
	}
	r.WinRate = wins / float64(len(trades))
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		r.ProfitFactor = math.Inf(1)
	}
	r.Sharpe = sharpeRatio(returns)
	return r
}

// sharpeRatio is the mean over the sample standard deviation of per-trade
// returns, scaled by the square root of the trade count (not annualized);
// a zero-variance series returns 0 rather than +/-Inf.
func sharpeRatio(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range returns {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range returns {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	if variance <= 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(n))
}
