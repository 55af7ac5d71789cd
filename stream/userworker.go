package stream

import (
	"context"

	"github.com/evdnx/brooksfutures/config"
	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/metrics"
	"github.com/evdnx/brooksfutures/orderrouter"
	"github.com/evdnx/brooksfutures/position"
	"github.com/evdnx/brooksfutures/risk"
	"github.com/evdnx/brooksfutures/types"
)

// EntrySignal is everything the orchestrator hands off to a user's
// worker once a signal has cleared every filter and sizing has been
// decided.
type EntrySignal struct {
	Symbol        string
	Side          types.Side
	Qty           float64
	Price         float64
	IsSpike       bool
	Stop          float64
	TP1           float64
	TP2           float64
	TP1CloseRatio float64
	Strength      float64
	MarketState   string
	Pattern       string
	IsClimaxBar   bool
}

// EntryQueueDepth bounds the per-user entry channel.
const EntryQueueDepth = 64

// UserWorker drives one user's order placement and position lifecycle:
// it consumes confirmed entry signals, opens and tracks the resulting
// trade, and on every closed bar runs the lifecycle's trailing/TP1/TP2/
// stop evaluation, placing the implied exit orders through the router.
type UserWorker struct {
	user      string
	router    *orderrouter.Router
	positions *position.Manager
	acct      exchange.Account
	sizer     risk.SizePolicy
	cfg       config.StrategyConfig
	htfSwings *market.HTFSwingTracker
	log       logger.Logger
	entries   chan EntrySignal
}

// NewUserWorker returns a worker for one user's exchange account. sizer
// and cfg are consulted only for signals that arrive with Qty unset
// (EntrySignal.Qty <= 0): the orchestrator emits one sizeless signal per
// bar and each user's worker turns it into an order quantity from that
// user's own balance, never the other way around — the core never owns
// a trade-size policy. htfSwings is the shared, per-symbol
// structural-stop tracker fed by the HTF poller; nil disables the
// tightening step.
func NewUserWorker(user string, acct exchange.Account, positions *position.Manager, sizer risk.SizePolicy, cfg config.StrategyConfig, htfSwings *market.HTFSwingTracker, log logger.Logger) *UserWorker {
	return &UserWorker{
		user:      user,
		router:    orderrouter.New(acct, log),
		positions: positions,
		acct:      acct,
		sizer:     sizer,
		cfg:       cfg,
		htfSwings: htfSwings,
		log:       log,
		entries:   make(chan EntrySignal, EntryQueueDepth),
	}
}

// Entries returns the channel the orchestrator feeds confirmed signals
// into for this user.
func (w *UserWorker) Entries() chan<- EntrySignal { return w.entries }

// User returns the account name this worker trades for.
func (w *UserWorker) User() string { return w.user }

// Run consumes entry signals until ctx is cancelled, opening a position
// for each one that is accepted (the caller is responsible for having
// already applied the reversal gate and cooldown check before sending).
func (w *UserWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-w.entries:
			if !ok {
				return nil
			}
			w.open(ctx, sig)
		}
	}
}

// size fills in sig.Qty from this user's live balance when the caller
// left it unset, applying the large-balance tier cutover.
func (w *UserWorker) size(ctx context.Context, sig *EntrySignal) bool {
	if sig.Qty > 0 {
		return true
	}
	if w.sizer == nil {
		return false
	}
	balance, err := w.acct.Balance(ctx)
	if err != nil {
		if w.log != nil {
			w.log.Warn("balance lookup failed", logger.String("user", w.user), logger.Err(err))
		}
		return false
	}
	pct := w.cfg.PositionSizePercent
	if w.cfg.LargeBalanceThreshold > 0 && balance >= w.cfg.LargeBalanceThreshold {
		pct = w.cfg.LargeBalancePositionPct
	}
	sig.Qty = w.sizer.Size(balance, pct, w.cfg.Leverage, sig.Price)
	return sig.Qty > 0
}

func (w *UserWorker) open(ctx context.Context, sig EntrySignal) {
	if !w.size(ctx, &sig) {
		return
	}
	res, err := w.router.Open(ctx, orderrouter.EntryRequest{
		Symbol:  sig.Symbol,
		Side:    sig.Side,
		Qty:     sig.Qty,
		Price:   sig.Price,
		IsSpike: sig.IsSpike,
	})
	if err != nil {
		if w.log != nil {
			w.log.Warn("entry order failed", logger.String("user", w.user), logger.String("symbol", sig.Symbol), logger.Err(err))
		}
		return
	}

	w.positions.Open(&position.TradeRecord{
		User:          w.user,
		Symbol:        sig.Symbol,
		Signal:        sig.Pattern,
		Side:          sig.Side,
		EntryPrice:    res.Price,
		Quantity:      res.Qty,
		EffectiveStop: sig.Stop,
		TP1:           sig.TP1,
		TP2:           sig.TP2,
		TP1CloseRatio: sig.TP1CloseRatio,
		SignalStrength: sig.Strength,
		MarketState:   sig.MarketState,
		IsClimaxBar:   sig.IsClimaxBar,
	})
	metrics.PositionsOpen.WithLabelValues(w.user).Set(1)

	if tp1ID, err := w.router.PlaceTP1(ctx, sig.Symbol, sig.Side, res.Qty*sig.TP1CloseRatio, sig.TP1); err == nil {
		if t := w.positions.Get(w.user); t != nil {
			t.TP1OrderID = tp1ID
		}
	} else if w.log != nil {
		w.log.Warn("tp1 placement failed", logger.String("user", w.user), logger.Err(err))
	}
}

// tightenStructuralStop replaces the open trade's effective stop with
// the higher-timeframe structural alternative when one is tighter, per
// the supplemented HTFSwingTracker.StructuralStop rule.
func (w *UserWorker) tightenStructuralStop(atr float64) {
	if w.htfSwings == nil {
		return
	}
	t := w.positions.Get(w.user)
	if t == nil {
		return
	}
	if sl := w.htfSwings.StructuralStop(t.Side, t.EntryPrice, t.EffectiveStop, atr); sl != 0 {
		t.EffectiveStop = sl
	}
}

// OnBar runs the lifecycle's per-tick evaluation against the user's open
// trade and executes whatever exit it decides on.
func (w *UserWorker) OnBar(ctx context.Context, high, low, close, atr float64, barIntervalBars int) {
	w.tightenStructuralStop(atr)
	t := w.positions.Get(w.user)
	ev := w.positions.Evaluate(w.user, high, low, close, barIntervalBars)
	if ev == nil {
		return
	}

	symbol := ""
	side := types.Buy
	if t != nil {
		symbol = t.Symbol
		side = t.Side
	}

	switch ev.Stage {
	case "tp1":
		if t != nil {
			if tp2ID, err := w.router.PlaceTP2(ctx, symbol, side, ev.RemainingQty, ev.RemainingTP2); err == nil {
				t.TP2OrderID = tp2ID
			} else if w.log != nil {
				w.log.Warn("tp2 placement failed", logger.String("user", w.user), logger.Err(err))
			}
		}
	default:
		if err := w.router.Close(ctx, symbol, side, ev.CloseQty); err != nil && w.log != nil {
			w.log.Warn("exit order failed", logger.String("user", w.user), logger.String("stage", ev.Stage), logger.Err(err))
		}
		if ev.FullyClosed {
			metrics.PositionsOpen.WithLabelValues(w.user).Set(0)
		}
	}
}

// Reconcile polls the exchange's authoritative position and reconciles
// it against the cached trade record.
func (w *UserWorker) Reconcile(ctx context.Context, symbol string, atr float64) {
	pos, err := w.acct.Position(ctx, symbol)
	if err != nil {
		if w.log != nil {
			w.log.Warn("position poll failed", logger.String("user", w.user), logger.Err(err))
		}
		return
	}
	if _, mismatched := w.positions.Reconcile(w.user, pos, atr); mismatched {
		metrics.ReconciliationMismatch.WithLabelValues(w.user).Inc()
	}
}
