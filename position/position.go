// Package position owns the single authoritative record of each user's
// open trade and its per-tick lifecycle: trailing-stop ratchet, TP1
// partial close with breakeven move, TP2 full close, stop exits and the
// reversal-strength gate. Exactly one goroutine (the per-user stream
// worker) mutates a given user's record, but the map is guarded by a
// sync.Mutex since only the lifecycle component is ever allowed to
// write to it.
package position

import (
	"sync"
	"time"

	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/market"
	"github.com/evdnx/brooksfutures/types"
)

const (
	trailingActivateR = 0.8
	trailingDistanceR = 0.5
	feeBufferPct      = 0.001 // 0.1% of entry, added to breakeven
	lossCooldownBars  = 3
)

// ExitStage tracks how far through the scaled-exit plan a trade has
// progressed.
type ExitStage int

const (
	StageOpen ExitStage = iota
	StageTP1Done
)

// TrailingState tracks the ratcheting trailing-stop fields for an open
// trade.
type TrailingState struct {
	TrailingStop float64
	OriginalStop float64
	MaxProfitR   float64
	Activated    bool
}

// TradeRecord is the lifecycle's authoritative view of one user's open
// position").
type TradeRecord struct {
	User   string
	Symbol string
	Signal string
	Side   types.Side

	EntryPrice float64
	Quantity   float64

	OriginalStop   float64
	EffectiveStop  float64
	TP1            float64
	TP2            float64
	TP1CloseRatio  float64
	ExitStage      ExitStage
	Trailing       TrailingState
	SignalStrength float64
	MarketState    string
	IsClimaxBar    bool

	TP1OrderID string
	TP2OrderID string

	OpenedAt time.Time
}

// ExitEvent describes a full or partial close the lifecycle has decided
// on; the caller (the executor/orderrouter package) is responsible for
// actually placing the corresponding exchange orders.
type ExitEvent struct {
	Stage         string // "tp1", "tp2", "trailing_stop", "breakeven_stop", "stop_loss"
	Price         float64
	CloseQty      float64
	RemainingQty  float64
	RemainingTP2  float64
	FullyClosed   bool
	IsLoss        bool
}

// Manager is the single authoritative store of open trades, keyed by
// user name.
type Manager struct {
	mu       sync.Mutex
	trades   map[string]*TradeRecord
	cooldown map[string]time.Time

	log logger.Logger
}

// NewManager returns an empty lifecycle manager.
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		trades:   make(map[string]*TradeRecord),
		cooldown: make(map[string]time.Time),
		log:      log,
	}
}

// Open records a freshly filled trade, replacing any prior record for
// the user.
func (m *Manager) Open(t *TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.OriginalStop = t.EffectiveStop
	t.Trailing = TrailingState{OriginalStop: t.EffectiveStop}
	t.ExitStage = StageOpen
	if t.OpenedAt.IsZero() {
		t.OpenedAt = time.Now()
	}
	m.trades[t.User] = t
}

// Get returns the user's open trade, or nil.
func (m *Manager) Get(user string) *TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades[user]
}

// Close removes the user's trade record (called once the executor has
// confirmed a flat position with the exchange).
func (m *Manager) Close(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trades, user)
}

// IsCoolingDown reports whether the user is still serving a post-loss
// cooldown.
func (m *Manager) IsCoolingDown(user string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.cooldown[user]
	return ok && now.Before(until)
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

// Evaluate runs the per-tick lifecycle check against the
// user's open trade, given the current high/low/close and one bar's
// worth of elapsed time for the cooldown counter. Returns nil if no
// trade is open or no exit condition fired.
func (m *Manager) Evaluate(user string, high, low, close float64, barIntervalBars int) *ExitEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.trades[user]
	if t == nil {
		return nil
	}

	originalRisk := absf(t.EntryPrice - t.Trailing.OriginalStop)
	if originalRisk <= 0 {
		return nil
	}

	isBuy := t.Side == types.Buy
	var currentProfit float64
	if isBuy {
		currentProfit = close - t.EntryPrice
	} else {
		currentProfit = t.EntryPrice - close
	}
	profitR := currentProfit / originalRisk

	if profitR > t.Trailing.MaxProfitR {
		t.Trailing.MaxProfitR = profitR
	}
	if !t.Trailing.Activated && profitR >= trailingActivateR {
		t.Trailing.Activated = true
	}
	if t.Trailing.Activated {
		dist := originalRisk * trailingDistanceR
		if isBuy {
			candidate := close - dist
			if candidate > t.Trailing.TrailingStop {
				t.Trailing.TrailingStop = candidate
			}
		} else {
			candidate := close + dist
			if t.Trailing.TrailingStop == 0 || candidate < t.Trailing.TrailingStop {
				t.Trailing.TrailingStop = candidate
			}
		}
	}

	effectiveStop := t.EffectiveStop
	if t.Trailing.Activated {
		if isBuy {
			effectiveStop = maxf(effectiveStop, t.Trailing.TrailingStop)
		} else {
			effectiveStop = minf(effectiveStop, t.Trailing.TrailingStop)
		}
	}

	// Step 3/4: TP1 then TP2.
	if t.ExitStage == StageOpen {
		touchedTP1 := (isBuy && high >= t.TP1) || (!isBuy && low <= t.TP1)
		if touchedTP1 {
			closeQty := t.Quantity * t.TP1CloseRatio
			remaining := t.Quantity - closeQty

			breakeven := t.EntryPrice
			if isBuy {
				breakeven += t.EntryPrice * feeBufferPct
			} else {
				breakeven -= t.EntryPrice * feeBufferPct
			}
			t.EffectiveStop = breakeven
			t.Trailing.OriginalStop = breakeven
			t.Quantity = remaining
			t.ExitStage = StageTP1Done

			if m.log != nil {
				m.log.Info("tp1 touched", logger.String("user", user), logger.Float64("close_qty", closeQty), logger.Float64("remaining_qty", remaining))
			}
			return &ExitEvent{Stage: "tp1", Price: t.TP1, CloseQty: closeQty, RemainingQty: remaining, RemainingTP2: t.TP2}
		}
	} else if t.ExitStage == StageTP1Done {
		touchedTP2 := (isBuy && high >= t.TP2) || (!isBuy && low <= t.TP2)
		if touchedTP2 {
			qty := t.Quantity
			delete(m.trades, user)
			return &ExitEvent{Stage: "tp2", Price: t.TP2, CloseQty: qty, RemainingQty: 0, FullyClosed: true}
		}
	}

	// Step 5: stop.
	touchedStop := (isBuy && low <= effectiveStop) || (!isBuy && high >= effectiveStop)
	if touchedStop {
		label := "stop_loss"
		if t.Trailing.Activated && t.Trailing.MaxProfitR > 0 {
			label = "trailing_stop"
		} else if effectiveStop == t.EntryPrice {
			label = "breakeven_stop"
		}
		isLoss := (isBuy && effectiveStop < t.EntryPrice) || (!isBuy && effectiveStop > t.EntryPrice)
		qty := t.Quantity
		delete(m.trades, user)
		if isLoss {
			m.cooldown[user] = time.Now().Add(time.Duration(barIntervalBars*lossCooldownBars) * time.Minute)
		}
		return &ExitEvent{Stage: label, Price: effectiveStop, CloseQty: qty, RemainingQty: 0, FullyClosed: true, IsLoss: isLoss}
	}

	return nil
}

// reversalThreshold returns the regime-dependent multiplier for the
// reversal gate.
func reversalThreshold(state market.MarketState) float64 {
	switch state {
	case market.StateBreakout, market.StateStrongTrend:
		return 1.5
	case market.StateTradingRange:
		return 1.3
	default:
		return 1.2
	}
}

// ReversalAllowed reports whether a counter-side signal of newStrength
// may override the user's open position. Returns true when no position
// is open (nothing to gate).
func (m *Manager) ReversalAllowed(user string, newSide types.Side, newStrength float64, state market.MarketState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.trades[user]
	if t == nil || t.Side == newSide {
		return true
	}
	return newStrength >= t.SignalStrength*reversalThreshold(state)
}

// Reconcile compares the cached trade against the exchange's
// authoritative position: matching side/quantity within 1% keeps the
// richer local record;
// otherwise a minimal record is reconstructed (or the cached one force-
// closed if the exchange is flat). Returns the record now considered
// correct (nil if flat) and whether a mismatch was detected.
func (m *Manager) Reconcile(user string, exch types.Position, atr float64) (*TradeRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached := m.trades[user]

	if exch.Qty == 0 {
		if cached != nil {
			delete(m.trades, user)
			return nil, true
		}
		return nil, false
	}

	exchSide := types.Buy
	if exch.Qty < 0 {
		exchSide = types.Sell
	}
	exchQty := absf(exch.Qty)

	if cached != nil && cached.Side == exchSide {
		qtyDiff := absf(cached.Quantity-exchQty) / maxf(exchQty, 1e-9)
		if qtyDiff <= 0.01 {
			return cached, false
		}
	}

	defaultRisk := atr
	if defaultRisk <= 0 {
		defaultRisk = exch.EntryPrice * 0.01
	}
	var stop, tp1, tp2 float64
	if exchSide == types.Buy {
		stop = exch.EntryPrice - defaultRisk
		tp1 = exch.EntryPrice + defaultRisk
		tp2 = exch.EntryPrice + defaultRisk*2
	} else {
		stop = exch.EntryPrice + defaultRisk
		tp1 = exch.EntryPrice - defaultRisk
		tp2 = exch.EntryPrice - defaultRisk*2
	}
	rebuilt := &TradeRecord{
		User:          user,
		Symbol:        exch.Symbol,
		Signal:        "Reconciled",
		Side:          exchSide,
		EntryPrice:    exch.EntryPrice,
		Quantity:      exchQty,
		OriginalStop:  stop,
		EffectiveStop: stop,
		TP1:           tp1,
		TP2:           tp2,
		TP1CloseRatio: 0.5,
		Trailing:      TrailingState{OriginalStop: stop},
		OpenedAt:      time.Now(),
	}
	m.trades[user] = rebuilt
	if m.log != nil {
		m.log.Warn("position reconciliation mismatch", logger.String("user", user), logger.Float64("exchange_qty", exch.Qty))
	}
	return rebuilt, true
}
