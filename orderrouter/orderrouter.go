// Package orderrouter places and manages the orders a confirmed signal
// or lifecycle exit implies: market entry for Spike signals, limit
// entry with a 60s timeout for everything else, resting reduce-only
// TP1/TP2 orders, and cancel-then-confirm on close.
package orderrouter

import (
	"context"
	"errors"
	"time"

	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/metrics"
	"github.com/evdnx/brooksfutures/types"
)

// LimitEntryTimeout is the hard deadline for a resting limit entry
// before it is cancelled and the signal abandoned.
const LimitEntryTimeout = 60 * time.Second

// LimitEntryPoll is the polling interval while waiting for a limit
// entry to fill.
const LimitEntryPoll = 2 * time.Second

// ErrLimitEntryTimedOut is returned when a non-Spike entry's resting
// limit order is not filled within LimitEntryTimeout.
var ErrLimitEntryTimedOut = errors.New("orderrouter: limit entry timed out")

// EntryRequest is everything the router needs to open a new position.
type EntryRequest struct {
	Symbol  string
	Side    types.Side
	Qty     float64
	Price   float64 // market price (Spike) or signal-bar extremum (others)
	IsSpike bool
}

// EntryResult is the confirmed fill the caller hands to position.Open.
type EntryResult struct {
	Price float64
	Qty   float64
}

// Router submits and tracks orders for one exchange account.
type Router struct {
	acct exchange.Account
	log  logger.Logger
}

// New returns a router bound to one user's exchange account.
func New(acct exchange.Account, log logger.Logger) *Router {
	return &Router{acct: acct, log: log}
}

// Open executes an entry: a market order for Spike signals, otherwise
// a GTC limit order at the signal bar's extremum, polled every
// LimitEntryPoll until LimitEntryTimeout.
func (r *Router) Open(ctx context.Context, req EntryRequest) (EntryResult, error) {
	order := types.Order{
		Symbol: req.Symbol,
		Side:   req.Side,
		Qty:    req.Qty,
		Price:  req.Price,
	}

	if req.IsSpike {
		ack, err := r.acct.CreateMarketOrder(ctx, order)
		if err != nil {
			metrics.OrdersTotal.WithLabelValues("entry", "rejected").Inc()
			return EntryResult{}, err
		}
		metrics.OrdersTotal.WithLabelValues("entry", "filled").Inc()
		return EntryResult{Price: ack.Price, Qty: ack.Qty}, nil
	}

	order.TimeInForce = types.GTC
	ack, err := r.acct.CreateLimitOrder(ctx, order)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("entry", "rejected").Inc()
		return EntryResult{}, err
	}
	metrics.OrdersTotal.WithLabelValues("entry", "submitted").Inc()

	if ack.Status == types.StatusFilled {
		metrics.OrdersTotal.WithLabelValues("entry", "filled").Inc()
		return EntryResult{Price: ack.Price, Qty: ack.Qty}, nil
	}

	deadline := time.Now().Add(LimitEntryTimeout)
	ticker := time.NewTicker(LimitEntryPoll)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			_ = r.acct.CancelOrder(context.Background(), req.Symbol, ack.OrderID)
			return EntryResult{}, ctx.Err()
		case <-ticker.C:
			status, err := r.acct.OrderStatus(ctx, req.Symbol, ack.OrderID)
			if err != nil {
				continue
			}
			if status.Status == types.StatusFilled {
				metrics.OrdersTotal.WithLabelValues("entry", "filled").Inc()
				return EntryResult{Price: status.Price, Qty: status.Qty}, nil
			}
		}
	}

	_ = r.acct.CancelOrder(ctx, req.Symbol, ack.OrderID)
	if r.log != nil {
		r.log.Warn("limit entry timed out, cancelled", logger.String("symbol", req.Symbol))
	}
	metrics.OrdersTotal.WithLabelValues("entry", "rejected").Inc()
	return EntryResult{}, ErrLimitEntryTimedOut
}

// PlaceTP1 rests a reduce-only TP1 order for qty.
func (r *Router) PlaceTP1(ctx context.Context, symbol string, side types.Side, qty, price float64) (string, error) {
	ack, err := r.acct.CreateReduceOnlyOrder(ctx, types.Order{
		Symbol:    symbol,
		Side:      side.Opposite(),
		Type:      types.OrderTakeProfitMkt,
		Qty:       qty,
		StopPrice: price,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("tp1", "rejected").Inc()
		return "", err
	}
	metrics.OrdersTotal.WithLabelValues("tp1", "submitted").Inc()
	return ack.OrderID, nil
}

// PlaceTP2 rests a reduce-only limit TP2 order for the remaining
// quantity once TP1 has filled.
func (r *Router) PlaceTP2(ctx context.Context, symbol string, side types.Side, qty, price float64) (string, error) {
	ack, err := r.acct.CreateReduceOnlyOrder(ctx, types.Order{
		Symbol:      symbol,
		Side:        side.Opposite(),
		Type:        types.OrderTakeProfitLimit,
		Qty:         qty,
		Price:       price,
		StopPrice:   price,
		TimeInForce: types.GTC,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("tp2", "rejected").Inc()
		return "", err
	}
	metrics.OrdersTotal.WithLabelValues("tp2", "submitted").Inc()
	return ack.OrderID, nil
}

// Close cancels every outstanding related order, sends a reduce-only
// market close for qty, then confirms a flat position with the
// exchange. Order cancellation always runs before the closing market
// order is sent.
func (r *Router) Close(ctx context.Context, symbol string, side types.Side, qty float64) error {
	if err := r.acct.CancelAllOrders(ctx, symbol); err != nil && r.log != nil {
		r.log.Warn("cancel-all before close failed", logger.String("symbol", symbol), logger.Err(err))
	}

	_, err := r.acct.CreateReduceOnlyOrder(ctx, types.Order{
		Symbol: symbol,
		Side:   side.Opposite(),
		Type:   types.OrderMarket,
		Qty:    qty,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("stop", "rejected").Inc()
		return err
	}
	metrics.OrdersTotal.WithLabelValues("stop", "filled").Inc()

	pos, err := r.acct.Position(ctx, symbol)
	if err == nil && pos.Qty != 0 && r.log != nil {
		r.log.Warn("position not flat after close", logger.String("symbol", symbol), logger.Float64("remaining_qty", pos.Qty))
	}
	return err
}
