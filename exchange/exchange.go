// Package exchange defines the narrow account/order surface the
// orderrouter and stream packages need from a live exchange connection,
// kept deliberately small: wire-client internals live only in the
// concrete ws and rest subpackages behind these interfaces.
package exchange

import (
	"context"

	"github.com/evdnx/brooksfutures/types"
)

// Account is the trading surface for one exchange user: order
// placement, cancellation and position/fill polling.
type Account interface {
	Name() string

	CreateMarketOrder(ctx context.Context, o types.Order) (types.OrderAck, error)
	CreateLimitOrder(ctx context.Context, o types.Order) (types.OrderAck, error)
	CreateReduceOnlyOrder(ctx context.Context, o types.Order) (types.OrderAck, error)

	OrderStatus(ctx context.Context, symbol, orderID string) (types.OrderAck, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error

	Position(ctx context.Context, symbol string) (types.Position, error)

	// Balance returns the account's available USDT-margined balance,
	// consulted by the per-user sizing step ahead of every entry.
	Balance(ctx context.Context) (float64, error)
}

// KlineEvent is one closed or in-progress kline.
type KlineEvent struct {
	OpenTimeMs int64
	Open, High, Low, Close float64
	Closed bool
}

// AggTradeEvent is one aggregate trade print.
type AggTradeEvent struct {
	Price        float64
	Qty          float64
	BuyerIsMaker bool
	TradeTimeMs  int64
}

// DepthEvent is one order-book depth snapshot/diff used to derive the
// Order-Book-Imbalance value.
type DepthEvent struct {
	TotalBidQty float64
	TotalAskQty float64
}

// MarketStream is the inbound side: kline, aggTrade and depth feeds for
// one symbol.
type MarketStream interface {
	Klines(ctx context.Context, symbol, interval string) (<-chan KlineEvent, error)
	AggTrades(ctx context.Context, symbol string) (<-chan AggTradeEvent, error)
	Depth(ctx context.Context, symbol string) (<-chan DepthEvent, error)
}

// HistoricalSource is the REST-side complement to MarketStream, used by
// the bar producer's gap-repair-by-refetch path when the
// websocket feed drops one or more closed bars.
type HistoricalSource interface {
	FetchKlines(ctx context.Context, symbol, interval string, startMs int64, limit int) ([]KlineEvent, error)
}
