package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/evdnx/brooksfutures/types"
)

// MockExchange implements exchange.Account in-memory for order-router
// and lifecycle tests: every order fills immediately at its requested
// price, positions accumulate signed quantity, and orders are captured
// for assertions.
type MockExchange struct {
	mu        sync.Mutex
	name      string
	positions map[string]float64
	avgPrice  map[string]float64
	orders    []types.Order
	nextID    int
	open      map[string]types.Order // orderID -> order, cleared on cancel
	balance   float64
}

// NewMockExchange returns a fresh mock account named name, seeded with a
// 10,000 USDT balance.
func NewMockExchange(name string) *MockExchange {
	return &MockExchange{
		name:      name,
		positions: make(map[string]float64),
		avgPrice:  make(map[string]float64),
		open:      make(map[string]types.Order),
		balance:   10_000,
	}
}

// SetBalance overrides the mock account's reported balance.
func (m *MockExchange) SetBalance(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = v
}

// Balance returns the mock account's configured balance.
func (m *MockExchange) Balance(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *MockExchange) Name() string { return m.name }

func (m *MockExchange) fill(o types.Order) types.OrderAck {
	m.mu.Lock()
	defer m.mu.Unlock()

	signed := o.Qty
	if o.Side == types.Sell {
		signed = -o.Qty
	}
	prevQty := m.positions[o.Symbol]
	newQty := prevQty + signed
	if prevQty == 0 || (prevQty > 0) == (signed > 0) {
		prevAvg := m.avgPrice[o.Symbol]
		totalCost := prevAvg*absf(prevQty) + o.Price*o.Qty
		if newQty != 0 {
			m.avgPrice[o.Symbol] = totalCost / absf(newQty)
		}
	}
	m.positions[o.Symbol] = newQty

	m.nextID++
	id := fmt.Sprintf("mock-%d", m.nextID)
	m.orders = append(m.orders, o)

	return types.OrderAck{OrderID: id, Status: types.StatusFilled, Price: o.Price, Qty: o.Qty}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *MockExchange) CreateMarketOrder(_ context.Context, o types.Order) (types.OrderAck, error) {
	return m.fill(o), nil
}

func (m *MockExchange) CreateLimitOrder(_ context.Context, o types.Order) (types.OrderAck, error) {
	return m.fill(o), nil
}

func (m *MockExchange) CreateReduceOnlyOrder(_ context.Context, o types.Order) (types.OrderAck, error) {
	o.ReduceOnly = true
	return m.fill(o), nil
}

func (m *MockExchange) OrderStatus(_ context.Context, _, orderID string) (types.OrderAck, error) {
	return types.OrderAck{OrderID: orderID, Status: types.StatusFilled}, nil
}

func (m *MockExchange) CancelOrder(_ context.Context, _, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, orderID)
	return nil
}

func (m *MockExchange) CancelAllOrders(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = make(map[string]types.Order)
	return nil
}

func (m *MockExchange) Position(_ context.Context, symbol string) (types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.Position{Symbol: symbol, Qty: m.positions[symbol], EntryPrice: m.avgPrice[symbol]}, nil
}

// Orders returns a copy of every order submitted so far, for assertions.
func (m *MockExchange) Orders() []types.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)
	return out
}
