// Package mock provides a broker that records orders without sending them.
// It backs dry runs and tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/quantbench/internal/broker"
	"go.uber.org/zap"
)

// MockBroker implements broker.Broker in memory.
type MockBroker struct {
	mu        sync.RWMutex
	connected bool
	balance   broker.Balance
	orders    []broker.Order
	orderID   int
	placeErr  error
	logger    *zap.Logger
}

// New creates a mock broker holding cash in buying power.
func New(cash float64, logger *zap.Logger) *MockBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockBroker{
		balance: broker.Balance{
			Currency:    "USD",
			Cash:        cash,
			BuyingPower: cash,
			TotalValue:  cash,
		},
		orderID: 1000,
		logger:  logger,
	}
}

// Name returns the broker name.
func (m *MockBroker) Name() string {
	return "dry_run"
}

// Connect establishes connection (no-op for mock).
func (m *MockBroker) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Disconnect closes connection.
func (m *MockBroker) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns connection status.
func (m *MockBroker) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SetPlaceError makes subsequent PlaceOrder calls fail with err.
func (m *MockBroker) SetPlaceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeErr = err
}

// PlaceOrder records the order and logs what would have been sent.
func (m *MockBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, broker.ErrNotConnected
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if m.placeErr != nil {
		return nil, m.placeErr
	}

	m.orderID++
	order := broker.Order{
		OrderID:       fmt.Sprintf("DRY-%d", m.orderID),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		Status:        broker.OrderStatusDryRun,
		CreatedAt:     time.Now(),
	}
	m.orders = append(m.orders, order)

	m.logger.Info(fmt.Sprintf("would %s %d %s", req.Side, req.Quantity, req.Symbol),
		zap.String("order_id", order.OrderID),
	)
	return &order, nil
}

// GetBalance returns the configured balance.
func (m *MockBroker) GetBalance(ctx context.Context) (*broker.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, broker.ErrNotConnected
	}
	b := m.balance
	b.UpdatedAt = time.Now()
	return &b, nil
}

// Orders returns a copy of the recorded orders.
func (m *MockBroker) Orders() []broker.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]broker.Order, len(m.orders))
	copy(out, m.orders)
	return out
}
