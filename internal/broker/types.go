// Package broker submits orders for pending trading signals.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

// Broker-specific errors.
var (
	// ErrNotConnected indicates the broker is not connected.
	ErrNotConnected = errors.New("broker: not connected")
	// ErrInvalidSymbol indicates an invalid or empty symbol.
	ErrInvalidSymbol = errors.New("broker: invalid symbol")
	// ErrInvalidQuantity indicates an invalid quantity.
	ErrInvalidQuantity = errors.New("broker: invalid quantity")
	// ErrInvalidSide indicates a side other than buy or sell.
	ErrInvalidSide = errors.New("broker: invalid order side")
	// ErrInvalidPrice indicates an invalid price for limit orders.
	ErrInvalidPrice = errors.New("broker: invalid price for limit order")
	// ErrInvalidOrderType indicates an unsupported order type.
	ErrInvalidOrderType = errors.New("broker: invalid order type")
	// ErrInsufficientFunds indicates insufficient buying power for the order.
	ErrInsufficientFunds = errors.New("broker: insufficient funds")
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// SideOf maps a pending signal action to an order side.
func SideOf(a core.Action) (OrderSide, bool) {
	switch a {
	case core.ActionBuy:
		return OrderSideBuy, true
	case core.ActionSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}

// OrderType represents the type of order execution.
type OrderType string

const (
	// OrderTypeMarket executes at current market price.
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit executes at specified price or better.
	OrderTypeLimit OrderType = "limit"
)

// TimeInForceDay keeps an order alive until the close of the session.
const TimeInForceDay = "day"

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partially_filled"
	OrderStatusCancelled OrderStatus = "canceled"
	OrderStatusRejected  OrderStatus = "rejected"
	// OrderStatusDryRun marks an order that was logged but never sent.
	OrderStatusDryRun OrderStatus = "dry_run"
)

// OrderRequest represents a request to place a new order.
type OrderRequest struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Type     OrderType `json:"type"`
	Quantity int64     `json:"quantity"`
	// Price is the limit price (required for limit orders).
	Price       float64 `json:"price,omitempty"`
	TimeInForce string  `json:"time_in_force,omitempty"`
	// ClientOrderID is the caller-chosen identifier, echoed back by the broker.
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// Validate checks if the order request has valid required fields.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return ErrInvalidSymbol
	}
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return ErrInvalidSide
	}
	switch r.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.Price <= 0 {
			return ErrInvalidPrice
		}
	default:
		return ErrInvalidOrderType
	}
	return nil
}

// Order represents an order acknowledged by a broker.
type Order struct {
	OrderID          string      `json:"order_id"`
	ClientOrderID    string      `json:"client_order_id,omitempty"`
	Symbol           string      `json:"symbol"`
	Side             OrderSide   `json:"side"`
	Type             OrderType   `json:"type"`
	Quantity         int64       `json:"quantity"`
	Status           OrderStatus `json:"status"`
	FilledQuantity   int64       `json:"filled_quantity"`
	AverageFillPrice float64     `json:"average_fill_price"`
	CreatedAt        time.Time   `json:"created_at"`
}

// IsFilled returns true if the order is completely filled.
func (o Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// IsRejected returns true if the broker refused the order.
func (o Order) IsRejected() bool {
	return o.Status == OrderStatusRejected
}

// Balance represents account balance information.
type Balance struct {
	Currency    string    `json:"currency"`
	Cash        float64   `json:"cash"`
	BuyingPower float64   `json:"buying_power"`
	TotalValue  float64   `json:"total_value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Broker defines the interface for broker integrations.
type Broker interface {
	// Name returns the broker identifier (e.g., "alpaca", "dry_run").
	Name() string

	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	PlaceOrder(ctx context.Context, request OrderRequest) (*Order, error)
	GetBalance(ctx context.Context) (*Balance, error)
}
