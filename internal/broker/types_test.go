package broker

import (
	"testing"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestOrderRequest_Validate(t *testing.T) {
	valid := OrderRequest{Symbol: "AAPL", Side: OrderSideBuy, Type: OrderTypeMarket, Quantity: 1}

	tests := []struct {
		name    string
		mutate  func(r *OrderRequest)
		wantErr error
	}{
		{"valid market", func(r *OrderRequest) {}, nil},
		{"empty symbol", func(r *OrderRequest) { r.Symbol = "" }, ErrInvalidSymbol},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = 0 }, ErrInvalidQuantity},
		{"negative quantity", func(r *OrderRequest) { r.Quantity = -5 }, ErrInvalidQuantity},
		{"bad side", func(r *OrderRequest) { r.Side = "hold" }, ErrInvalidSide},
		{"limit without price", func(r *OrderRequest) { r.Type = OrderTypeLimit }, ErrInvalidPrice},
		{"limit with price", func(r *OrderRequest) { r.Type = OrderTypeLimit; r.Price = 10 }, nil},
		{"unknown type", func(r *OrderRequest) { r.Type = "stop" }, ErrInvalidOrderType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSideOf(t *testing.T) {
	tests := []struct {
		action core.Action
		want   OrderSide
		ok     bool
	}{
		{core.ActionBuy, OrderSideBuy, true},
		{core.ActionSell, OrderSideSell, true},
		{core.ActionNone, "", false},
	}
	for _, tt := range tests {
		got, ok := SideOf(tt.action)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, ok)
	}
}

func TestOrder_Status(t *testing.T) {
	assert.True(t, Order{Status: OrderStatusFilled}.IsFilled())
	assert.False(t, Order{Status: OrderStatusAccepted}.IsFilled())
	assert.True(t, Order{Status: OrderStatusRejected}.IsRejected())
}
