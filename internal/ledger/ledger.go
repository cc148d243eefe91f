// Package ledger tracks the single live position, cash and realized trades of
// one simulation run. A Ledger is owned by exactly one run and is not safe for
// concurrent use.
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrPositionOpen indicates an entry was attempted while not flat.
	ErrPositionOpen = errors.New("ledger: position already open")
	// ErrInvalidSize indicates a non-positive share count.
	ErrInvalidSize = errors.New("ledger: size must be positive")
	// ErrInvalidSide indicates an entry with the flat side.
	ErrInvalidSide = errors.New("ledger: entry side must be long or short")
)

// Side is the direction of a position.
type Side string

const (
	Flat  Side = "flat"
	Long  Side = "long"
	Short Side = "short"
)

// Position is the open holding. The zero value is flat.
type Position struct {
	Side       Side
	Size       int64
	EntryPrice float64
	EntryIndex int
	// Basis is the cash held just before the position was opened.
	Basis float64
}

// IsFlat reports whether no position is open.
func (p Position) IsFlat() bool {
	return p.Size == 0
}

// Unrealized returns the paper profit of the position at price.
func (p Position) Unrealized(price float64) float64 {
	switch p.Side {
	case Long:
		return (price - p.EntryPrice) * float64(p.Size)
	case Short:
		return (p.EntryPrice - price) * float64(p.Size)
	}
	return 0
}

// MarketValue is the signed value of the holding at price (negative when short).
func (p Position) MarketValue(price float64) float64 {
	switch p.Side {
	case Long:
		return float64(p.Size) * price
	case Short:
		return -float64(p.Size) * price
	}
	return 0
}

// Move is the fractional price move from entry in the position's favour:
// positive is a gain, negative an adverse move.
func (p Position) Move(price float64) float64 {
	switch p.Side {
	case Long:
		return (price - p.EntryPrice) / p.EntryPrice
	case Short:
		return (p.EntryPrice - price) / p.EntryPrice
	}
	return 0
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitSignal      ExitReason = "signal"
	ExitReversal    ExitReason = "reversal"
	ExitEndOfSeries ExitReason = "end_of_series"
)

// Trade is one closed position.
type Trade struct {
	Side       Side       `json:"side"`
	Size       int64      `json:"size"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	EntryIndex int        `json:"entry_index"`
	ExitIndex  int        `json:"exit_index"`
	Profit     float64    `json:"profit"`
	Reason     ExitReason `json:"reason"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Profit > 0
}

// Ledger holds cash, the live position and the append-only trade list.
type Ledger struct {
	cash   float64
	pos    Position
	trades []Trade
}

// New creates a flat ledger holding initialCapital in cash.
func New(initialCapital float64) *Ledger {
	return &Ledger{cash: initialCapital, pos: Position{Side: Flat}}
}

// Cash returns the current capital.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns a copy of the live position.
func (l *Ledger) Position() Position {
	return l.pos
}

// Trades returns a copy of the realized trades in closing order.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Open enters a position of size shares at price. Buying spends cash,
// shorting credits the proceeds.
func (l *Ledger) Open(side Side, size int64, price float64, index int) error {
	if !l.pos.IsFlat() {
		return ErrPositionOpen
	}
	if side != Long && side != Short {
		return ErrInvalidSide
	}
	if size <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	l.pos = Position{
		Side:       side,
		Size:       size,
		EntryPrice: price,
		EntryIndex: index,
		Basis:      l.cash,
	}
	if side == Long {
		l.cash -= price * float64(size)
	} else {
		l.cash += price * float64(size)
	}
	return nil
}

// Close realizes the live position at price and appends its trade.
// Cash after closing is the pre-entry cash plus the realized profit.
// It returns false when already flat.
func (l *Ledger) Close(price float64, index int, reason ExitReason) (Trade, bool) {
	if l.pos.IsFlat() {
		return Trade{}, false
	}

	trade := Trade{
		Side:       l.pos.Side,
		Size:       l.pos.Size,
		EntryPrice: l.pos.EntryPrice,
		ExitPrice:  price,
		EntryIndex: l.pos.EntryIndex,
		ExitIndex:  index,
		Profit:     l.pos.Unrealized(price),
		Reason:     reason,
	}
	l.cash = l.pos.Basis + trade.Profit
	l.trades = append(l.trades, trade)
	l.pos = Position{Side: Flat}
	return trade, true
}

// Equity is the mark-to-market account value at price. Flat, it is exactly the cash.
func (l *Ledger) Equity(price float64) float64 {
	if l.pos.IsFlat() {
		return l.cash
	}
	return l.pos.Basis + l.pos.Unrealized(price)
}
