package strategy

import (
	"fmt"
	"math"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/ledger"
)

// Sizing selects the capital base used to size a new entry.
type Sizing string

const (
	// SizingCompounding sizes off the cash held on the entry bar.
	SizingCompounding Sizing = "compounding"
	// SizingFixed sizes off the initial capital on every entry.
	SizingFixed Sizing = "fixed"
)

// Risk holds the capital and exit parameters shared by every simulator.
type Risk struct {
	InitialCapital float64
	PositionSize   float64 // fraction of the capital base committed per entry
	StopLoss       float64 // adverse move from entry that forces an exit
	TakeProfit     float64 // favourable move from entry that forces an exit
	Sizing         Sizing
}

// Validate checks the risk parameters.
func (r Risk) Validate() error {
	if !(r.InitialCapital > 0) {
		return fmt.Errorf("initial capital must be positive, got %v", r.InitialCapital)
	}
	if !(r.PositionSize > 0) || r.PositionSize > 1 {
		return fmt.Errorf("position size must be in (0, 1], got %v", r.PositionSize)
	}
	if !(r.StopLoss > 0) {
		return fmt.Errorf("stop loss must be positive, got %v", r.StopLoss)
	}
	if !(r.TakeProfit > 0) {
		return fmt.Errorf("take profit must be positive, got %v", r.TakeProfit)
	}
	if r.Sizing != SizingCompounding && r.Sizing != SizingFixed {
		return fmt.Errorf("unknown sizing mode %q", r.Sizing)
	}
	return nil
}

// Shares is the whole number of shares a new entry at price may take.
// Zero means the capital is too small for one share.
func (r Risk) Shares(cash, price float64) int64 {
	if !(price > 0) {
		return 0
	}
	base := cash
	if r.Sizing == SizingFixed {
		base = r.InitialCapital
	}
	n := math.Floor(base * r.PositionSize / price)
	if n < 1 {
		return 0
	}
	return int64(n)
}

// Breached checks the live position against the stop-loss and take-profit levels.
func (r Risk) Breached(pos ledger.Position, price float64) (ledger.ExitReason, bool) {
	if pos.IsFlat() {
		return "", false
	}
	move := pos.Move(price)
	switch {
	case move <= -r.StopLoss:
		return ledger.ExitStopLoss, true
	case move >= r.TakeProfit:
		return ledger.ExitTakeProfit, true
	}
	return "", false
}

// Outcome is the complete record of one simulation run.
type Outcome struct {
	InitialCapital float64
	FinalCapital   float64
	// Equity has one entry per bar plus the initial capital at index zero.
	Equity  []float64
	Trades  []ledger.Trade
	Pending core.Action
}

// Simulator walks one price series bar by bar and reports its trading outcome.
// Implementations hold only immutable parameters and are safe for concurrent use.
type Simulator interface {
	Name() string
	Description() string
	// RequiredBars is the number of bars needed before the first decision can be taken.
	RequiredBars() int
	Simulate(prices []float64) (Outcome, error)
}
