package strategy

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/ledger"
)

// Decision is the phase-two verdict for one bar.
type Decision struct {
	// Close, when set, realizes the live position before any entry.
	Close ledger.ExitReason
	// Open, when long or short, enters if flat and sizing allows.
	Open ledger.Side
}

// Rules supplies the strategy-specific parts of the bar protocol.
//
// Each bar with available indicators runs in two phases:
//
//  1. Exit: a position opened on an earlier bar is checked against the
//     stop-loss and take-profit levels, then against Exit.
//  2. Entry: Decide sees the position left by phase one and may close it
//     and/or request a new entry.
//
// Bars without available indicators are held: no position change and the
// previous equity value is repeated.
type Rules interface {
	Ready(i int) bool
	Exit(pos ledger.Position, i int) (ledger.ExitReason, bool)
	Decide(pos ledger.Position, i int) Decision
}

// Run executes the bar protocol over prices. Any position still open after
// the last bar is liquidated at the final price.
func Run(prices []float64, risk Risk, rules Rules) (Outcome, error) {
	if len(prices) == 0 {
		return Outcome{}, core.WrapError(core.ErrInvalidSeries, fmt.Errorf("no prices"))
	}

	book := ledger.New(risk.InitialCapital)
	equity := make([]float64, 1, len(prices)+1)
	equity[0] = risk.InitialCapital
	pending := core.ActionNone
	last := len(prices) - 1

	for i, price := range prices {
		if !rules.Ready(i) {
			equity = append(equity, equity[len(equity)-1])
			continue
		}

		// phase 1
		if pos := book.Position(); !pos.IsFlat() {
			if reason, ok := risk.Breached(pos, price); ok {
				book.Close(price, i, reason)
			} else if reason, ok := rules.Exit(pos, i); ok {
				book.Close(price, i, reason)
			}
		}

		// phase 2
		d := rules.Decide(book.Position(), i)
		if d.Close != "" {
			book.Close(price, i, d.Close)
		}
		if d.Open == ledger.Long || d.Open == ledger.Short {
			if book.Position().IsFlat() {
				if size := risk.Shares(book.Cash(), price); size > 0 {
					if err := book.Open(d.Open, size, price, i); err != nil {
						return Outcome{}, core.WrapError(core.ErrSimulationFailed, err)
					}
					if i == last {
						pending = entryAction(d.Open)
					}
				}
			}
		}

		equity = append(equity, book.Equity(price))
	}

	book.Close(prices[last], last, ledger.ExitEndOfSeries)

	return Outcome{
		InitialCapital: risk.InitialCapital,
		FinalCapital:   book.Cash(),
		Equity:         equity,
		Trades:         book.Trades(),
		Pending:        pending,
	}, nil
}

func entryAction(side ledger.Side) core.Action {
	if side == ledger.Short {
		return core.ActionSell
	}
	return core.ActionBuy
}
