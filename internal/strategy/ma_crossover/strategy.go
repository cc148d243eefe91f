package ma_crossover

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/ledger"
	"github.com/newthinker/quantbench/internal/strategy"
)

// Params configures the crossover simulator.
type Params struct {
	FastPeriod int
	SlowPeriod int
	Risk       strategy.Risk
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.FastPeriod <= 0 || p.SlowPeriod <= 0 {
		return fmt.Errorf("ma_crossover: periods must be positive, got %d/%d", p.FastPeriod, p.SlowPeriod)
	}
	if p.FastPeriod >= p.SlowPeriod {
		return fmt.Errorf("ma_crossover: fast period %d must be shorter than slow period %d", p.FastPeriod, p.SlowPeriod)
	}
	if err := p.Risk.Validate(); err != nil {
		return fmt.Errorf("ma_crossover: %w", err)
	}
	return nil
}

// MACrossover implements a moving average crossover strategy. A golden cross
// goes long and a death cross goes short, reversing any opposite position on
// the same bar.
type MACrossover struct {
	params Params
}

// New creates a new MA Crossover simulator
func New(params Params) (*MACrossover, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &MACrossover{params: params}, nil
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return "SMA Crossover"
}

// RequiredBars is one past the slow window: a cross needs the slow average on two consecutive bars.
func (m *MACrossover) RequiredBars() int {
	return m.params.SlowPeriod + 1
}

func (m *MACrossover) Params() Params {
	return m.params
}

func (m *MACrossover) Simulate(prices []float64) (strategy.Outcome, error) {
	frame := indicator.NewCrossoverFrame(prices, m.params.FastPeriod, m.params.SlowPeriod)
	return strategy.Run(prices, m.params.Risk, rules{cross: frame.Cross})
}

type rules struct {
	cross indicator.Series
}

func (r rules) Ready(i int) bool {
	_, ok := r.cross.At(i)
	return ok
}

func (r rules) Exit(ledger.Position, int) (ledger.ExitReason, bool) {
	return "", false
}

func (r rules) Decide(pos ledger.Position, i int) strategy.Decision {
	cross, _ := r.cross.At(i)
	switch {
	case cross > 0: // golden cross
		d := strategy.Decision{Open: ledger.Long}
		if pos.Side == ledger.Short {
			d.Close = ledger.ExitReversal
		}
		return d
	case cross < 0: // death cross
		d := strategy.Decision{Open: ledger.Short}
		if pos.Side == ledger.Long {
			d.Close = ledger.ExitReversal
		}
		return d
	}
	return strategy.Decision{}
}
