package mean_reversion

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/ledger"
	"github.com/newthinker/quantbench/internal/strategy"
)

// Params configures the mean-reversion simulator.
type Params struct {
	Lookback  int     // rolling window for mean and deviation
	Threshold float64 // |z| beyond which a position is entered
	Risk      strategy.Risk
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Lookback < 2 {
		return fmt.Errorf("mean_reversion: lookback must be at least 2, got %d", p.Lookback)
	}
	if !(p.Threshold > 0) {
		return fmt.Errorf("mean_reversion: threshold must be positive, got %v", p.Threshold)
	}
	if err := p.Risk.Validate(); err != nil {
		return fmt.Errorf("mean_reversion: %w", err)
	}
	return nil
}

// MeanReversion fades z-score extremes: long below -threshold, short above
// +threshold, and exits once price reverts to its rolling mean.
type MeanReversion struct {
	params Params
}

// New creates a mean-reversion simulator.
func New(params Params) (*MeanReversion, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &MeanReversion{params: params}, nil
}

func (m *MeanReversion) Name() string {
	return "mean_reversion"
}

func (m *MeanReversion) Description() string {
	return "Mean Reversion"
}

func (m *MeanReversion) RequiredBars() int {
	return m.params.Lookback
}

// Params returns the configured parameters.
func (m *MeanReversion) Params() Params {
	return m.params
}

func (m *MeanReversion) Simulate(prices []float64) (strategy.Outcome, error) {
	frame := indicator.NewReversionFrame(prices, m.params.Lookback)
	return strategy.Run(prices, m.params.Risk, rules{z: frame.ZScore, threshold: m.params.Threshold})
}

type rules struct {
	z         indicator.Series
	threshold float64
}

func (r rules) Ready(i int) bool {
	_, ok := r.z.At(i)
	return ok
}

func (r rules) Exit(ledger.Position, int) (ledger.ExitReason, bool) {
	return "", false
}

func (r rules) Decide(pos ledger.Position, i int) strategy.Decision {
	z, _ := r.z.At(i)
	switch pos.Side {
	case ledger.Long:
		if z >= 0 {
			return strategy.Decision{Close: ledger.ExitSignal}
		}
	case ledger.Short:
		if z <= 0 {
			return strategy.Decision{Close: ledger.ExitSignal}
		}
	default:
		if z < -r.threshold {
			return strategy.Decision{Open: ledger.Long}
		}
		if z > r.threshold {
			return strategy.Decision{Open: ledger.Short}
		}
	}
	return strategy.Decision{}
}
