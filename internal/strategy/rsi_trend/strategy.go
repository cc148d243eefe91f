package rsi_trend

import (
	"fmt"

	"github.com/newthinker/quantbench/internal/indicator"
	"github.com/newthinker/quantbench/internal/ledger"
	"github.com/newthinker/quantbench/internal/strategy"
)

// Params configures the oscillator/trend simulator.
type Params struct {
	Period      int
	Oversold    float64
	Overbought  float64
	TrendPeriod int
	Risk        strategy.Risk
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Period <= 0 {
		return fmt.Errorf("rsi_trend: period must be positive, got %d", p.Period)
	}
	if p.TrendPeriod <= 0 {
		return fmt.Errorf("rsi_trend: trend period must be positive, got %d", p.TrendPeriod)
	}
	if p.Oversold < 0 || p.Overbought > indicator.RSIMax || p.Oversold >= p.Overbought {
		return fmt.Errorf("rsi_trend: need 0 <= oversold < overbought <= %v, got %v/%v",
			indicator.RSIMax, p.Oversold, p.Overbought)
	}
	if err := p.Risk.Validate(); err != nil {
		return fmt.Errorf("rsi_trend: %w", err)
	}
	return nil
}

// RSITrend buys oversold dips only while price sits above its trend average.
// It never sells short.
type RSITrend struct {
	params Params
}

// New creates an oscillator/trend simulator.
func New(params Params) (*RSITrend, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &RSITrend{params: params}, nil
}

func (r *RSITrend) Name() string {
	return "rsi_trend"
}

func (r *RSITrend) Description() string {
	return "RSI"
}

// RequiredBars is the longer of the oscillator and trend warm-ups.
func (r *RSITrend) RequiredBars() int {
	return max(r.params.Period+1, r.params.TrendPeriod)
}

func (r *RSITrend) Params() Params {
	return r.params
}

func (r *RSITrend) Simulate(prices []float64) (strategy.Outcome, error) {
	frame := indicator.NewMomentumFrame(prices, r.params.Period, r.params.TrendPeriod)
	return strategy.Run(prices, r.params.Risk, rules{
		rsi:        frame.RSI,
		uptrend:    frame.Uptrend,
		oversold:   r.params.Oversold,
		overbought: r.params.Overbought,
	})
}

type rules struct {
	rsi        indicator.Series
	uptrend    []bool
	oversold   float64
	overbought float64
}

func (r rules) Ready(i int) bool {
	_, ok := r.rsi.At(i)
	return ok
}

func (r rules) Exit(pos ledger.Position, i int) (ledger.ExitReason, bool) {
	if v, _ := r.rsi.At(i); v > r.overbought {
		return ledger.ExitSignal, true
	}
	return "", false
}

func (r rules) Decide(pos ledger.Position, i int) strategy.Decision {
	if !pos.IsFlat() {
		return strategy.Decision{}
	}
	if v, _ := r.rsi.At(i); v < r.oversold && r.uptrend[i] {
		return strategy.Decision{Open: ledger.Long}
	}
	return strategy.Decision{}
}
