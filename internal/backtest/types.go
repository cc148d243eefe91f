package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/ledger"
)

// Job is one instrument's loaded price series.
type Job struct {
	Instrument core.Instrument
	Bars       []core.PriceBar
}

// Stats holds the summary statistics of one simulation.
type Stats struct {
	Profit          float64 // final capital minus initial capital
	BenchmarkProfit float64 // buy-and-hold profit over the same bars
	SharpeRatio     float64 // annualized, risk-free rate 0
	WinRate         float64 // fraction of trades with positive profit, 0..1
	TradeCount      int
	MaxDrawdown     float64 // largest peak-to-trough equity decline, 0..1
}

// StrategyResult is the outcome of one (symbol, strategy) pair.
type StrategyResult struct {
	Symbol   string
	Sector   string
	Strategy string // simulator name
	Label    string // simulator description used in reports
	Stats
	FinalCapital float64
	Pending      core.Action
	StartDate    time.Time
	EndDate      time.Time
	LastPrice    float64

	Trades []ledger.Trade
	Equity []float64
}

// Signal returns the pending signal left on the final bar, if any.
func (r StrategyResult) Signal() (core.Signal, bool) {
	if r.Pending.IsNone() {
		return core.Signal{}, false
	}
	return core.Signal{
		Symbol:   r.Symbol,
		Sector:   r.Sector,
		Strategy: r.Label,
		Action:   r.Pending,
		Price:    r.LastPrice,
		Date:     r.EndDate,
	}, true
}

// Failure is a (symbol, strategy) pair that could not be simulated.
type Failure struct {
	Symbol   string
	Sector   string
	Strategy string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.Symbol, f.Strategy, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report collects the results and failures of a batch run in job order.
type Report struct {
	Results  []StrategyResult
	Failures []Failure
}

// Signals lists the pending signals of all results.
func (r Report) Signals() []core.Signal {
	var out []core.Signal
	for _, res := range r.Results {
		if sig, ok := res.Signal(); ok {
			out = append(out, sig)
		}
	}
	return out
}
