package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/ledger"
	"github.com/newthinker/quantbench/internal/strategy"
	"github.com/newthinker/quantbench/internal/strategy/ma_crossover"
	"github.com/newthinker/quantbench/internal/strategy/mean_reversion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSimulator returns a canned outcome or error.
type mockSimulator struct {
	name    string
	outcome strategy.Outcome
	err     error
	panics  bool
}

func (m *mockSimulator) Name() string        { return m.name }
func (m *mockSimulator) Description() string { return "Mock " + m.name }
func (m *mockSimulator) RequiredBars() int   { return 1 }

func (m *mockSimulator) Simulate(prices []float64) (strategy.Outcome, error) {
	if m.panics {
		panic("boom")
	}
	return m.outcome, m.err
}

type recordingObserver struct {
	mu    sync.Mutex
	ok    int
	fails int
}

func (r *recordingObserver) ObserveSimulation(_ string, _ time.Duration, res *StrategyResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.fails++
		return
	}
	r.ok++
}

func bars(closes ...float64) []core.PriceBar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]core.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = core.PriceBar{Date: base.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestBacktester_Run(t *testing.T) {
	sim := &mockSimulator{
		name: "mock",
		outcome: strategy.Outcome{
			InitialCapital: 10000,
			FinalCapital:   10500,
			Equity:         []float64{10000, 10000, 10200, 10500},
			Trades:         []ledger.Trade{{Profit: 500}},
			Pending:        core.ActionBuy,
		},
	}
	inst := core.Instrument{Symbol: "AAPL", Sector: "Tech"}

	result, err := New().Run(sim, inst, bars(100, 120, 150))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, "Tech", result.Sector)
	assert.Equal(t, "mock", result.Strategy)
	assert.Equal(t, "Mock mock", result.Label)
	assert.Equal(t, 500.0, result.Profit)
	assert.Equal(t, 5000.0, result.BenchmarkProfit)
	assert.Equal(t, 1.0, result.WinRate)
	assert.Equal(t, 1, result.TradeCount)
	assert.Equal(t, 150.0, result.LastPrice)

	sig, ok := result.Signal()
	require.True(t, ok)
	assert.Equal(t, core.ActionBuy, sig.Action)
	assert.Equal(t, "Mock mock", sig.Strategy)
	assert.Equal(t, result.EndDate, sig.Date)
}

func TestBacktester_Run_InvalidSeries(t *testing.T) {
	sim := &mockSimulator{name: "mock"}
	inst := core.Instrument{Symbol: "BAD", Sector: "X"}

	_, err := New().Run(sim, inst, bars(10, -1, 12))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))

	var f Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "BAD", f.Symbol)
	assert.Equal(t, "mock", f.Strategy)
}

func TestBacktester_Run_SimulatorError(t *testing.T) {
	sim := &mockSimulator{name: "mock", err: errors.New("bad state")}

	_, err := New().Run(sim, core.Instrument{Symbol: "AAPL"}, bars(10, 11))
	assert.True(t, errors.Is(err, core.ErrSimulationFailed))
}

func TestBacktester_Run_RecoversPanic(t *testing.T) {
	sim := &mockSimulator{name: "mock", panics: true}

	_, err := New().Run(sim, core.Instrument{Symbol: "AAPL"}, bars(10, 11))
	assert.True(t, errors.Is(err, core.ErrSimulationFailed))
}

func TestBacktester_RunAll(t *testing.T) {
	mr, err := mean_reversion.New(mean_reversion.Params{
		Lookback:  3,
		Threshold: 1.0,
		Risk:      strategy.Risk{InitialCapital: 1000, PositionSize: 1, StopLoss: 0.05, TakeProfit: 0.5, Sizing: strategy.SizingCompounding},
	})
	require.NoError(t, err)
	mac, err := ma_crossover.New(ma_crossover.Params{
		FastPeriod: 2,
		SlowPeriod: 4,
		Risk:       strategy.Risk{InitialCapital: 1000, PositionSize: 1, StopLoss: 0.5, TakeProfit: 1, Sizing: strategy.SizingFixed},
	})
	require.NoError(t, err)

	jobs := []Job{
		{Instrument: core.Instrument{Symbol: "AAA", Sector: "Tech"}, Bars: bars(10, 10, 10, 10, 20)},
		{Instrument: core.Instrument{Symbol: "BBB", Sector: "ETF"}, Bars: bars(10, 9, 8, 7, 8, 10, 12, 14, 12, 11, 8, 6)},
		{Instrument: core.Instrument{Symbol: "CCC", Sector: "ETF"}, Bars: nil},
	}

	obs := &recordingObserver{}
	report := New(WithWorkers(2), WithObserver(obs)).RunAll(context.Background(), jobs, []strategy.Simulator{mr, mac})

	require.Len(t, report.Results, 4)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 4, obs.ok)
	assert.Equal(t, 2, obs.fails)

	// job order then simulator order
	assert.Equal(t, "AAA", report.Results[0].Symbol)
	assert.Equal(t, "mean_reversion", report.Results[0].Strategy)
	assert.Equal(t, "AAA", report.Results[1].Symbol)
	assert.Equal(t, "ma_crossover", report.Results[1].Strategy)
	assert.Equal(t, "BBB", report.Results[3].Symbol)
	assert.Equal(t, 550.0, report.Results[3].Profit)

	for _, f := range report.Failures {
		assert.Equal(t, "CCC", f.Symbol)
		assert.True(t, errors.Is(f, core.ErrInvalidSeries))
	}

	// both strategies enter on the final AAA bar
	signals := report.Signals()
	require.Len(t, signals, 2)
	assert.Equal(t, "AAA", signals[0].Symbol)
	assert.Equal(t, core.ActionSell, signals[0].Action)
	assert.Equal(t, "Mean Reversion", signals[0].Strategy)
	assert.Equal(t, core.ActionBuy, signals[1].Action)
	assert.Equal(t, "SMA Crossover", signals[1].Strategy)
}

func TestBacktester_RunAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{Instrument: core.Instrument{Symbol: "AAPL"}, Bars: bars(10, 11)}}
	report := New().RunAll(ctx, jobs, []strategy.Simulator{&mockSimulator{name: "mock"}})

	assert.Empty(t, report.Results)
	require.Len(t, report.Failures, 1)
	assert.True(t, errors.Is(report.Failures[0], context.Canceled))
}

func TestBacktester_RunAll_Deterministic(t *testing.T) {
	mr, err := mean_reversion.New(mean_reversion.Params{
		Lookback:  3,
		Threshold: 0.5,
		Risk:      strategy.Risk{InitialCapital: 1000, PositionSize: 0.5, StopLoss: 0.05, TakeProfit: 0.03, Sizing: strategy.SizingCompounding},
	})
	require.NoError(t, err)

	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = Job{
			Instrument: core.Instrument{Symbol: string(rune('A' + i))},
			Bars:       bars(10, 11, 12, 9, 8, 10, 13, 12, 9, 11, 14, float64(10+i)),
		}
	}

	first := New(WithWorkers(4)).RunAll(context.Background(), jobs, []strategy.Simulator{mr})
	second := New(WithWorkers(1)).RunAll(context.Background(), jobs, []strategy.Simulator{mr})
	assert.Equal(t, first, second)
}

func TestFailure_Error(t *testing.T) {
	f := Failure{Symbol: "AAPL", Strategy: "rsi_trend", Err: errors.New("boom")}
	assert.Equal(t, "AAPL/rsi_trend: boom", f.Error())
}
