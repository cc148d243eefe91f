package backtest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Observer receives one notification per simulated pair.
type Observer interface {
	ObserveSimulation(strategy string, elapsed time.Duration, result *StrategyResult, err error)
}

// Backtester runs simulators over loaded price series.
type Backtester struct {
	logger   *zap.Logger
	workers  int
	observer Observer
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithWorkers bounds the number of concurrent simulations; n <= 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backtester) {
		b.workers = n
	}
}

// WithObserver registers a per-simulation observer.
func WithObserver(o Observer) Option {
	return func(b *Backtester) {
		b.observer = o
	}
}

// New creates a new Backtester
func New(opts ...Option) *Backtester {
	b := &Backtester{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers <= 0 {
		b.workers = runtime.GOMAXPROCS(0)
	}
	return b
}

// Run simulates one strategy over one instrument's bars. Malformed input and
// simulator faults come back as errors tied to the pair.
func (b *Backtester) Run(sim strategy.Simulator, inst core.Instrument, bars []core.PriceBar) (result StrategyResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = core.WrapError(core.ErrSimulationFailed, fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			err = Failure{Symbol: inst.Symbol, Sector: inst.Sector, Strategy: sim.Name(), Err: err}
		}
		if b.observer != nil {
			if err != nil {
				b.observer.ObserveSimulation(sim.Name(), time.Since(start), nil, err)
			} else {
				b.observer.ObserveSimulation(sim.Name(), time.Since(start), &result, nil)
			}
		}
	}()

	if err := core.ValidateSeries(bars); err != nil {
		return StrategyResult{}, err
	}

	prices := core.Closes(bars)
	outcome, err := sim.Simulate(prices)
	if err != nil {
		return StrategyResult{}, core.WrapError(core.ErrSimulationFailed, err)
	}

	last := len(bars) - 1
	return StrategyResult{
		Symbol:       inst.Symbol,
		Sector:       inst.Sector,
		Strategy:     sim.Name(),
		Label:        sim.Description(),
		Stats:        CalculateStats(outcome.InitialCapital, outcome.FinalCapital, prices, outcome.Equity, outcome.Trades),
		FinalCapital: outcome.FinalCapital,
		Pending:      outcome.Pending,
		StartDate:    bars[0].Date,
		EndDate:      bars[last].Date,
		LastPrice:    bars[last].Close,
		Trades:       outcome.Trades,
		Equity:       outcome.Equity,
	}, nil
}

// RunAll simulates every (job, simulator) pair on a bounded worker pool.
// Results and failures are returned in job order, then simulator order.
// Pairs not yet started when ctx is cancelled are reported as failures.
func (b *Backtester) RunAll(ctx context.Context, jobs []Job, sims []strategy.Simulator) Report {
	type slot struct {
		result StrategyResult
		err    error
	}
	slots := make([]slot, len(jobs)*len(sims))

	b.logger.Info("starting backtest run",
		zap.Int("instruments", len(jobs)),
		zap.Int("strategies", len(sims)),
		zap.Int("workers", b.workers),
	)

	p := pool.New().WithMaxGoroutines(b.workers)
	for ji, job := range jobs {
		for si, sim := range sims {
			idx := ji*len(sims) + si
			job, sim := job, sim
			p.Go(func() {
				if err := ctx.Err(); err != nil {
					slots[idx].err = Failure{Symbol: job.Instrument.Symbol, Sector: job.Instrument.Sector, Strategy: sim.Name(), Err: err}
					return
				}
				slots[idx].result, slots[idx].err = b.Run(sim, job.Instrument, job.Bars)
			})
		}
	}
	p.Wait()

	var report Report
	for _, s := range slots {
		if s.err != nil {
			f, ok := s.err.(Failure)
			if !ok {
				f = Failure{Err: s.err}
			}
			b.logger.Warn("simulation failed",
				zap.String("symbol", f.Symbol),
				zap.String("strategy", f.Strategy),
				zap.Error(f.Err),
			)
			report.Failures = append(report.Failures, f)
			continue
		}
		b.logger.Debug("simulation complete",
			zap.String("symbol", s.result.Symbol),
			zap.String("strategy", s.result.Strategy),
			zap.Int("bars", len(s.result.Equity)-1),
			zap.Int("trades", s.result.TradeCount),
			zap.Float64("profit", s.result.Profit),
		)
		report.Results = append(report.Results, s.result)
	}

	b.logger.Info("backtest run complete",
		zap.Int("results", len(report.Results)),
		zap.Int("failures", len(report.Failures)),
	)
	return report
}
