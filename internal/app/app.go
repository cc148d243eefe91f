// Package app wires the configured components into one backtest run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/id"
	"github.com/newthinker/quantbench/internal/metrics"
	"github.com/newthinker/quantbench/internal/notifier"
	"github.com/newthinker/quantbench/internal/report"
	"github.com/newthinker/quantbench/internal/storage/archive"
	"github.com/newthinker/quantbench/internal/storage/journal"
	"github.com/newthinker/quantbench/internal/storage/pricecache"
	"github.com/newthinker/quantbench/internal/strategy"
	"go.uber.org/zap"
)

// RunsPrefix is the archive prefix holding one summary per run.
const RunsPrefix = "runs/"

// App is the main application orchestrator
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	now    func() time.Time

	store      archive.Storage
	provider   collector.HistoryProvider
	cache      *pricecache.Cache
	sims       []strategy.Simulator
	registry   *strategy.Registry
	backtester *backtest.Backtester
	broker     broker.Broker
	executor   *broker.Executor
	notifiers  *notifier.Registry
	journal    *journal.SQLite
	metrics    *metrics.Registry
}

// Option customizes an App.
type Option func(*App)

// WithOutput sets where the console report is written.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithStorage uses s instead of the configured archive backend.
func WithStorage(s archive.Storage) Option {
	return func(a *App) { a.store = s }
}

// WithProvider uses p instead of the configured price provider.
func WithProvider(p collector.HistoryProvider) Option {
	return func(a *App) { a.provider = p }
}

// WithBroker uses b instead of the configured broker.
func WithBroker(b broker.Broker) Option {
	return func(a *App) { a.broker = b }
}

// WithNotifier registers n in addition to the configured notifiers.
func WithNotifier(n notifier.Notifier) Option {
	return func(a *App) {
		if a.notifiers == nil {
			a.notifiers = notifier.NewRegistry()
		}
		a.notifiers.Register(n)
	}
}

// New builds an App from a validated configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	var err error
	if a.store == nil {
		if a.store, err = NewStorage(ctx, cfg.Storage.Archive); err != nil {
			return nil, fmt.Errorf("opening archive: %w", err)
		}
	}
	if a.provider == nil {
		if a.provider, err = a.providers().Get(cfg.Data.Provider); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	start, err := cfg.Data.Start()
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	a.cache = pricecache.New(a.store, a.provider, start, logger)

	if a.sims, err = cfg.Simulators(); err != nil {
		return nil, err
	}
	a.registry = strategy.NewRegistry(a.sims...)
	btOpts := []backtest.Option{
		backtest.WithLogger(logger),
		backtest.WithWorkers(cfg.Backtest.Workers),
	}
	if a.metrics != nil {
		btOpts = append(btOpts, backtest.WithObserver(a.metrics))
	}
	a.backtester = backtest.New(btOpts...)

	if cfg.Broker.Enabled {
		if a.broker == nil {
			if a.broker, err = a.newBroker(); err != nil {
				return nil, err
			}
		}
		a.executor = broker.NewExecutor(broker.ExecutorConfig{
			Quantity: cfg.Broker.Quantity,
			Risk: broker.RiskConfig{
				MaxOrders:   cfg.Broker.MaxOrders,
				MaxOrderPct: cfg.Broker.MaxOrderPct,
			},
		}, a.broker, logger)
	}

	configured, err := a.newNotifiers()
	if err != nil {
		return nil, err
	}
	if a.notifiers == nil {
		a.notifiers = configured
	} else {
		for _, n := range configured.GetAll() {
			if err := a.notifiers.Register(n); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Storage.Journal.Enabled {
		if a.journal, err = journal.NewSQLite(cfg.Storage.Journal.Path); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Close releases the broker connection and the journal.
func (a *App) Close() error {
	var errs []error
	if a.broker != nil && a.broker.IsConnected() {
		errs = append(errs, a.broker.Disconnect())
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if c, ok := a.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Result is the outcome of one run.
type Result struct {
	Summary    report.Summary
	Executions []broker.Execution
}

// Run loads every watchlist series, simulates every (symbol, strategy) pair
// and reports, persists and routes the outcome. Only a failure to persist
// the summary fails the run; order, journal, metrics and notification
// errors are logged.
func (a *App) Run(ctx context.Context) (*Result, error) {
	started := a.now()
	runID := id.At(started)
	log := a.logger.With(zap.String("run_id", runID))

	console := report.NewConsole(a.out, !a.cfg.Broker.Live)
	console.Header(started, len(a.cfg.Watchlist))
	if a.metrics != nil {
		a.metrics.SetWatchlistSize(len(a.cfg.Watchlist))
	}

	jobs, loadFailures := a.load(ctx)
	rep := a.backtester.RunAll(ctx, jobs, a.sims)
	rep.Failures = append(loadFailures, rep.Failures...)

	summary := report.Assemble(runID, started, rep)
	res := &Result{Summary: summary}

	if a.executor != nil && len(summary.Signals) > 0 {
		execs, err := a.executor.Submit(ctx, summary.Signals)
		if err != nil {
			log.Error("order submission failed", zap.Error(err))
		}
		res.Executions = execs
		a.recordOrders(ctx, log, runID, execs)
	}

	console.Signals(summary, res.Executions)
	console.Summary(summary)

	if err := a.persist(ctx, summary); err != nil {
		a.finish(log, "error", started)
		return res, err
	}

	if a.journal != nil {
		run := journal.Run{
			ID:         runID,
			StartedAt:  started,
			FinishedAt: a.now(),
			Symbols:    len(a.cfg.Watchlist),
			Results:    len(rep.Results),
			Failures:   len(rep.Failures),
			Signals:    len(summary.Signals),
		}
		if err := a.journal.RecordRun(ctx, run, rep); err != nil {
			log.Error("journal write failed", zap.Error(err))
		}
	}

	a.notify(log, summary.Signals)

	status := "success"
	if len(rep.Failures) > 0 {
		status = "partial"
	}
	a.finish(log, status, started)
	console.Footer(a.now().Sub(started))

	return res, nil
}

// load fetches every watchlist series. A symbol whose series cannot be
// loaded fails every enabled strategy.
func (a *App) load(ctx context.Context) ([]backtest.Job, []backtest.Failure) {
	var (
		jobs     []backtest.Job
		failures []backtest.Failure
	)
	for _, inst := range a.cfg.Watchlist {
		bars, err := a.cache.Load(ctx, inst.Symbol)
		if err != nil {
			a.logger.Warn("skipping symbol",
				zap.String("symbol", inst.Symbol),
				zap.Error(err),
			)
			for _, sim := range a.sims {
				failures = append(failures, backtest.Failure{
					Symbol:   inst.Symbol,
					Sector:   inst.Sector,
					Strategy: sim.Name(),
					Err:      err,
				})
			}
			continue
		}
		a.logger.Debug("series loaded", zap.String("symbol", inst.Symbol), zap.Int("bars", len(bars)))
		jobs = append(jobs, backtest.Job{Instrument: inst, Bars: bars})
	}
	return jobs, failures
}

// persist writes the summary to the configured results file and to the
// per-run history.
func (a *App) persist(ctx context.Context, s report.Summary) error {
	if err := report.Persist(ctx, a.store, a.cfg.Backtest.ResultsFile, s); err != nil {
		return err
	}
	return report.Persist(ctx, a.store, RunsPrefix+s.RunID+".json", s)
}

func (a *App) recordOrders(ctx context.Context, log *zap.Logger, runID string, execs []broker.Execution) {
	name := a.broker.Name()
	for _, e := range execs {
		o := journal.Order{
			RunID:         runID,
			ClientOrderID: e.Request.ClientOrderID,
			Symbol:        e.Signal.Symbol,
			Side:          string(e.Request.Side),
			Quantity:      e.Request.Quantity,
			Strategy:      e.Signal.Strategy,
			CreatedAt:     a.now(),
		}
		switch {
		case e.Skipped != "":
			o.Status = "skipped"
			o.Error = e.Skipped
		case e.Err != nil:
			o.Status = "failed"
			o.Error = e.Err.Error()
		default:
			o.Status = string(e.Order.Status)
			o.BrokerOrderID = e.Order.OrderID
		}

		if a.metrics != nil {
			a.metrics.RecordOrder(name, o.Status)
		}
		if a.journal != nil {
			if err := a.journal.RecordOrder(ctx, o); err != nil {
				log.Error("journal order write failed", zap.String("symbol", o.Symbol), zap.Error(err))
			}
		}
	}
}

func (a *App) notify(log *zap.Logger, signals []core.Signal) {
	if a.notifiers.Len() == 0 || len(signals) == 0 {
		return
	}
	errs := a.notifiers.NotifyAllBatch(signals)
	for _, n := range a.notifiers.GetAll() {
		status := "success"
		if err := errs[n.Name()]; err != nil {
			status = "failed"
			log.Error("notification failed", zap.String("notifier", n.Name()), zap.Error(err))
		}
		if a.metrics != nil {
			a.metrics.RecordSignalRouted(n.Name(), status)
		}
	}
}

func (a *App) finish(log *zap.Logger, status string, started time.Time) {
	finished := a.now()
	log.Info("run finished",
		zap.String("status", status),
		zap.Duration("elapsed", finished.Sub(started)),
	)
	if a.metrics == nil {
		return
	}
	a.metrics.RecordRun(status, finished.Sub(started), finished)
	if path := strings.TrimSpace(a.cfg.Metrics.Textfile); path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			log.Warn("writing metrics textfile failed", zap.String("path", path), zap.Error(err))
		}
	}
}

// Backtest simulates one strategy on a single series.
func (a *App) Backtest(name string, inst core.Instrument, bars []core.PriceBar) (backtest.StrategyResult, error) {
	sim, err := a.registry.Get(name)
	if err != nil {
		return backtest.StrategyResult{}, err
	}
	return a.backtester.Run(sim, inst, bars)
}

// LoadSeries returns the cached-and-refreshed series of one symbol.
func (a *App) LoadSeries(ctx context.Context, symbol string) ([]core.PriceBar, error) {
	return a.cache.Load(ctx, symbol)
}

// Console returns a console report writer on the app's output.
func (a *App) Console() *report.Console {
	return report.NewConsole(a.out, !a.cfg.Broker.Live)
}

// Broker returns the order broker, or nil when order routing is disabled.
func (a *App) Broker() broker.Broker {
	return a.broker
}

// Journal returns the run journal, or nil when it is disabled.
func (a *App) Journal() *journal.SQLite {
	return a.journal
}
