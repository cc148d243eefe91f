package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/notifier"
	"github.com/newthinker/quantbench/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	series map[string][]core.PriceBar
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) FetchHistory(ctx context.Context, symbol string, start time.Time) ([]core.PriceBar, error) {
	bars, ok := s.series[symbol]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, errors.New(symbol))
	}
	var out []core.PriceBar
	for _, b := range bars {
		if !b.Date.Before(start) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, core.ErrNoData
	}
	return out, nil
}

type mockNotifier struct {
	name     string
	received []core.Signal
}

func (m *mockNotifier) Name() string                   { return m.name }
func (m *mockNotifier) Init(cfg notifier.Config) error { return nil }
func (m *mockNotifier) Send(signal core.Signal) error {
	m.received = append(m.received, signal)
	return nil
}
func (m *mockNotifier) SendBatch(signals []core.Signal) error {
	m.received = append(m.received, signals...)
	return nil
}

// dipSeries oscillates quietly and then drops on the last bar, leaving a
// pending mean-reversion buy.
func dipSeries() []core.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.PriceBar, 40)
	for i := range bars {
		price := 100.0
		if i%2 == 1 {
			price = 101
		}
		bars[i] = core.PriceBar{Date: start.AddDate(0, 0, i), Close: price}
	}
	bars[len(bars)-1].Close = 80
	return bars
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.Data.Provider = "yahoo"
	cfg.Data.StartDate = "2023-01-01"
	cfg.Storage.Archive.Path = dir
	cfg.Storage.Journal.Enabled = true
	cfg.Storage.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Strategies.MACrossover.Enabled = false
	cfg.Strategies.RSITrend.Enabled = false
	cfg.Broker.Enabled = true
	cfg.Broker.Live = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.Textfile = filepath.Join(dir, "quantbench.prom")
	cfg.Watchlist = []core.Instrument{
		{Symbol: "AAPL", Sector: "Tech"},
		{Symbol: "MISS", Sector: "Tech"},
	}
	return cfg
}

func TestApp_Run(t *testing.T) {
	cfg := testConfig(t)
	store, err := archive.NewLocalFS(cfg.Storage.Archive.Path)
	require.NoError(t, err)

	capture := &mockNotifier{name: "capture"}
	var out bytes.Buffer
	runAt := time.Date(2024, 2, 10, 16, 0, 0, 0, time.UTC)

	ctx := context.Background()
	a, err := New(ctx, cfg, nil,
		WithStorage(store),
		WithProvider(&stubProvider{series: map[string][]core.PriceBar{"AAPL": dipSeries()}}),
		WithNotifier(capture),
		WithOutput(&out),
		WithClock(func() time.Time { return runAt }),
	)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Run(ctx)
	require.NoError(t, err)

	s := res.Summary
	require.Len(t, s.Results, 1)
	assert.Equal(t, "AAPL", s.Results[0].Symbol)
	assert.Equal(t, core.ActionBuy, s.Results[0].Pending)

	require.Len(t, s.Failures, 1)
	assert.Equal(t, "MISS", s.Failures[0].Symbol)
	assert.Equal(t, "mean_reversion", s.Failures[0].Strategy)
	assert.ErrorIs(t, s.Failures[0].Err, core.ErrNoData)

	require.Len(t, s.Signals, 1)
	require.Len(t, res.Executions, 1)
	exec := res.Executions[0]
	require.True(t, exec.Succeeded())
	assert.Equal(t, broker.OrderStatusDryRun, exec.Order.Status)

	console := out.String()
	assert.Contains(t, console, "STOCK TRADING ALGORITHM")
	assert.Contains(t, console, "You should BUY AAPL today (Mean Reversion)")
	assert.Contains(t, console, "[TEST MODE] Would buy 1 AAPL")
	assert.Contains(t, console, "BEST PERFORMER")
	assert.Contains(t, console, "MISS/mean_reversion")
	assert.Contains(t, console, "COMPLETE")

	ok, err := store.Exists(ctx, "AAPL_historical.csv")
	require.NoError(t, err)
	assert.True(t, ok, "price cache written")

	data, err := store.Read(ctx, cfg.Backtest.ResultsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), s.RunID)

	ok, err = store.Exists(ctx, RunsPrefix+s.RunID+".json")
	require.NoError(t, err)
	assert.True(t, ok, "run history written")

	runs, err := a.journal.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, s.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Signals)

	orders, err := a.journal.Orders(ctx, s.RunID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "AAPL", orders[0].Symbol)
	assert.Equal(t, string(broker.OrderStatusDryRun), orders[0].Status)

	require.Len(t, capture.received, 1)
	assert.Equal(t, "AAPL", capture.received[0].Symbol)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), "quantbench_runs_total"))
}

func TestApp_RunWithoutSignals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Journal.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Watchlist = cfg.Watchlist[:1]

	flat := dipSeries()
	flat[len(flat)-1].Close = 100

	var out bytes.Buffer
	a, err := New(context.Background(), cfg, nil,
		WithProvider(&stubProvider{series: map[string][]core.PriceBar{"AAPL": flat}}),
		WithOutput(&out),
	)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Summary.Signals)
	assert.Empty(t, res.Executions)
	assert.Contains(t, out.String(), "No trading signals for today")
}

func TestApp_Backtest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Journal.Enabled = false

	a, err := New(context.Background(), cfg, nil, WithProvider(&stubProvider{}))
	require.NoError(t, err)
	defer a.Close()

	inst := core.Instrument{Symbol: "AAPL", Sector: "Tech"}
	res, err := a.Backtest("mean_reversion", inst, dipSeries())
	require.NoError(t, err)
	assert.Equal(t, "Mean Reversion", res.Label)

	_, err = a.Backtest("rsi_trend", inst, dipSeries())
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)

	_, err = a.Backtest("mean_reversion", inst, nil)
	var f backtest.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "mean_reversion", f.Strategy)
	assert.ErrorIs(t, err, core.ErrInvalidSeries)
}

func TestApp_UnknownNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Journal.Enabled = false
	cfg.Notifiers = map[string]config.NotifierConfig{"pager": {Enabled: true}}

	_, err := New(context.Background(), cfg, nil, WithProvider(&stubProvider{}))
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), config.ArchiveConfig{Type: "localfs", Path: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = NewStorage(context.Background(), config.ArchiveConfig{Type: "ftp"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
