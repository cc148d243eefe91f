package journal

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func sampleReport() backtest.Report {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return backtest.Report{
		Results: []backtest.StrategyResult{
			{
				Symbol:   "AAPL",
				Sector:   "Technology",
				Strategy: "mean_reversion",
				Label:    "Mean Reversion",
				Stats: backtest.Stats{
					Profit:      333,
					SharpeRatio: 1.2,
					WinRate:     1,
					TradeCount:  1,
				},
				FinalCapital: 1333,
				StartDate:    start,
				EndDate:      start.AddDate(0, 0, 4),
				Trades: []ledger.Trade{
					{Side: ledger.Long, Size: 111, EntryPrice: 9, ExitPrice: 12, EntryIndex: 3, ExitIndex: 4, Profit: 333, Reason: ledger.ExitSignal},
				},
			},
			{
				Symbol:   "AAPL",
				Sector:   "Technology",
				Strategy: "ma_crossover",
				Label:    "SMA Crossover",
				Pending:  core.ActionBuy,
			},
		},
		Failures: []backtest.Failure{
			{Symbol: "ZZZ", Strategy: "rsi_trend", Err: errors.New("no data")},
		},
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, table := range []string{"runs", "results", "trades", "failures", "orders"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteReopenKeepsSchema(t *testing.T) {
	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	again, err := NewSQLite(path)
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}

func TestSQLiteRecordRun(t *testing.T) {
	j, path := newTestSQLite(t)
	ctx := context.Background()

	started := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	run := Run{ID: "01HRUN", StartedAt: started, FinishedAt: started.Add(time.Minute), Symbols: 2}
	require.NoError(t, j.RecordRun(ctx, run, sampleReport()))

	runs, err := j.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "01HRUN", runs[0].ID)
	assert.Equal(t, 2, runs[0].Results)
	assert.Equal(t, 1, runs[0].Failures)
	assert.Equal(t, 1, runs[0].Signals)
	assert.True(t, started.Equal(runs[0].StartedAt))

	results, err := j.Results(ctx, "01HRUN")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mean_reversion", results[0].Strategy)
	assert.InDelta(t, 333, results[0].Profit, 1e-9)
	assert.Equal(t, "buy", results[1].Pending)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var trades int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trades WHERE run_id = ?`, "01HRUN").Scan(&trades))
	assert.Equal(t, 1, trades)

	var reason string
	require.NoError(t, db.QueryRow(`SELECT reason FROM trades WHERE run_id = ?`, "01HRUN").Scan(&reason))
	assert.Equal(t, "signal", reason)
}

func TestSQLiteRecordRun_DuplicateIDRollsBack(t *testing.T) {
	j, _ := newTestSQLite(t)
	ctx := context.Background()

	run := Run{ID: "01HDUP", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, j.RecordRun(ctx, run, sampleReport()))

	err := j.RecordRun(ctx, run, sampleReport())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistFailed)

	results, err := j.Results(ctx, "01HDUP")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSQLiteRecordOrder(t *testing.T) {
	j, _ := newTestSQLite(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordOrder(ctx, Order{
		RunID:         "01HRUN",
		ClientOrderID: "c-1",
		Symbol:        "AAPL",
		Side:          "buy",
		Quantity:      1,
		Strategy:      "SMA Crossover",
		Status:        "dry_run",
		CreatedAt:     created,
	}))

	orders, err := j.Orders(ctx, "01HRUN")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "c-1", orders[0].ClientOrderID)
	assert.Equal(t, "", orders[0].BrokerOrderID)
	assert.Equal(t, int64(1), orders[0].Quantity)
	assert.True(t, created.Equal(orders[0].CreatedAt))
}
