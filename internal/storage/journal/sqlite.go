// Package journal records every batch run, its per-pair results, trades and
// submitted orders in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
)

const dateLayout = "2006-01-02"

// Run describes one batch run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Symbols    int
	Results    int
	Failures   int
	Signals    int
}

// Order is one order submitted for a pending signal.
type Order struct {
	RunID         string
	ClientOrderID string
	BrokerOrderID string
	Symbol        string
	Side          string
	Quantity      int64
	Strategy      string
	Status        string
	Error         string
	CreatedAt     time.Time
}

// ResultRow is the stored summary of one (symbol, strategy) pair.
type ResultRow struct {
	Symbol      string
	Sector      string
	Strategy    string
	Profit      float64
	Benchmark   float64
	SharpeRatio float64
	WinRate     float64
	TradeCount  int
	MaxDrawdown float64
	Pending     string
}

// SQLite is a journal backed by a SQLite file.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens (or creates) the journal at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, core.WrapError(core.ErrPersistFailed, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrPersistFailed, fmt.Errorf("creating schema: %w", err))
	}
	return &SQLite{db: db}, nil
}

// RecordRun stores a run and the full contents of its report in one transaction.
func (j *SQLite) RecordRun(ctx context.Context, run Run, rep backtest.Report) (err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrPersistFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = core.WrapError(core.ErrPersistFailed, err)
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, symbols, results, failures, signals)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
		run.Symbols, len(rep.Results), len(rep.Failures), len(rep.Signals()),
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, r := range rep.Results {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO results (run_id, symbol, sector, strategy, profit, benchmark, sharpe, win_rate,
			 trade_count, max_drawdown, final_capital, pending, start_date, end_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, r.Symbol, r.Sector, r.Strategy, r.Profit, r.BenchmarkProfit, r.SharpeRatio, r.WinRate,
			r.TradeCount, r.MaxDrawdown, r.FinalCapital, string(r.Pending),
			r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		); err != nil {
			return fmt.Errorf("inserting result %s/%s: %w", r.Symbol, r.Strategy, err)
		}
		for _, t := range r.Trades {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO trades (run_id, symbol, strategy, side, size, entry_price, exit_price,
				 entry_index, exit_index, profit, reason)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, r.Symbol, r.Strategy, string(t.Side), t.Size, t.EntryPrice, t.ExitPrice,
				t.EntryIndex, t.ExitIndex, t.Profit, string(t.Reason),
			); err != nil {
				return fmt.Errorf("inserting trade: %w", err)
			}
		}
	}

	for _, f := range rep.Failures {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, symbol, strategy, error) VALUES (?, ?, ?, ?)`,
			run.ID, f.Symbol, f.Strategy, f.Err.Error(),
		); err != nil {
			return fmt.Errorf("inserting failure: %w", err)
		}
	}

	return tx.Commit()
}

// RecordOrder stores one submitted order.
func (j *SQLite) RecordOrder(ctx context.Context, o Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO orders (run_id, client_order_id, broker_order_id, symbol, side, quantity, strategy,
		 status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.ClientOrderID, o.BrokerOrderID, o.Symbol, o.Side, o.Quantity, o.Strategy,
		o.Status, o.Error, o.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return core.WrapError(core.ErrPersistFailed, err)
	}
	return nil
}

// Runs lists the most recent runs, newest first.
func (j *SQLite) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, symbols, results, failures, signals
		 FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Symbols, &r.Results, &r.Failures, &r.Signals); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Results returns the stored results of a run in insertion order.
func (j *SQLite) Results(ctx context.Context, runID string) ([]ResultRow, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT symbol, sector, strategy, profit, benchmark, sharpe, win_rate, trade_count, max_drawdown, pending
		 FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.Symbol, &r.Sector, &r.Strategy, &r.Profit, &r.Benchmark,
			&r.SharpeRatio, &r.WinRate, &r.TradeCount, &r.MaxDrawdown, &r.Pending); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Orders returns the orders recorded for a run.
func (j *SQLite) Orders(ctx context.Context, runID string) ([]Order, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, client_order_id, COALESCE(broker_order_id, ''), symbol, side, quantity, strategy,
		 status, COALESCE(error, ''), created_at
		 FROM orders WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			o       Order
			created string
		)
		if err := rows.Scan(&o.RunID, &o.ClientOrderID, &o.BrokerOrderID, &o.Symbol, &o.Side, &o.Quantity,
			&o.Strategy, &o.Status, &o.Error, &created); err != nil {
			return nil, err
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *SQLite) Close() error {
	return j.db.Close()
}
