package journal

// Schema creates the journal tables. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	symbols       INTEGER NOT NULL,
	results       INTEGER NOT NULL,
	failures      INTEGER NOT NULL,
	signals       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL REFERENCES runs(run_id),
	symbol          TEXT NOT NULL,
	sector          TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	profit          REAL NOT NULL,
	benchmark       REAL NOT NULL,
	sharpe          REAL NOT NULL,
	win_rate        REAL NOT NULL,
	trade_count     INTEGER NOT NULL,
	max_drawdown    REAL NOT NULL,
	final_capital   REAL NOT NULL,
	pending         TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);

CREATE TABLE IF NOT EXISTS trades (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES runs(run_id),
	symbol        TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	side          TEXT NOT NULL,
	size          INTEGER NOT NULL,
	entry_price   REAL NOT NULL,
	exit_price    REAL NOT NULL,
	entry_index   INTEGER NOT NULL,
	exit_index    INTEGER NOT NULL,
	profit        REAL NOT NULL,
	reason        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, symbol);

CREATE TABLE IF NOT EXISTS failures (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	symbol      TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	error       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	client_order_id  TEXT NOT NULL,
	broker_order_id  TEXT,
	symbol           TEXT NOT NULL,
	side             TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	strategy         TEXT NOT NULL,
	status           TEXT NOT NULL,
	error            TEXT,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_run ON orders(run_id);
`
