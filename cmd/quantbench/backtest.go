package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/config"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/pricecache"
	"github.com/spf13/cobra"
)

var (
	backtestSymbol string
	backtestCSV    string
	backtestFrom   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long: `Run one strategy (mean_reversion, ma_crossover or rsi_trend) against the
daily closes of one symbol and show performance statistics and trades.
Prices come from the price cache, or from a Date,Close CSV with --csv.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestCSV, "csv", "", "Read prices from a Date,Close CSV file")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Only use bars on or after YYYY-MM-DD")

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	name := args[0]

	var from time.Time
	if backtestFrom != "" {
		var err error
		from, err = time.Parse(config.DateLayout, backtestFrom)
		if err != nil {
			return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
		}
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, app.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	var bars []core.PriceBar
	if backtestCSV != "" {
		data, err := os.ReadFile(backtestCSV)
		if err != nil {
			return fmt.Errorf("reading %s: %w", backtestCSV, err)
		}
		if bars, err = pricecache.Decode(data); err != nil {
			return fmt.Errorf("parsing %s: %w", backtestCSV, err)
		}
	} else {
		if bars, err = a.LoadSeries(ctx, backtestSymbol); err != nil {
			return fmt.Errorf("loading %s: %w", backtestSymbol, err)
		}
	}
	bars = since(bars, from)

	inst := core.Instrument{Symbol: backtestSymbol}
	for _, w := range cfg.Watchlist {
		if w.Symbol == backtestSymbol {
			inst = w
			break
		}
	}

	res, err := a.Backtest(name, inst, bars)
	if err != nil {
		return err
	}
	a.Console().Result(res)
	return nil
}

func since(bars []core.PriceBar, from time.Time) []core.PriceBar {
	if from.IsZero() {
		return bars
	}
	for i, b := range bars {
		if !b.Date.Before(from) {
			return bars[i:]
		}
	}
	return nil
}
