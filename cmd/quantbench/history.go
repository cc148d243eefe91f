package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled runs, or the results of one run",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the results of this run")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		j := a.Journal()
		if j == nil {
			return fmt.Errorf("journal is disabled in the configuration")
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		if historyRun != "" {
			rows, err := j.Results(ctx, historyRun)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "SYMBOL\tSECTOR\tSTRATEGY\tPROFIT\tBUY&HOLD\tSHARPE\tWIN RATE\tTRADES\tSIGNAL\t")
			fmt.Fprintln(w, "------\t------\t--------\t------\t--------\t------\t--------\t------\t------\t")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f%%\t%d\t%s\t\n",
					r.Symbol, r.Sector, r.Strategy, r.Profit, r.Benchmark, r.SharpeRatio,
					r.WinRate*100, r.TradeCount, r.Pending)
			}
			return nil
		}

		runs, err := j.Runs(ctx, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "RUN ID\tSTARTED\tSYMBOLS\tRESULTS\tFAILURES\tSIGNALS\t")
		fmt.Fprintln(w, "------\t-------\t-------\t-------\t--------\t-------\t")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Symbols, r.Results, r.Failures, r.Signals)
		}
		log.Debug("runs listed", zap.Int("count", len(runs)))
		return nil
	})
}
