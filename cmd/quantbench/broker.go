package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/quantbench/internal/app"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Broker operations",
	Long:  `Commands for interacting with the order broker and the orders journaled by past runs.`,
}

var brokerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check broker connection status",
	RunE:  runBrokerStatus,
}

var brokerAccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show account balance",
	RunE:  runBrokerAccount,
}

var brokerOrdersCmd = &cobra.Command{
	Use:   "orders [run-id]",
	Short: "List orders submitted by a run (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBrokerOrders,
}

func init() {
	rootCmd.AddCommand(brokerCmd)
	brokerCmd.AddCommand(brokerStatusCmd)
	brokerCmd.AddCommand(brokerAccountCmd)
	brokerCmd.AddCommand(brokerOrdersCmd)
}

// withApp builds the application for one command and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app.App, log *zap.Logger) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	return fn(ctx, a, log)
}

// withBrokerConnection connects the configured broker before calling fn.
func withBrokerConnection(fn func(ctx context.Context, b broker.Broker, log *zap.Logger) error) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		b := a.Broker()
		if b == nil {
			return fmt.Errorf("broker is disabled in the configuration")
		}
		if err := b.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		return fn(ctx, b, log)
	})
}

func runBrokerStatus(cmd *cobra.Command, args []string) error {
	return withBrokerConnection(func(ctx context.Context, b broker.Broker, log *zap.Logger) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Broker: %s\n", b.Name())
		fmt.Fprintf(out, "Status: CONNECTED\n")
		log.Info("broker status checked", zap.String("broker", b.Name()), zap.Bool("connected", b.IsConnected()))
		return nil
	})
}

func runBrokerAccount(cmd *cobra.Command, args []string) error {
	return withBrokerConnection(func(ctx context.Context, b broker.Broker, log *zap.Logger) error {
		bal, err := b.GetBalance(ctx)
		if err != nil {
			return fmt.Errorf("getting balance: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Account Summary")
		fmt.Fprintln(out, "---------------")
		fmt.Fprintf(out, "Broker:       %s\n", b.Name())
		fmt.Fprintf(out, "Total Value:  %s\n", report.Money(bal.TotalValue))
		fmt.Fprintf(out, "Cash:         %s\n", report.Money(bal.Cash))
		fmt.Fprintf(out, "Buying Power: %s\n", report.Money(bal.BuyingPower))

		log.Info("account info displayed")
		return nil
	})
}

func runBrokerOrders(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		j := a.Journal()
		if j == nil {
			return fmt.Errorf("journal is disabled in the configuration")
		}

		var runID string
		if len(args) == 1 {
			runID = args[0]
		} else {
			runs, err := j.Runs(ctx, 1)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}
			runID = runs[0].ID
		}

		orders, err := j.Orders(ctx, runID)
		if err != nil {
			return fmt.Errorf("getting orders: %w", err)
		}
		if len(orders) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No orders found for run %s.\n", runID)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT ID\tSYMBOL\tSIDE\tQTY\tSTRATEGY\tSTATUS\tERROR\t")
		fmt.Fprintln(w, "---------\t------\t----\t---\t--------\t------\t-----\t")
		for _, o := range orders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
				o.ClientOrderID, o.Symbol, o.Side, o.Quantity, o.Strategy, o.Status, o.Error)
		}
		w.Flush()

		log.Info("orders listed", zap.String("run_id", runID), zap.Int("count", len(orders)))
		return nil
	})
}
