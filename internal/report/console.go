package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/broker"
	"github.com/newthinker/quantbench/internal/notifier"
	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rule = strings.Repeat("=", 60)

var printer = message.NewPrinter(language.English)

// Money formats a dollar amount with thousands separators.
func Money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, title, rule)
}

// Console writes the human-readable run report.
type Console struct {
	w      io.Writer
	dryRun bool
}

// NewConsole creates a console report writing to w. dryRun marks executions
// as simulated.
func NewConsole(w io.Writer, dryRun bool) *Console {
	return &Console{w: w, dryRun: dryRun}
}

// Header prints the run banner.
func (c *Console) Header(runAt time.Time, symbols int) {
	fmt.Fprintln(c.w, rule)
	fmt.Fprintln(c.w, "STOCK TRADING ALGORITHM")
	fmt.Fprintf(c.w, "Run Time: %s\n", runAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(c.w, "Symbols: %d\n", symbols)
	fmt.Fprintln(c.w, rule)
}

// Signals prints today's signals followed by the outcome of their orders.
// execs may be nil when order routing is disabled.
func (c *Console) Signals(s Summary, execs []broker.Execution) {
	section(c.w, "TRADING SIGNALS FOR TODAY")
	if len(s.Signals) == 0 {
		fmt.Fprintln(c.w, "No trading signals for today")
		return
	}
	for _, sig := range s.Signals {
		fmt.Fprintln(c.w, notifier.Headline(sig))
	}
	for _, e := range execs {
		fmt.Fprintf(c.w, "  %s\n", c.execution(e))
	}
}

func (c *Console) execution(e broker.Execution) string {
	req := e.Request
	switch {
	case e.Skipped != "":
		return fmt.Sprintf("Order skipped: %s %s (%s)", strings.ToUpper(e.Signal.Action.String()), e.Signal.Symbol, e.Skipped)
	case e.Err != nil:
		return fmt.Sprintf("Order failed: %v", e.Err)
	case c.dryRun:
		return fmt.Sprintf("[TEST MODE] Would %s %d %s", req.Side, req.Quantity, req.Symbol)
	default:
		return fmt.Sprintf("Order submitted: %s %d %s", strings.ToUpper(string(req.Side)), req.Quantity, req.Symbol)
	}
}

// Summary prints the best performer and the per-strategy and per-sector
// tables.
func (c *Console) Summary(s Summary) {
	if s.Best != nil {
		section(c.w, "BEST PERFORMER")
		fmt.Fprintf(c.w, "Stock: %s\n", s.Best.Symbol)
		fmt.Fprintf(c.w, "Strategy: %s\n", s.Best.Strategy)
		fmt.Fprintf(c.w, "Profit: %s\n", Money(s.Best.Profit))
	}

	if len(s.ByStrategy) > 0 {
		section(c.w, "SUMMARY BY STRATEGY")
		tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STRATEGY\tPROFIT\tBUY&HOLD\tAVG SHARPE\tAVG WIN RATE\tTRADES")
		fmt.Fprintln(tw, "--------\t------\t--------\t----------\t------------\t------")
		for _, st := range s.ByStrategy {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f%%\t%d\n",
				st.Strategy, Money(st.Profit), Money(st.BenchmarkProfit),
				st.AvgSharpe, st.AvgWinRate*100, st.Trades)
		}
		tw.Flush()
	}

	if len(s.BySector) > 0 {
		section(c.w, "SUMMARY BY SECTOR")
		tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SECTOR\tPROFIT\tBUY&HOLD\tAVG SHARPE\tAVG WIN RATE")
		fmt.Fprintln(tw, "------\t------\t--------\t----------\t------------")
		for _, sec := range s.BySector {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f%%\n",
				sec.Sector, Money(sec.Profit), Money(sec.BenchmarkProfit),
				sec.AvgSharpe, sec.AvgWinRate*100)
		}
		tw.Flush()
	}

	if len(s.Failures) > 0 {
		section(c.w, "FAILURES")
		for _, f := range s.Failures {
			fmt.Fprintf(c.w, "%s/%s: %s\n", f.Symbol, f.Strategy, errString(f.Err))
		}
	}
}

// Footer closes the report.
func (c *Console) Footer(elapsed time.Duration) {
	fmt.Fprintf(c.w, "\n%s\nCOMPLETE (%s)\n%s\n", rule, elapsed.Round(time.Millisecond), rule)
}

// Result prints the detail of a single simulation.
func (c *Console) Result(r backtest.StrategyResult) {
	section(c.w, fmt.Sprintf("%s - %s", r.Symbol, r.Label))
	fmt.Fprintf(c.w, "Period:        %s to %s\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(c.w, "Final Capital: %s\n", Money(r.FinalCapital))
	fmt.Fprintf(c.w, "Profit:        %s\n", Money(r.Profit))
	fmt.Fprintf(c.w, "Buy & Hold:    %s\n", Money(r.BenchmarkProfit))
	fmt.Fprintf(c.w, "Sharpe Ratio:  %.2f\n", r.SharpeRatio)
	fmt.Fprintf(c.w, "Win Rate:      %.2f%%\n", r.WinRate*100)
	fmt.Fprintf(c.w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(c.w, "Trades:        %d\n", r.TradeCount)
	fmt.Fprintf(c.w, "Signal:        %s\n", strings.ToUpper(r.Pending.String()))
	if len(r.Equity) > 0 {
		fmt.Fprintf(c.w, "Equity:        low %s, high %s over %d bars\n",
			Money(lo.Min(r.Equity)), Money(lo.Max(r.Equity)), len(r.Equity)-1)
	}

	if len(r.Trades) == 0 {
		return
	}
	fmt.Fprintln(c.w)
	tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIDE\tSIZE\tENTRY\tEXIT\tPROFIT\tREASON")
	fmt.Fprintln(tw, "----\t----\t-----\t----\t------\t------")
	for _, t := range r.Trades {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%s\t%s\n",
			t.Side, t.Size, t.EntryPrice, t.ExitPrice, Money(t.Profit), t.Reason)
	}
	tw.Flush()
}
