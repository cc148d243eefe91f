// Package report assembles batch results into the console report and the
// persisted JSON summary.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/samber/lo"
)

// BestPerformer is the pair with the highest profit.
type BestPerformer struct {
	Symbol   string
	Strategy string
	Profit   float64
}

// StrategySummary aggregates all results of one strategy.
type StrategySummary struct {
	Strategy        string
	Profit          float64 // sum over symbols
	BenchmarkProfit float64 // sum over symbols
	AvgSharpe       float64
	AvgWinRate      float64
	Trades          int
	Symbols         int
}

// SectorSummary aggregates all results of one sector.
type SectorSummary struct {
	Sector          string
	Profit          float64
	BenchmarkProfit float64
	AvgSharpe       float64
	AvgWinRate      float64
}

// Summary is everything a run reports.
type Summary struct {
	RunID      string
	Timestamp  time.Time
	Best       *BestPerformer
	ByStrategy []StrategySummary // in order of first appearance
	BySector   []SectorSummary   // by profit, highest first
	Results    []backtest.StrategyResult
	Failures   []backtest.Failure
	Signals    []core.Signal
}

// Assemble builds the summary of a batch report. Values stay unrounded.
func Assemble(runID string, ts time.Time, rep backtest.Report) Summary {
	s := Summary{
		RunID:     runID,
		Timestamp: ts,
		Results:   rep.Results,
		Failures:  rep.Failures,
		Signals:   rep.Signals(),
	}
	if len(rep.Results) == 0 {
		return s
	}

	best := lo.MaxBy(rep.Results, func(a, b backtest.StrategyResult) bool {
		return a.Profit > b.Profit
	})
	s.Best = &BestPerformer{Symbol: best.Symbol, Strategy: best.Label, Profit: best.Profit}

	byLabel := lo.GroupBy(rep.Results, func(r backtest.StrategyResult) string { return r.Label })
	labels := lo.Uniq(lo.Map(rep.Results, func(r backtest.StrategyResult, _ int) string { return r.Label }))
	s.ByStrategy = lo.Map(labels, func(label string, _ int) StrategySummary {
		group := byLabel[label]
		return StrategySummary{
			Strategy:        label,
			Profit:          lo.SumBy(group, func(r backtest.StrategyResult) float64 { return r.Profit }),
			BenchmarkProfit: lo.SumBy(group, func(r backtest.StrategyResult) float64 { return r.BenchmarkProfit }),
			AvgSharpe:       mean(group, func(r backtest.StrategyResult) float64 { return r.SharpeRatio }),
			AvgWinRate:      mean(group, func(r backtest.StrategyResult) float64 { return r.WinRate }),
			Trades:          lo.SumBy(group, func(r backtest.StrategyResult) int { return r.TradeCount }),
			Symbols:         len(lo.Uniq(lo.Map(group, func(r backtest.StrategyResult, _ int) string { return r.Symbol }))),
		}
	})

	bySector := lo.GroupBy(rep.Results, func(r backtest.StrategyResult) string { return r.Sector })
	s.BySector = lo.MapToSlice(bySector, func(sector string, group []backtest.StrategyResult) SectorSummary {
		return SectorSummary{
			Sector:          sector,
			Profit:          lo.SumBy(group, func(r backtest.StrategyResult) float64 { return r.Profit }),
			BenchmarkProfit: lo.SumBy(group, func(r backtest.StrategyResult) float64 { return r.BenchmarkProfit }),
			AvgSharpe:       mean(group, func(r backtest.StrategyResult) float64 { return r.SharpeRatio }),
			AvgWinRate:      mean(group, func(r backtest.StrategyResult) float64 { return r.WinRate }),
		}
	})
	sort.Slice(s.BySector, func(i, j int) bool {
		if s.BySector[i].Profit != s.BySector[j].Profit {
			return s.BySector[i].Profit > s.BySector[j].Profit
		}
		return s.BySector[i].Sector < s.BySector[j].Sector
	})

	return s
}

func mean(rs []backtest.StrategyResult, f func(backtest.StrategyResult) float64) float64 {
	if len(rs) == 0 {
		return 0
	}
	return lo.SumBy(rs, f) / float64(len(rs))
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
