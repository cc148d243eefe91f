package backtest

import (
	"math"

	"github.com/newthinker/quantbench/internal/ledger"
)

// tradingDays annualizes daily Sharpe ratios.
const tradingDays = 252

// CalculateStats summarizes a finished simulation. prices must be non-empty.
func CalculateStats(initialCapital, finalCapital float64, prices, equity []float64, trades []ledger.Trade) Stats {
	var winning int
	for _, t := range trades {
		if t.IsWin() {
			winning++
		}
	}

	var winRate float64
	if len(trades) > 0 {
		winRate = float64(winning) / float64(len(trades))
	}

	return Stats{
		Profit:          finalCapital - initialCapital,
		BenchmarkProfit: Benchmark(initialCapital, prices),
		SharpeRatio:     calculateSharpeRatio(equityReturns(equity)),
		WinRate:         winRate,
		TradeCount:      len(trades),
		MaxDrawdown:     calculateMaxDrawdown(equity),
	}
}

// Benchmark is the buy-and-hold profit of initialCapital from the first to the last price.
func Benchmark(initialCapital float64, prices []float64) float64 {
	if len(prices) == 0 || prices[0] == 0 {
		return 0
	}
	return initialCapital*(prices[len(prices)-1]/prices[0]) - initialCapital
}

// equityReturns derives simple per-bar returns; steps from a zero value are skipped.
func equityReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the equity curve
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD, peak float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	// Calculate mean return
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	// Calculate standard deviation
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(tradingDays)
}
