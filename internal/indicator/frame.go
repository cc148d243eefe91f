package indicator

// ReversionFrame holds the mean-reversion readings.
type ReversionFrame struct {
	Mean   Series
	Std    Series
	ZScore Series
}

// NewReversionFrame computes rolling mean, std and z-score over lookback bars.
func NewReversionFrame(prices []float64, lookback int) ReversionFrame {
	mean := unavailable(len(prices))
	if lookback > 0 {
		// recomputed per window to match the std/z-score windows exactly
		for i := lookback - 1; i < len(prices); i++ {
			m, _ := windowStats(prices[i-lookback+1 : i+1])
			mean[i] = Value{V: m, Valid: true}
		}
	}
	return ReversionFrame{
		Mean:   mean,
		Std:    RollingStd(prices, lookback),
		ZScore: ZScore(prices, lookback),
	}
}

// CrossoverFrame holds fast/slow averages and their sign and flip.
type CrossoverFrame struct {
	Fast   Series
	Slow   Series
	Signal Series
	Cross  Series
}

// NewCrossoverFrame computes the two moving averages and the cross events between them.
func NewCrossoverFrame(prices []float64, fastPeriod, slowPeriod int) CrossoverFrame {
	fast := RollingMean(prices, fastPeriod)
	slow := RollingMean(prices, slowPeriod)
	signal := CrossSignal(fast, slow)
	return CrossoverFrame{
		Fast:   fast,
		Slow:   slow,
		Signal: signal,
		Cross:  Cross(signal),
	}
}

// MomentumFrame holds the oscillator and the trend filter.
type MomentumFrame struct {
	RSI     Series
	Trend   Series
	Uptrend []bool
}

// NewMomentumFrame computes the oscillator and a trendPeriod moving average used as trend filter.
func NewMomentumFrame(prices []float64, period, trendPeriod int) MomentumFrame {
	trend := RollingMean(prices, trendPeriod)
	return MomentumFrame{
		RSI:     RSI(prices, period),
		Trend:   trend,
		Uptrend: Above(prices, trend),
	}
}
