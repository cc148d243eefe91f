package indicator

// ZScore is (price - rolling mean) / rolling std over the lookback window.
// A zero deviation leaves the reading unavailable.
func ZScore(prices []float64, lookback int) Series {
	out := unavailable(len(prices))
	if lookback < 2 {
		return out
	}
	for i := lookback - 1; i < len(prices); i++ {
		mean, std := windowStats(prices[i-lookback+1 : i+1])
		if std == 0 {
			continue
		}
		out[i] = Value{V: (prices[i] - mean) / std, Valid: true}
	}
	return out
}
