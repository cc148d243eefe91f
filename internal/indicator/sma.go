package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// RollingMean is SMA aligned to the price series; the first period-1 bars are unavailable.
func RollingMean(prices []float64, period int) Series {
	out := unavailable(len(prices))
	sma := SMA(prices, period)
	offset := len(prices) - len(sma)
	for i, v := range sma {
		out[offset+i] = Value{V: v, Valid: true}
	}
	return out
}

// RollingStd is the sample (n-1) standard deviation over each window.
// Windows are summed afresh so a flat window yields exactly zero.
func RollingStd(prices []float64, period int) Series {
	out := unavailable(len(prices))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(prices); i++ {
		_, std := windowStats(prices[i-period+1 : i+1])
		out[i] = Value{V: std, Valid: true}
	}
	return out
}

// windowStats returns the mean and sample standard deviation of a window of at least two prices.
func windowStats(window []float64) (mean, std float64) {
	var sum float64
	for _, p := range window {
		sum += p
	}
	mean = sum / float64(len(window))

	var ss float64
	for _, p := range window {
		ss += (p - mean) * (p - mean)
	}
	return mean, math.Sqrt(ss / float64(len(window)-1))
}
