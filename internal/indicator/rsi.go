package indicator

// RSIMax is the saturated oscillator reading when there is no downward pressure.
const RSIMax = 100.0

// RSI is the relative strength oscillator built from simple rolling means of
// gains and losses over the last period price changes. The first reading is at
// bar index period. A zero loss average saturates at RSIMax.
func RSI(prices []float64, period int) Series {
	out := unavailable(len(prices))
	if period <= 0 {
		return out
	}
	for i := period; i < len(prices); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			delta := prices[j] - prices[j-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)

		if avgLoss == 0 {
			out[i] = Value{V: RSIMax, Valid: true}
			continue
		}
		rs := avgGain / avgLoss
		out[i] = Value{V: 100.0 - (100.0 / (1.0 + rs)), Valid: true}
	}
	return out
}

// Above reports, per bar, whether the price is strictly above an available trend reading.
func Above(prices []float64, trend Series) []bool {
	out := make([]bool, len(prices))
	for i, p := range prices {
		if t, ok := trend.At(i); ok && p > t {
			out[i] = true
		}
	}
	return out
}
