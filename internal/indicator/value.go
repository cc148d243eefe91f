// Package indicator derives rolling statistics from a closing-price series.
// Every output is aligned to its input: element i only uses prices[0..i], and
// readings before a window fills are marked unavailable rather than zero.
package indicator

// Value is a single indicator reading.
type Value struct {
	V     float64
	Valid bool
}

// Series is an indicator aligned bar-for-bar with the price series.
type Series []Value

// At returns the reading at bar i and whether it is available.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	return s[i].V, s[i].Valid
}

func unavailable(n int) Series {
	return make(Series, n)
}
