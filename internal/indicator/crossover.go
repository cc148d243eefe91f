package indicator

// CrossSignal is +1 while fast > slow and -1 otherwise, available once both averages are.
func CrossSignal(fast, slow Series) Series {
	out := unavailable(len(fast))
	for i := range fast {
		f, okF := fast.At(i)
		s, okS := slow.At(i)
		if !okF || !okS {
			continue
		}
		sign := -1.0
		if f > s {
			sign = 1
		}
		out[i] = Value{V: sign, Valid: true}
	}
	return out
}

// Cross is the bar-over-bar change of a CrossSignal: +2 on an upward flip,
// -2 on a downward flip, 0 otherwise.
func Cross(signal Series) Series {
	out := unavailable(len(signal))
	for i := 1; i < len(signal); i++ {
		curr, ok := signal.At(i)
		prev, okPrev := signal.At(i - 1)
		if !ok || !okPrev {
			continue
		}
		out[i] = Value{V: curr - prev, Valid: true}
	}
	return out
}
