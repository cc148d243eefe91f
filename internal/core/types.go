package core

import (
	"fmt"
	"time"
)

// PriceBar is one daily close of an instrument.
type PriceBar struct {
	Date  time.Time
	Close float64
}

// Closes extracts the closing prices of a series.
func Closes(bars []PriceBar) []float64 {
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = b.Close
	}
	return prices
}

// ValidateSeries checks the input contract of the simulation core: at least one
// bar, positive closes and strictly increasing dates.
func ValidateSeries(bars []PriceBar) error {
	if len(bars) == 0 {
		return WrapError(ErrInvalidSeries, fmt.Errorf("series is empty"))
	}
	for i, b := range bars {
		if !(b.Close > 0) {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d (%s): close must be positive, got %v",
				i, b.Date.Format("2006-01-02"), b.Close))
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d (%s): dates must be strictly increasing",
				i, b.Date.Format("2006-01-02")))
		}
	}
	return nil
}

// Instrument is a tradable symbol with its reporting sector.
type Instrument struct {
	Symbol string `mapstructure:"symbol" yaml:"symbol" json:"symbol"`
	Sector string `mapstructure:"sector" yaml:"sector" json:"sector"`
}

// Action is the pending trading signal left by a simulation on its final bar.
type Action string

const (
	ActionNone Action = ""
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// IsNone reports whether no signal was recorded.
func (a Action) IsNone() bool {
	return a == ActionNone
}

// String renders the action the way signals are announced.
func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}

// Signal is a pending action for one (symbol, strategy) pair.
type Signal struct {
	Symbol   string
	Sector   string
	Strategy string
	Action   Action
	Price    float64 // close of the bar the entry was opened on
	Date     time.Time
}
