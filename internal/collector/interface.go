package collector

import (
	"context"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

// HistoryProvider fetches daily closes for a symbol.
type HistoryProvider interface {
	Name() string
	// FetchHistory returns bars dated on or after start, ascending by date.
	// No bars at all is reported as core.ErrNoData.
	FetchHistory(ctx context.Context, symbol string, start time.Time) ([]core.PriceBar, error)
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
