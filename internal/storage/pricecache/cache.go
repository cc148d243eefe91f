// Package pricecache keeps one CSV of daily closes per symbol and tops it up
// from a price provider with only the bars it is missing.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/archive"
	"go.uber.org/zap"
)

// Path is the archive path of a symbol's cache file.
func Path(symbol string) string {
	return symbol + "_historical.csv"
}

// Cache serves price series from archive storage, fetching new bars on demand.
type Cache struct {
	store    archive.Storage
	provider collector.HistoryProvider
	start    time.Time
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a cache. start is the first date fetched for a symbol with no cache file.
func New(store archive.Storage, provider collector.HistoryProvider, start time.Time, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:    store,
		provider: provider,
		start:    collector.Day(start),
		now:      time.Now,
		logger:   logger,
	}
}

// Cached returns the stored series without contacting the provider.
func (c *Cache) Cached(ctx context.Context, symbol string) ([]core.PriceBar, error) {
	data, err := c.store.Read(ctx, Path(symbol))
	if errors.Is(err, archive.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, err)
	}
	bars, err := Decode(data)
	if err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, fmt.Errorf("%s: %w", Path(symbol), err))
	}
	return Merge(nil, bars), nil
}

// Load returns the full series for symbol. Bars after the last cached date
// are fetched and written back. A provider failure falls back to the cached
// series; with neither, core.ErrNoData is returned.
func (c *Cache) Load(ctx context.Context, symbol string) ([]core.PriceBar, error) {
	cached, err := c.Cached(ctx, symbol)
	if err != nil {
		c.logger.Warn("discarding unreadable price cache",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		cached = nil
	}

	from := c.start
	if len(cached) > 0 {
		from = cached[len(cached)-1].Date.AddDate(0, 0, 1)
	}
	if from.After(collector.Day(c.now())) {
		return cached, nil
	}

	fresh, err := c.provider.FetchHistory(ctx, symbol, from)
	if err != nil {
		if !errors.Is(err, core.ErrNoData) {
			c.logger.Warn("price fetch failed",
				zap.String("symbol", symbol),
				zap.String("provider", c.provider.Name()),
				zap.Time("from", from),
				zap.Error(err),
			)
		}
		if len(cached) > 0 {
			return cached, nil
		}
		if errors.Is(err, core.ErrNoData) {
			return nil, err
		}
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s: %w", symbol, err))
	}

	merged := Merge(cached, fresh)
	data, err := Encode(merged)
	if err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, err)
	}
	if err := c.store.Write(ctx, Path(symbol), data); err != nil {
		c.logger.Warn("price cache write failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	} else {
		c.logger.Info("price cache updated",
			zap.String("symbol", symbol),
			zap.Int("new_bars", len(fresh)),
			zap.Int("bars", len(merged)),
		)
	}
	return merged, nil
}
