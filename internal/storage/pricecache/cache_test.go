package pricecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	bars  []core.PriceBar
	err   error
	calls []time.Time
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) FetchHistory(_ context.Context, _ string, start time.Time) ([]core.PriceBar, error) {
	s.calls = append(s.calls, start)
	if s.err != nil {
		return nil, s.err
	}
	var out []core.PriceBar
	for _, b := range s.bars {
		if !b.Date.Before(start) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, core.ErrNoData
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newCache(t *testing.T, p *stubProvider, now string) (*Cache, archive.Storage) {
	t.Helper()
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	c := New(store, p, day("2024-01-01"), nil)
	c.now = func() time.Time { return day(now).Add(15 * time.Hour) }
	return c, store
}

func TestLoad_ColdCacheFetchesFromStart(t *testing.T) {
	p := &stubProvider{bars: []core.PriceBar{
		{Date: day("2024-01-02"), Close: 10},
		{Date: day("2024-01-03"), Close: 11},
	}}
	c, store := newCache(t, p, "2024-01-03")

	bars, err := c.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, p.bars, bars)
	require.Len(t, p.calls, 1)
	assert.Equal(t, day("2024-01-01"), p.calls[0])

	data, err := store.Read(context.Background(), "AAPL_historical.csv")
	require.NoError(t, err)
	assert.Equal(t, "Date,Close\n2024-01-02,10\n2024-01-03,11\n", string(data))
}

func TestLoad_WarmCacheFetchesOnlyMissingDays(t *testing.T) {
	p := &stubProvider{bars: []core.PriceBar{
		{Date: day("2024-01-04"), Close: 12},
	}}
	c, store := newCache(t, p, "2024-01-04")
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, Path("AAPL"), []byte("Date,Close\n2024-01-02,10\n2024-01-03,11\n")))

	bars, err := c.Load(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, p.calls, 1)
	assert.Equal(t, day("2024-01-04"), p.calls[0])
	assert.Equal(t, []float64{10, 11, 12}, core.Closes(bars))
}

func TestLoad_UpToDateSkipsProvider(t *testing.T) {
	p := &stubProvider{}
	c, store := newCache(t, p, "2024-01-03")
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, Path("AAPL"), []byte("Date,Close\n2024-01-02,10\n2024-01-03,11\n")))

	bars, err := c.Load(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, p.calls)
	assert.Len(t, bars, 2)
}

func TestLoad_ProviderFailureFallsBackToCache(t *testing.T) {
	p := &stubProvider{err: core.WrapError(core.ErrProviderFailed, errors.New("HTTP 500"))}
	c, store := newCache(t, p, "2024-01-10")
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, Path("AAPL"), []byte("Date,Close\n2024-01-02,10\n")))

	bars, err := c.Load(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, core.Closes(bars))
}

func TestLoad_NoCacheNoData(t *testing.T) {
	p := &stubProvider{err: core.WrapError(core.ErrProviderFailed, errors.New("HTTP 500"))}
	c, _ := newCache(t, p, "2024-01-10")

	_, err := c.Load(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestLoad_CorruptCacheIsRebuilt(t *testing.T) {
	p := &stubProvider{bars: []core.PriceBar{{Date: day("2024-01-02"), Close: 10}}}
	c, store := newCache(t, p, "2024-01-02")
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, Path("AAPL"), []byte("garbage\nrow\n")))

	bars, err := c.Load(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, core.Closes(bars))
}

func TestMerge_FreshWinsAndSorts(t *testing.T) {
	cached := []core.PriceBar{
		{Date: day("2024-01-03"), Close: 11},
		{Date: day("2024-01-02"), Close: 10},
	}
	fresh := []core.PriceBar{
		{Date: day("2024-01-03"), Close: 11.5},
		{Date: day("2024-01-04"), Close: 12},
	}

	got := Merge(cached, fresh)
	assert.Equal(t, []float64{10, 11.5, 12}, core.Closes(got))
	assert.NoError(t, core.ValidateSeries(got))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []float64
		wantErr bool
	}{
		{"plain", "Date,Close\n2024-01-02,10.5\n", []float64{10.5}, false},
		{"extra columns", "Date,Open,Close,Volume\n2024-01-02,9,10,100\n", []float64{10}, false},
		{"timestamped dates", "Date,Close\n2024-01-02 00:00:00-05:00,10\n", []float64{10}, false},
		{"empty file", "", nil, false},
		{"missing close column", "Date,Open\n2024-01-02,9\n", nil, true},
		{"bad number", "Date,Close\n2024-01-02,abc\n", nil, true},
		{"bad date", "Date,Close\nyesterday,10\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, err := Decode([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, bars)
				return
			}
			assert.Equal(t, tt.want, core.Closes(bars))
		})
	}
}
