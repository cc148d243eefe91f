package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	chartPath      = "/v8/finance/chart"
)

// validSymbol matches ticker symbols like AAPL, BRK.B, GLD
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}([.-][A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches split- and dividend-adjusted daily closes from the Yahoo chart API.
type Yahoo struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Yahoo provider. An empty baseURL uses the public endpoint.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Yahoo {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Yahoo{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		logger:  logger,
	}
}

// SetTransport replaces the HTTP transport, e.g. with an instrumented one.
func (y *Yahoo) SetTransport(rt http.RoundTripper) {
	y.client.Transport = rt
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts class-share notation: BRK.B -> BRK-B
func (y *Yahoo) toYahooSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), ".", "-")
}

// FetchHistory fetches daily bars from start through today
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start time.Time) ([]core.PriceBar, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}

	url := fmt.Sprintf("%s%s/%s?interval=1d&period1=%d&period2=%d&events=split",
		y.baseURL, chartPath, y.toYahooSymbol(symbol), start.Unix(), y.now().Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("creating request: %w", err))
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	bars := result.Chart.Result[0].bars(collector.Day(start))
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars for %s since %s", symbol, start.Format("2006-01-02")))
	}

	y.logger.Debug("fetched history",
		zap.String("provider", y.Name()),
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

// bars extracts one close per calendar date on or after from, preferring the
// adjusted close. Missing readings are skipped.
func (r chartResult) bars(from time.Time) []core.PriceBar {
	var closes, adjusted []*float64
	if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}
	if len(r.Indicators.AdjClose) > 0 {
		adjusted = r.Indicators.AdjClose[0].AdjClose
	}

	byDay := make(map[time.Time]float64, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		var v *float64
		if i < len(adjusted) && adjusted[i] != nil {
			v = adjusted[i]
		} else if i < len(closes) {
			v = closes[i]
		}
		if v == nil || *v <= 0 {
			continue // Skip missing data
		}
		day := collector.Day(time.Unix(ts, 0))
		if day.Before(from) {
			continue
		}
		byDay[day] = *v
	}

	out := make([]core.PriceBar, 0, len(byDay))
	for day, c := range byDay {
		out = append(out, core.PriceBar{Date: day, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type indicators struct {
	Quote    []quoteIndicator    `json:"quote"`
	AdjClose []adjCloseIndicator `json:"adjclose"`
}

type quoteIndicator struct {
	Close []*float64 `json:"close"`
}

type adjCloseIndicator struct {
	AdjClose []*float64 `json:"adjclose"`
}
