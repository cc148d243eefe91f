package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://data.alpaca.markets"
	pageLimit      = 10000
)

// Alpaca fetches split-adjusted daily bars from the Alpaca market data v2 API.
type Alpaca struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	now       func() time.Time
	logger    *zap.Logger
}

// New creates an Alpaca data provider.
func New(baseURL, apiKey, apiSecret string, timeout time.Duration, logger *zap.Logger) *Alpaca {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alpaca{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
		logger:    logger,
	}
}

// SetTransport replaces the HTTP transport, e.g. with an instrumented one.
func (a *Alpaca) SetTransport(rt http.RoundTripper) {
	a.client.Transport = rt
}

func (a *Alpaca) Name() string { return "alpaca" }

// HasCredentials reports whether both API key headers can be sent.
func (a *Alpaca) HasCredentials() bool {
	return a.apiKey != "" && a.apiSecret != ""
}

// FetchHistory fetches daily bars from start through today, following pagination.
func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, start time.Time) ([]core.PriceBar, error) {
	if !a.HasCredentials() {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("alpaca API credentials not configured"))
	}

	var bars []core.PriceBar
	pageToken := ""
	for {
		page, err := a.fetchPage(ctx, symbol, start, pageToken)
		if err != nil {
			return nil, err
		}
		for _, b := range page.Bars {
			ts, err := time.Parse(time.RFC3339, b.Timestamp)
			if err != nil {
				return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("parsing bar time %q: %w", b.Timestamp, err))
			}
			if b.Close <= 0 {
				continue
			}
			bars = append(bars, core.PriceBar{Date: collector.Day(ts), Close: b.Close})
		}
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		pageToken = *page.NextPageToken
	}

	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bars for %s since %s", symbol, start.Format("2006-01-02")))
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	a.logger.Debug("fetched history",
		zap.String("provider", a.Name()),
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

func (a *Alpaca) fetchPage(ctx context.Context, symbol string, start time.Time, pageToken string) (*barsResponse, error) {
	q := url.Values{}
	endOfDay := collector.Day(a.now()).Add(24*time.Hour - time.Second)
	q.Set("start", collector.Day(start).Format(time.RFC3339))
	q.Set("end", endOfDay.Format(time.RFC3339))
	q.Set("timeframe", "1Day")
	q.Set("limit", fmt.Sprint(pageLimit))
	q.Set("adjustment", "split")
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", a.baseURL, url.PathEscape(strings.ToUpper(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("creating request: %w", err))
	}
	SetAuthHeaders(req, a.apiKey, a.apiSecret)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching bars: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result barsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
	}
	return &result, nil
}

// SetAuthHeaders adds the Alpaca API key headers, shared by the data and trading APIs.
func SetAuthHeaders(req *http.Request, key, secret string) {
	req.Header.Set("APCA-API-KEY-ID", key)
	req.Header.Set("APCA-API-SECRET-KEY", secret)
}

type barsResponse struct {
	Symbol        string  `json:"symbol"`
	Bars          []bar   `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

type bar struct {
	Timestamp string  `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}
