// Package alpaca places orders through the Alpaca trading API (paper or live).
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/quantbench/internal/broker"
	alpacadata "github.com/newthinker/quantbench/internal/collector/alpaca"
	"go.uber.org/zap"
)

// PaperURL is the paper-trading endpoint.
const PaperURL = "https://paper-api.alpaca.markets"

// Broker is an Alpaca trading API client.
type Broker struct {
	mu        sync.RWMutex
	client    *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	connected bool
	logger    *zap.Logger
}

// New creates an Alpaca broker. An empty baseURL selects paper trading.
func New(baseURL, apiKey, apiSecret string, logger *zap.Logger) *Broker {
	if baseURL == "" {
		baseURL = PaperURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		logger:    logger,
	}
}

// SetTransport replaces the HTTP transport, e.g. with an instrumented one.
func (b *Broker) SetTransport(rt http.RoundTripper) {
	b.client.Transport = rt
}

func (b *Broker) Name() string { return "alpaca" }

// Connect verifies the credentials by reading the account.
func (b *Broker) Connect(ctx context.Context) error {
	if b.apiKey == "" || b.apiSecret == "" {
		return fmt.Errorf("alpaca: API key and secret are required")
	}
	if _, err := b.account(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

func (b *Broker) Disconnect() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

func (b *Broker) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

type accountResponse struct {
	Currency    string `json:"currency"`
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
	Equity      string `json:"equity"`
}

// GetBalance reads /v2/account.
func (b *Broker) GetBalance(ctx context.Context) (*broker.Balance, error) {
	if !b.IsConnected() {
		return nil, broker.ErrNotConnected
	}
	acct, err := b.account(ctx)
	if err != nil {
		return nil, err
	}
	return &broker.Balance{
		Currency:    acct.Currency,
		Cash:        parseAmount(acct.Cash),
		BuyingPower: parseAmount(acct.BuyingPower),
		TotalValue:  parseAmount(acct.Equity),
		UpdatedAt:   time.Now(),
	}, nil
}

func (b *Broker) account(ctx context.Context) (*accountResponse, error) {
	var acct accountResponse
	if err := b.do(ctx, http.MethodGet, "/v2/account", nil, &acct); err != nil {
		return nil, fmt.Errorf("alpaca: reading account: %w", err)
	}
	return &acct, nil
}

type orderBody struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type orderResponse struct {
	ID             string    `json:"id"`
	ClientOrderID  string    `json:"client_order_id"`
	Symbol         string    `json:"symbol"`
	Qty            string    `json:"qty"`
	FilledQty      string    `json:"filled_qty"`
	FilledAvgPrice *string   `json:"filled_avg_price"`
	Side           string    `json:"side"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// PlaceOrder submits req to /v2/orders.
func (b *Broker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error) {
	if !b.IsConnected() {
		return nil, broker.ErrNotConnected
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tif := req.TimeInForce
	if tif == "" {
		tif = broker.TimeInForceDay
	}
	body := orderBody{
		Symbol:        req.Symbol,
		Qty:           strconv.FormatInt(req.Quantity, 10),
		Side:          string(req.Side),
		Type:          string(req.Type),
		TimeInForce:   tif,
		ClientOrderID: req.ClientOrderID,
	}
	if req.Type == broker.OrderTypeLimit {
		body.LimitPrice = strconv.FormatFloat(req.Price, 'f', 2, 64)
	}

	var resp orderResponse
	if err := b.do(ctx, http.MethodPost, "/v2/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("alpaca: placing order: %w", err)
	}
	b.logger.Debug("alpaca order acknowledged",
		zap.String("order_id", resp.ID),
		zap.String("status", resp.Status),
	)

	order := &broker.Order{
		OrderID:        resp.ID,
		ClientOrderID:  resp.ClientOrderID,
		Symbol:         resp.Symbol,
		Side:           broker.OrderSide(resp.Side),
		Type:           broker.OrderType(resp.Type),
		Quantity:       int64(parseAmount(resp.Qty)),
		Status:         broker.OrderStatus(resp.Status),
		FilledQuantity: int64(parseAmount(resp.FilledQty)),
		CreatedAt:      resp.CreatedAt,
	}
	if resp.FilledAvgPrice != nil {
		order.AverageFillPrice = parseAmount(*resp.FilledAvgPrice)
	}
	return order, nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (b *Broker) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	alpacadata.SetAuthHeaders(req, b.apiKey, b.apiSecret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func parseAmount(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
