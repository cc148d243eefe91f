package alpaca

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/collector"
	"github.com/newthinker/quantbench/internal/core"
)

func TestAlpaca_ImplementsProvider(t *testing.T) {
	var _ collector.HistoryProvider = (*Alpaca)(nil)
}

func TestAlpaca_FetchHistory_Paginates(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v2/stocks/AAPL/bars" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			t.Error("missing auth headers")
		}
		q := r.URL.Query()
		if q.Get("timeframe") != "1Day" || q.Get("adjustment") != "split" || q.Get("start") != "2024-01-02T00:00:00Z" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}

		if q.Get("page_token") == "" {
			w.Write([]byte(`{"symbol":"AAPL","bars":[
				{"t":"2024-01-02T05:00:00Z","c":185.64},
				{"t":"2024-01-03T05:00:00Z","c":184.25}],"next_page_token":"p2"}`))
			return
		}
		w.Write([]byte(`{"symbol":"AAPL","bars":[{"t":"2024-01-04T05:00:00Z","c":181.91}],"next_page_token":null}`))
	}))
	defer srv.Close()

	a := New(srv.URL, "key", "secret", time.Second, nil)
	bars, err := a.FetchHistory(context.Background(), "AAPL", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}

	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if bars[2].Close != 181.91 {
		t.Errorf("bars[2].Close = %v", bars[2].Close)
	}
	if !bars[0].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("bars[0].Date = %v", bars[0].Date)
	}
}

func TestAlpaca_FetchHistory_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","bars":null,"next_page_token":null}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", "secret", time.Second, nil).FetchHistory(context.Background(), "AAPL", time.Now())
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestAlpaca_FetchHistory_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", "bad", time.Second, nil).FetchHistory(context.Background(), "AAPL", time.Now())
	if !errors.Is(err, core.ErrProviderFailed) {
		t.Errorf("expected ErrProviderFailed, got %v", err)
	}
}

func TestAlpaca_RequiresCredentials(t *testing.T) {
	a := New("", "", "", 0, nil)
	if a.HasCredentials() {
		t.Error("expected no credentials")
	}
	if _, err := a.FetchHistory(context.Background(), "AAPL", time.Now()); err == nil {
		t.Error("expected error without credentials")
	}
}
