package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/backtest"
	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/storage/archive"
)

type bestJSON struct {
	Symbol   string  `json:"symbol"`
	Strategy string  `json:"strategy"`
	Profit   float64 `json:"profit"`
}

type strategyJSON struct {
	TotalProfit   float64 `json:"total_profit"`
	AverageSharpe float64 `json:"average_sharpe"`
}

type resultJSON struct {
	Symbol          string  `json:"symbol"`
	Sector          string  `json:"sector"`
	Strategy        string  `json:"strategy"`
	Profit          float64 `json:"profit"`
	BenchmarkProfit float64 `json:"benchmark_profit"`
	Sharpe          float64 `json:"sharpe"`
	WinRate         float64 `json:"win_rate"`
	TradeCount      int     `json:"trade_count"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	FinalCapital    float64 `json:"final_capital"`
	PendingSignal   *string `json:"pending_signal"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
}

type failureJSON struct {
	Symbol   string `json:"symbol"`
	Sector   string `json:"sector"`
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

type document struct {
	Timestamp     string                  `json:"timestamp"`
	RunID         string                  `json:"run_id"`
	BestPerformer *bestJSON               `json:"best_performer"`
	Summary       map[string]strategyJSON `json:"summary"`
	AllResults    []resultJSON            `json:"all_results"`
	Failures      []failureJSON           `json:"failures"`
}

// Encode renders the persisted summary. Values are rounded to two decimals.
func Encode(s Summary) ([]byte, error) {
	doc := document{
		Timestamp:  s.Timestamp.Format(time.RFC3339),
		RunID:      s.RunID,
		Summary:    make(map[string]strategyJSON, len(s.ByStrategy)),
		AllResults: make([]resultJSON, 0, len(s.Results)),
		Failures:   make([]failureJSON, 0, len(s.Failures)),
	}
	if s.Best != nil {
		doc.BestPerformer = &bestJSON{Symbol: s.Best.Symbol, Strategy: s.Best.Strategy, Profit: round2(s.Best.Profit)}
	}
	for _, st := range s.ByStrategy {
		doc.Summary[st.Strategy] = strategyJSON{
			TotalProfit:   round2(st.Profit),
			AverageSharpe: round2(st.AvgSharpe),
		}
	}
	for _, r := range s.Results {
		doc.AllResults = append(doc.AllResults, toResultJSON(r))
	}
	for _, f := range s.Failures {
		doc.Failures = append(doc.Failures, failureJSON{
			Symbol:   f.Symbol,
			Sector:   f.Sector,
			Strategy: f.Strategy,
			Error:    errString(f.Err),
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

func toResultJSON(r backtest.StrategyResult) resultJSON {
	out := resultJSON{
		Symbol:          r.Symbol,
		Sector:          r.Sector,
		Strategy:        r.Label,
		Profit:          round2(r.Profit),
		BenchmarkProfit: round2(r.BenchmarkProfit),
		Sharpe:          round2(r.SharpeRatio),
		WinRate:         round2(r.WinRate),
		TradeCount:      r.TradeCount,
		MaxDrawdown:     round2(r.MaxDrawdown),
		FinalCapital:    round2(r.FinalCapital),
		StartDate:       r.StartDate.Format("2006-01-02"),
		EndDate:         r.EndDate.Format("2006-01-02"),
	}
	if !r.Pending.IsNone() {
		sig := strings.ToUpper(string(r.Pending))
		out.PendingSignal = &sig
	}
	return out
}

// Persist writes the encoded summary to path in store.
func Persist(ctx context.Context, store archive.Storage, path string, s Summary) error {
	data, err := Encode(s)
	if err != nil {
		return core.WrapError(core.ErrPersistFailed, fmt.Errorf("encoding summary: %w", err))
	}
	if err := store.Write(ctx, path, data); err != nil {
		return core.WrapError(core.ErrPersistFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
