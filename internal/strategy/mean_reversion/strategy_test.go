package mean_reversion

import (
	"testing"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/ledger"
	"github.com/newthinker/quantbench/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		Lookback:  3,
		Threshold: 1.0,
		Risk: strategy.Risk{
			InitialCapital: 1000,
			PositionSize:   1.0,
			StopLoss:       0.05,
			TakeProfit:     0.5,
			Sizing:         strategy.SizingCompounding,
		},
	}
}

func newSim(t *testing.T, p Params) *MeanReversion {
	t.Helper()
	s, err := New(p)
	require.NoError(t, err)
	return s
}

func TestMeanReversion_ImplementsSimulator(t *testing.T) {
	var _ strategy.Simulator = (*MeanReversion)(nil)
}

func TestMeanReversion_Name(t *testing.T) {
	s := newSim(t, testParams())
	if s.Name() != "mean_reversion" {
		t.Errorf("expected 'mean_reversion', got '%s'", s.Name())
	}
	if s.RequiredBars() != 3 {
		t.Errorf("expected 3 required bars, got %d", s.RequiredBars())
	}
}

func TestMeanReversion_ShortOnFinalBar(t *testing.T) {
	// bars 3 and 4 have zero deviation and are held; bar 5 has z ~ 1.15
	s := newSim(t, testParams())

	out, err := s.Simulate([]float64{10, 10, 10, 10, 20})
	require.NoError(t, err)

	assert.Equal(t, []float64{1000, 1000, 1000, 1000, 1000, 1000}, out.Equity)
	assert.Equal(t, core.ActionSell, out.Pending)
	require.Len(t, out.Trades, 1)

	trade := out.Trades[0]
	assert.Equal(t, ledger.Short, trade.Side)
	assert.Equal(t, int64(50), trade.Size)
	assert.Equal(t, 20.0, trade.EntryPrice)
	assert.Equal(t, ledger.ExitEndOfSeries, trade.Reason)
	assert.Equal(t, 0.0, trade.Profit)
	assert.Equal(t, 1000.0, out.FinalCapital)
}

func TestMeanReversion_StopLoss(t *testing.T) {
	// z at bar 3 is about -1.09: long 111 @ 9, then 8 breaches the 5% stop
	s := newSim(t, testParams())

	out, err := s.Simulate([]float64{10, 11, 12, 9, 8})
	require.NoError(t, err)

	require.Len(t, out.Trades, 1)
	assert.Equal(t, ledger.Long, out.Trades[0].Side)
	assert.Equal(t, int64(111), out.Trades[0].Size)
	assert.Equal(t, ledger.ExitStopLoss, out.Trades[0].Reason)
	assert.Equal(t, -111.0, out.Trades[0].Profit)
	assert.Equal(t, 889.0, out.FinalCapital)
	assert.Equal(t, []float64{1000, 1000, 1000, 1000, 1000, 889}, out.Equity)
	assert.True(t, out.Pending.IsNone())
}

func TestMeanReversion_ExitsOnReversion(t *testing.T) {
	p := testParams()
	p.Risk.StopLoss = 0.9
	s := newSim(t, p)

	// long at 9 (bar 3), z at bar 4 is positive so the long is closed at 12
	out, err := s.Simulate([]float64{10, 11, 12, 9, 12})
	require.NoError(t, err)

	require.Len(t, out.Trades, 1)
	assert.Equal(t, ledger.ExitSignal, out.Trades[0].Reason)
	assert.Equal(t, 333.0, out.Trades[0].Profit)
	assert.Equal(t, 1333.0, out.FinalCapital)
	assert.Equal(t, out.FinalCapital, out.Equity[len(out.Equity)-1])
}

func TestMeanReversion_EquityLength(t *testing.T) {
	s := newSim(t, testParams())
	for _, n := range []int{1, 2, 3, 10} {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = 10 + float64(i%3)
		}
		out, err := s.Simulate(prices)
		require.NoError(t, err)
		assert.Len(t, out.Equity, n+1)
	}
}

func TestMeanReversion_Deterministic(t *testing.T) {
	s := newSim(t, testParams())
	prices := []float64{10, 11, 12, 9, 8, 10, 13, 12, 9, 11, 14, 10}

	first, err := s.Simulate(prices)
	require.NoError(t, err)
	second, err := s.Simulate(prices)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNew_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"lookback too short", func(p *Params) { p.Lookback = 1 }},
		{"zero threshold", func(p *Params) { p.Threshold = 0 }},
		{"bad risk", func(p *Params) { p.Risk.PositionSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.modify(&p)
			_, err := New(p)
			assert.Error(t, err)
		})
	}
}
