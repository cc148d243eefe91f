package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestValidateSeries(t *testing.T) {
	tests := []struct {
		name    string
		bars    []PriceBar
		wantErr bool
	}{
		{"valid", []PriceBar{{day(0), 10}, {day(1), 11}, {day(5), 12}}, false},
		{"single bar", []PriceBar{{day(0), 10}}, false},
		{"empty", nil, true},
		{"zero close", []PriceBar{{day(0), 10}, {day(1), 0}}, true},
		{"negative close", []PriceBar{{day(0), -1}}, true},
		{"nan close", []PriceBar{{day(0), math.NaN()}}, true},
		{"duplicate date", []PriceBar{{day(0), 10}, {day(0), 11}}, true},
		{"descending", []PriceBar{{day(2), 10}, {day(1), 11}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeries(tt.bars)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSeries() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSeries) {
				t.Errorf("expected INVALID_SERIES, got %v", err)
			}
		})
	}
}

func TestCloses(t *testing.T) {
	got := Closes([]PriceBar{{day(0), 1}, {day(1), 2}})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Closes() = %v", got)
	}
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		a    Action
		want string
	}{
		{ActionNone, "none"},
		{ActionBuy, "buy"},
		{ActionSell, "sell"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
	if !ActionNone.IsNone() || ActionBuy.IsNone() {
		t.Error("IsNone mismatch")
	}
}
