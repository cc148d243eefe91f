package collector

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

// mockProvider for testing
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) FetchHistory(ctx context.Context, symbol string, start time.Time) ([]core.PriceBar, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	r.Register(&mockProvider{name: "mock"})

	p, err := r.Get("mock")
	if err != nil {
		t.Fatalf("expected to find registered provider: %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("expected name 'mock', got '%s'", p.Name())
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); err == nil {
		t.Error("expected error for unregistered provider")
	}
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "a"})
	r.Register(&mockProvider{name: "b"})

	if got := len(r.GetAll()); got != 2 {
		t.Errorf("expected 2 providers, got %d", got)
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2024, 3, 4, 21, 30, 0, 0, time.FixedZone("EST", -5*3600))
	got := Day(in)
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}
