// Package notifier announces the pending signals of a run.
package notifier

import (
	"fmt"
	"strings"

	"github.com/newthinker/quantbench/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier defines the interface for signal notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send sends a single signal notification
	Send(signal core.Signal) error

	// SendBatch sends multiple signal notifications
	SendBatch(signals []core.Signal) error
}

// Headline renders a signal as the one-line instruction shown on the console,
// e.g. "You should BUY AAPL today (Mean Reversion)".
func Headline(signal core.Signal) string {
	return fmt.Sprintf("You should %s %s today (%s)",
		strings.ToUpper(signal.Action.String()), signal.Symbol, signal.Strategy)
}
