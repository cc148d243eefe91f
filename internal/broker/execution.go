package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/newthinker/quantbench/internal/core"
	"go.uber.org/zap"
)

// Execution is the outcome of submitting one pending signal.
type Execution struct {
	Signal  core.Signal
	Request OrderRequest
	// Order is nil when the order was skipped or failed.
	Order *Order
	// Skipped holds the risk-check reason when the order was not sent.
	Skipped string
	Err     error
}

// Succeeded reports whether the broker acknowledged the order.
func (e Execution) Succeeded() bool {
	return e.Order != nil && e.Err == nil
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// Quantity is the number of shares per order.
	Quantity int64
	Risk     RiskConfig
}

// Executor turns pending signals into market orders.
type Executor struct {
	config ExecutorConfig
	broker Broker
	risk   *RiskChecker
	logger *zap.Logger
	newID  func() string
}

// NewExecutor creates an executor placing orders through b.
func NewExecutor(config ExecutorConfig, b Broker, logger *zap.Logger) *Executor {
	if config.Quantity <= 0 {
		config.Quantity = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config: config,
		broker: b,
		risk:   NewRiskChecker(config.Risk),
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Submit places one order per signal, in order. A failure on one signal does
// not stop the others; every signal gets an Execution.
func (e *Executor) Submit(ctx context.Context, signals []core.Signal) ([]Execution, error) {
	if len(signals) == 0 {
		return nil, nil
	}
	if !e.broker.IsConnected() {
		if err := e.broker.Connect(ctx); err != nil {
			return nil, core.WrapError(core.ErrBrokerDisconnected, err)
		}
	}

	balance, err := e.broker.GetBalance(ctx)
	if err != nil {
		e.logger.Warn("balance unavailable, skipping buying power checks",
			zap.String("broker", e.broker.Name()),
			zap.Error(err),
		)
		balance = nil
	}

	out := make([]Execution, 0, len(signals))
	placed := 0
	for _, sig := range signals {
		ex := e.submitOne(ctx, sig, placed, balance)
		if ex.Succeeded() {
			placed++
			if balance != nil && ex.Request.Side == OrderSideBuy {
				balance.BuyingPower -= float64(ex.Request.Quantity) * sig.Price
			}
		}
		out = append(out, ex)
	}
	return out, nil
}

func (e *Executor) submitOne(ctx context.Context, sig core.Signal, placed int, balance *Balance) Execution {
	ex := Execution{Signal: sig}

	side, ok := SideOf(sig.Action)
	if !ok {
		ex.Err = fmt.Errorf("signal %s/%s has no action", sig.Symbol, sig.Strategy)
		return ex
	}
	ex.Request = OrderRequest{
		Symbol:        sig.Symbol,
		Side:          side,
		Type:          OrderTypeMarket,
		Quantity:      e.config.Quantity,
		TimeInForce:   TimeInForceDay,
		ClientOrderID: e.newID(),
	}
	if err := ex.Request.Validate(); err != nil {
		ex.Err = core.WrapError(core.ErrOrderFailed, err)
		return ex
	}

	if res := e.risk.Check(ex.Request, sig.Price, placed, balance); !res.Allowed {
		ex.Skipped = res.Reason
		e.logger.Info("order skipped",
			zap.String("symbol", sig.Symbol),
			zap.String("side", string(side)),
			zap.String("reason", res.Reason),
		)
		return ex
	}

	order, err := e.broker.PlaceOrder(ctx, ex.Request)
	if err != nil {
		if !errors.Is(err, core.ErrOrderFailed) {
			err = core.WrapError(core.ErrOrderFailed, err)
		}
		ex.Err = err
		e.logger.Error("order failed",
			zap.String("symbol", sig.Symbol),
			zap.String("side", string(side)),
			zap.String("strategy", sig.Strategy),
			zap.Error(err),
		)
		return ex
	}
	ex.Order = order
	e.logger.Info("order submitted",
		zap.String("broker", e.broker.Name()),
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", ex.Request.Quantity),
		zap.String("order_id", order.OrderID),
		zap.String("status", string(order.Status)),
	)
	return ex
}
