package broker

import (
	"fmt"
)

// RiskConfig bounds what a single run may submit.
type RiskConfig struct {
	// MaxOrders caps the number of orders per run; 0 means no cap.
	MaxOrders int
	// MaxOrderPct is the largest share of buying power one buy may use, in percent; 0 means no cap.
	MaxOrderPct float64
}

// RiskCheckResult represents the outcome of a risk check.
type RiskCheckResult struct {
	Allowed bool
	Reason  string
}

// RiskChecker validates orders against per-run limits.
type RiskChecker struct {
	config RiskConfig
}

// NewRiskChecker creates a new RiskChecker.
func NewRiskChecker(config RiskConfig) *RiskChecker {
	return &RiskChecker{config: config}
}

// Check validates req priced at price, given the orders already placed this
// run and the current balance. A nil balance skips the buying-power checks.
func (r *RiskChecker) Check(req OrderRequest, price float64, placed int, balance *Balance) RiskCheckResult {
	if r.config.MaxOrders > 0 && placed >= r.config.MaxOrders {
		return RiskCheckResult{
			Reason: fmt.Sprintf("order limit reached: %d >= %d", placed, r.config.MaxOrders),
		}
	}
	if req.Side != OrderSideBuy || balance == nil || price <= 0 {
		return RiskCheckResult{Allowed: true}
	}

	orderValue := float64(req.Quantity) * price
	if orderValue > balance.BuyingPower {
		return RiskCheckResult{
			Reason: fmt.Sprintf("insufficient buying power: %.2f > %.2f", orderValue, balance.BuyingPower),
		}
	}
	if r.config.MaxOrderPct > 0 && balance.BuyingPower > 0 {
		pct := orderValue / balance.BuyingPower * 100
		if pct > r.config.MaxOrderPct {
			return RiskCheckResult{
				Reason: fmt.Sprintf("order too large: %.2f%% > %.2f%%", pct, r.config.MaxOrderPct),
			}
		}
	}
	return RiskCheckResult{Allowed: true}
}
