package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/internal/errors"
	"github.com/tradeforge/competition-trader/internal/portfolio"
	"github.com/tradeforge/competition-trader/internal/strategy"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// minOrderNotional discards orders scaled down to dust
const minOrderNotional = 1.0

// Order is an ephemeral, bounded trade request produced by the governor and
// consumed by the order executor.
type Order struct {
	ID              string
	Symbol          string
	Side            types.OrderSide
	Amount          float64 // USD notional
	RequestedBy     string
	SizingRationale string
	CreatedAt       time.Time
}

// Verdict is the governor's answer for one portfolio signal. A nil Order with
// Vetoed=false is a plain hold; Vetoed=true is a deliberate risk refusal.
type Verdict struct {
	Order  *Order
	Vetoed bool
	Reason string
}

// Governor translates portfolio signals into bounded orders or vetoes them.
// It is the single point of truth for "can we trade right now" and must be
// consulted before every order.
type Governor struct {
	mu     sync.RWMutex
	limits config.RiskConfig
	pf     *portfolio.Portfolio
}

// NewGovernor creates a risk governor over the given portfolio
func NewGovernor(limits config.RiskConfig, pf *portfolio.Portfolio) *Governor {
	return &Governor{limits: limits, pf: pf}
}

// SetLimits replaces the enforced limits. The execution loop calls this when
// an audited reconfiguration takes effect at a tick boundary, so every order
// sized afterwards is bounded by the new limits.
func (g *Governor) SetLimits(limits config.RiskConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits = limits
}

// CheckLimits reports a critical breach when drawdown or daily loss already
// exceeds its hard limit. The execution loop treats this as a halt trigger.
func (g *Governor) CheckLimits(prices map[string]float64) error {
	limits := g.Limits()
	if dd := g.pf.Drawdown(prices); dd > limits.MaxDrawdown {
		return errors.NewCriticalBreach(fmt.Sprintf("drawdown %.2f%% exceeds limit %.2f%%",
			dd*100, limits.MaxDrawdown*100))
	}
	if loss := g.pf.DailyLoss(prices); loss > limits.MaxDailyLoss {
		return errors.NewCriticalBreach(fmt.Sprintf("daily loss %.2f%% exceeds limit %.2f%%",
			loss*100, limits.MaxDailyLoss*100))
	}
	return nil
}

// Evaluate converts a portfolio signal into a bounded order, scaling down to
// stay inside limits wherever partial execution suffices and vetoing only when
// no compliant size remains.
func (g *Governor) Evaluate(signal strategy.PortfolioSignal, symbol string, prices map[string]float64) Verdict {
	if signal.FinalAction == strategy.ActionHold {
		return Verdict{Reason: "hold: no actionable consensus"}
	}
	if signal.TotalAmount <= 0 {
		return Verdict{Reason: "hold: zero notional"}
	}

	if err := g.CheckLimits(prices); err != nil {
		return Verdict{Vetoed: true, Reason: err.Error()}
	}

	limits := g.Limits()
	equity := g.pf.Equity(prices)
	if equity <= 0 {
		return Verdict{Vetoed: true, Reason: "no equity available"}
	}

	proposed := signal.TotalAmount
	rationale := fmt.Sprintf("signal $%.2f", proposed)

	if cap := equity * limits.MaxPositionSize; proposed > cap {
		proposed = cap
		rationale += fmt.Sprintf(", capped to %.0f%% of equity ($%.2f)", limits.MaxPositionSize*100, cap)
	}

	// Per-trade risk cap: with a stop-loss in place, the amount at risk is
	// notional * stopLoss, so the notional cap is equity * riskPerTrade / stopLoss.
	if limits.StopLoss > 0 {
		if cap := equity * limits.RiskPerTrade / limits.StopLoss; proposed > cap {
			proposed = cap
			rationale += fmt.Sprintf(", capped by per-trade risk ($%.2f)", cap)
		}
	}

	switch signal.FinalAction {
	case strategy.ActionBuy:
		// Existing exposure counts against the position cap
		if pos, ok := g.pf.Position(symbol); ok {
			price := prices[symbol]
			if price <= 0 {
				price = pos.AverageCost
			}
			headroom := equity*limits.MaxPositionSize - pos.Quantity*price
			if headroom <= 0 {
				return Verdict{Vetoed: true, Reason: fmt.Sprintf("position cap reached for %s", symbol)}
			}
			if proposed > headroom {
				proposed = headroom
				rationale += fmt.Sprintf(", scaled to position headroom ($%.2f)", headroom)
			}
		}
		if cash := g.pf.Cash(); proposed > cash {
			proposed = cash
			rationale += fmt.Sprintf(", scaled to cash ($%.2f)", cash)
		}

	case strategy.ActionSell:
		pos, ok := g.pf.Position(symbol)
		if !ok {
			return Verdict{Vetoed: true, Reason: fmt.Sprintf("no %s position to sell", symbol)}
		}
		price := prices[symbol]
		if price <= 0 {
			price = pos.AverageCost
		}
		if held := pos.Quantity * price; proposed > held {
			proposed = held
			rationale += fmt.Sprintf(", scaled to held value ($%.2f)", held)
		}
	}

	if proposed < minOrderNotional {
		return Verdict{Vetoed: true, Reason: fmt.Sprintf("scaled notional $%.2f below minimum", proposed)}
	}

	side := types.SideBuy
	if signal.FinalAction == strategy.ActionSell {
		side = types.SideSell
	}

	return Verdict{Order: &Order{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		Side:            side,
		Amount:          proposed,
		RequestedBy:     signal.TopContributor(),
		SizingRationale: rationale,
		CreatedAt:       time.Now(),
	}}
}

// StopLossSweep emits liquidation sell orders for positions whose unrealized
// loss breaches the configured stop-loss threshold. Returns nil when the
// stop-loss is disabled.
func (g *Governor) StopLossSweep(prices map[string]float64) []*Order {
	limits := g.Limits()
	if limits.StopLoss <= 0 {
		return nil
	}

	var orders []*Order
	for symbol, price := range prices {
		pos, ok := g.pf.Position(symbol)
		if !ok || price <= 0 {
			continue
		}
		if pnl := pos.UnrealizedPnLPercent(price); pnl <= -limits.StopLoss {
			orders = append(orders, &Order{
				ID:          uuid.NewString(),
				Symbol:      symbol,
				Side:        types.SideSell,
				Amount:      pos.Quantity * price,
				RequestedBy: "risk_governor",
				SizingRationale: fmt.Sprintf("stop-loss: unrealized %.2f%% breaches -%.2f%%",
					pnl*100, limits.StopLoss*100),
				CreatedAt: time.Now(),
			})
		}
	}
	return orders
}

// Limits returns the currently enforced risk limits
func (g *Governor) Limits() config.RiskConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}
