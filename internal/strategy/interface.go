package strategy

import (
	"fmt"
	"strings"

	"github.com/tradeforge/competition-trader/pkg/types"
)

// Strategy is a stateless-per-call signal evaluator. Analyze never returns an
// error: on internal failure it yields a HOLD signal with confidence 0 and a
// diagnostic reason, so one bad strategy can never block a tick.
type Strategy interface {
	// Analyze maps the current sample plus lookback history to one signal
	Analyze(current types.MarketSample, history []types.MarketSample) TradingSignal

	// Name returns the strategy name used for attribution
	Name() string
}

// SignalAction is the per-strategy recommendation
type SignalAction int

const (
	ActionHold SignalAction = iota
	ActionBuy
	ActionSell
)

func (a SignalAction) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// TradingSignal is one strategy's per-tick recommendation
type TradingSignal struct {
	Strategy   string
	Action     SignalAction
	Confidence float64 // [0, 1]
	Amount     float64 // USD notional, >= 0
	Reason     string
}

// PortfolioSignal is the reconciled decision across all strategies for one tick
type PortfolioSignal struct {
	FinalAction  SignalAction
	Confidence   float64
	TotalAmount  float64
	Contributing []TradingSignal
	Reasoning    string
}

// TopContributor returns the name of the highest-confidence signal agreeing
// with the final action, for order attribution. Empty string on HOLD.
func (p PortfolioSignal) TopContributor() string {
	best := ""
	bestConf := 0.0
	for _, s := range p.Contributing {
		if s.Action == p.FinalAction && s.Confidence > bestConf {
			best = s.Strategy
			bestConf = s.Confidence
		}
	}
	return best
}

// RiskLevel scales a strategy's base notional
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Multiplier returns the fixed sizing multiplier for the risk level
func (r RiskLevel) Multiplier() float64 {
	switch r {
	case RiskLow:
		return 0.5
	case RiskHigh:
		return 1.5
	default:
		return 1.0
	}
}

// ParseRiskLevel parses a config risk level string, defaulting unknown values to MEDIUM
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM", "":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	default:
		return RiskMedium, fmt.Errorf("unknown risk level %q", s)
	}
}

// riskAdjustedAmount couples strategy confidence, risk level and portfolio
// allocation into one deterministic notional figure
func riskAdjustedAmount(base, confidence float64, level RiskLevel, allocation float64) float64 {
	amount := base * confidence * level.Multiplier() * (allocation / 100)
	if amount < 0 {
		return 0
	}
	return amount
}

// holdSignal builds the zero-notional fallback signal every strategy uses
// when it cannot or should not trade
func holdSignal(name, reason string) TradingSignal {
	return TradingSignal{
		Strategy:   name,
		Action:     ActionHold,
		Confidence: 0,
		Amount:     0,
		Reason:     reason,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
