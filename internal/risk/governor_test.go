package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/internal/errors"
	"github.com/tradeforge/competition-trader/internal/portfolio"
	"github.com/tradeforge/competition-trader/internal/strategy"
	"github.com/tradeforge/competition-trader/pkg/types"
)

func defaultLimits() config.RiskConfig {
	return config.RiskConfig{
		MaxDrawdown:     0.15,
		MaxPositionSize: 0.10,
		MaxDailyLoss:    0.05,
		RiskPerTrade:    0.02,
		StopLoss:        0.08,
	}
}

func buyDecision(amount, confidence float64) strategy.PortfolioSignal {
	return strategy.PortfolioSignal{
		FinalAction: strategy.ActionBuy,
		Confidence:  confidence,
		TotalAmount: amount,
		Contributing: []strategy.TradingSignal{
			{Strategy: "momentum", Action: strategy.ActionBuy, Confidence: confidence, Amount: amount},
		},
	}
}

func sellDecision(amount, confidence float64) strategy.PortfolioSignal {
	return strategy.PortfolioSignal{
		FinalAction: strategy.ActionSell,
		Confidence:  confidence,
		TotalAmount: amount,
		Contributing: []strategy.TradingSignal{
			{Strategy: "momentum", Action: strategy.ActionSell, Confidence: confidence, Amount: amount},
		},
	}
}

func fill(symbol string, side types.OrderSide, quantity, price float64) types.Fill {
	return types.Fill{
		OrderID:   "test",
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Notional:  quantity * price,
		Timestamp: time.Now(),
	}
}

func TestGovernor_Evaluate_HoldProducesNoOrder(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	g := NewGovernor(defaultLimits(), pf)

	verdict := g.Evaluate(strategy.PortfolioSignal{FinalAction: strategy.ActionHold}, "BTCUSDT", nil)

	assert.Nil(t, verdict.Order)
	assert.False(t, verdict.Vetoed)
}

func TestGovernor_Evaluate_CapsToMaxPositionSize(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	g := NewGovernor(defaultLimits(), pf)

	verdict := g.Evaluate(buyDecision(5000, 0.9), "BTCUSDT", map[string]float64{"BTCUSDT": 65000})

	require.NotNil(t, verdict.Order)
	assert.InDelta(t, 1000, verdict.Order.Amount, 1e-9, "10%% of $10k equity")
	assert.Equal(t, types.SideBuy, verdict.Order.Side)
	assert.Equal(t, "momentum", verdict.Order.RequestedBy)
}

func TestGovernor_Evaluate_NeverExceedsPositionCap(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	g := NewGovernor(defaultLimits(), pf)
	prices := map[string]float64{"BTCUSDT": 65000}

	for c := 0.0; c <= 1.0; c += 0.05 {
		verdict := g.Evaluate(buyDecision(4000, c), "BTCUSDT", prices)
		if verdict.Order == nil {
			continue
		}
		assert.LessOrEqual(t, verdict.Order.Amount, 10000*0.10+1e-9, "confidence %.2f", c)
	}
}

func TestGovernor_Evaluate_PerTradeRiskCap(t *testing.T) {
	limits := defaultLimits()
	limits.MaxPositionSize = 0.50 // loosen so the risk cap binds instead
	pf := portfolio.New(10000, time.Now())
	g := NewGovernor(limits, pf)

	verdict := g.Evaluate(buyDecision(4000, 0.9), "BTCUSDT", map[string]float64{"BTCUSDT": 65000})

	require.NotNil(t, verdict.Order)
	// equity * riskPerTrade / stopLoss = 10000 * 0.02 / 0.08
	assert.InDelta(t, 2500, verdict.Order.Amount, 1e-9)
}

func TestGovernor_Evaluate_VetoOnDrawdownBreach(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	require.NoError(t, pf.ApplyFill(fill("BTCUSDT", types.SideBuy, 10, 500)))

	g := NewGovernor(defaultLimits(), pf)

	// Price collapse: equity 5000 cash + 3000 position = 8000, drawdown 20%
	prices := map[string]float64{"BTCUSDT": 300}
	verdict := g.Evaluate(buyDecision(500, 0.9), "BTCUSDT", prices)

	assert.True(t, verdict.Vetoed)
	assert.Nil(t, verdict.Order)

	err := g.CheckLimits(prices)
	require.Error(t, err)
	assert.Equal(t, errors.FaultCategoryCritical, errors.CategoryOf(err))
}

func TestGovernor_Evaluate_SellWithoutPositionVetoed(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	g := NewGovernor(defaultLimits(), pf)

	verdict := g.Evaluate(sellDecision(500, 0.8), "BTCUSDT", map[string]float64{"BTCUSDT": 65000})

	assert.True(t, verdict.Vetoed)
	assert.Contains(t, verdict.Reason, "no BTCUSDT position")
}

func TestGovernor_Evaluate_SellCappedToHeldValue(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	require.NoError(t, pf.ApplyFill(fill("BTCUSDT", types.SideBuy, 0.005, 60000))) // $300 position

	g := NewGovernor(defaultLimits(), pf)
	verdict := g.Evaluate(sellDecision(2000, 0.8), "BTCUSDT", map[string]float64{"BTCUSDT": 60000})

	require.NotNil(t, verdict.Order)
	assert.InDelta(t, 300, verdict.Order.Amount, 1e-9)
	assert.Equal(t, types.SideSell, verdict.Order.Side)
}

func TestGovernor_Evaluate_DustVetoed(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	g := NewGovernor(defaultLimits(), pf)

	verdict := g.Evaluate(buyDecision(0.5, 0.9), "BTCUSDT", map[string]float64{"BTCUSDT": 65000})

	assert.True(t, verdict.Vetoed)
	assert.Nil(t, verdict.Order)
}

func TestGovernor_Evaluate_BuyScaledToPositionHeadroom(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	// Existing $800 position eats most of the $1000 cap
	require.NoError(t, pf.ApplyFill(fill("BTCUSDT", types.SideBuy, 0.0125, 64000)))

	g := NewGovernor(defaultLimits(), pf)
	verdict := g.Evaluate(buyDecision(900, 0.9), "BTCUSDT", map[string]float64{"BTCUSDT": 64000})

	require.NotNil(t, verdict.Order)
	assert.InDelta(t, 200, verdict.Order.Amount, 1e-6)
}

func TestGovernor_Evaluate_PositionCapReachedVetoed(t *testing.T) {
	limits := defaultLimits()
	pf := portfolio.New(10000, time.Now())
	require.NoError(t, pf.ApplyFill(fill("BTCUSDT", types.SideBuy, 0.0157, 64000))) // ~$1005

	g := NewGovernor(limits, pf)
	verdict := g.Evaluate(buyDecision(500, 0.9), "BTCUSDT", map[string]float64{"BTCUSDT": 64000})

	assert.True(t, verdict.Vetoed)
	assert.Contains(t, verdict.Reason, "position cap reached")
}

func TestGovernor_StopLossSweep(t *testing.T) {
	pf := portfolio.New(10000, time.Now())
	require.NoError(t, pf.ApplyFill(fill("BTCUSDT", types.SideBuy, 0.01, 60000)))
	require.NoError(t, pf.ApplyFill(fill("ETHUSDT", types.SideBuy, 0.5, 3000)))

	g := NewGovernor(defaultLimits(), pf)

	// BTC down 10% breaches the 8% stop; ETH down 2% does not
	orders := g.StopLossSweep(map[string]float64{"BTCUSDT": 54000, "ETHUSDT": 2940})

	require.Len(t, orders, 1)
	assert.Equal(t, "BTCUSDT", orders[0].Symbol)
	assert.Equal(t, types.SideSell, orders[0].Side)
	assert.InDelta(t, 0.01*54000, orders[0].Amount, 1e-9)
	assert.Equal(t, "risk_governor", orders[0].RequestedBy)
}

func TestGovernor_StopLossSweep_DisabledWhenZero(t *testing.T) {
	limits := defaultLimits()
	limits.StopLoss = 0

	pf := portfolio.New(10000, time.Now())
	require.NoError(t, pf.ApplyFill(fill("BTCUSDT", types.SideBuy, 0.01, 60000)))

	g := NewGovernor(limits, pf)
	assert.Nil(t, g.StopLossSweep(map[string]float64{"BTCUSDT": 30000}))
}
