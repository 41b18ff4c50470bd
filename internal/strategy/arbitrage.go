package strategy

import (
	"fmt"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// VenueQuoter supplies per-venue quotes for one symbol. Implementations must
// fail fast: an error means no arbitrage evaluation for this tick.
type VenueQuoter interface {
	Quotes(symbol string) ([]types.VenueQuote, error)
}

// ArbitrageStrategy scans pairwise venue quotes for the spread with the best
// net profit after execution costs. A BUY signal means "execute the arbitrage
// leg"; the strategy never emits SELL.
type ArbitrageStrategy struct {
	allocation       float64
	riskLevel        RiskLevel
	baseAmount       float64
	minProfitPercent float64
	quoter           VenueQuoter
}

// NewArbitrageStrategy creates an arbitrage strategy backed by the given quoter
func NewArbitrageStrategy(cfg config.ArbitrageConfig, quoter VenueQuoter) (*ArbitrageStrategy, error) {
	level, err := ParseRiskLevel(cfg.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("arbitrage: %w", err)
	}
	if quoter == nil {
		return nil, fmt.Errorf("arbitrage: venue quoter is required")
	}
	return &ArbitrageStrategy{
		allocation:       cfg.Allocation,
		riskLevel:        level,
		baseAmount:       cfg.BaseAmount,
		minProfitPercent: cfg.MinProfitPercent,
		quoter:           quoter,
	}, nil
}

// Name returns the strategy name
func (a *ArbitrageStrategy) Name() string {
	return "arbitrage"
}

// Analyze selects the venue pair with the maximum net profit percentage
func (a *ArbitrageStrategy) Analyze(current types.MarketSample, _ []types.MarketSample) TradingSignal {
	quotes, err := a.quoter.Quotes(current.Symbol)
	if err != nil {
		return holdSignal(a.Name(), fmt.Sprintf("venue quotes unavailable: %v", err))
	}
	if len(quotes) < 2 {
		return holdSignal(a.Name(), fmt.Sprintf("need at least 2 venue quotes, got %d", len(quotes)))
	}

	bestNetPct := 0.0
	var bestBuy, bestSell types.VenueQuote
	found := false

	for i, buy := range quotes {
		if buy.Price <= 0 {
			continue
		}
		for j, sell := range quotes {
			if i == j {
				continue
			}
			gross := sell.Price - buy.Price
			net := gross - buy.ExecutionCost - sell.ExecutionCost
			netPct := net / buy.Price * 100
			if !found || netPct > bestNetPct {
				bestNetPct = netPct
				bestBuy = buy
				bestSell = sell
				found = true
			}
		}
	}

	if !found || bestNetPct <= a.minProfitPercent {
		return TradingSignal{
			Strategy:   a.Name(),
			Action:     ActionHold,
			Confidence: 0.05,
			Amount:     0,
			Reason:     fmt.Sprintf("best spread %.3f%% below threshold %.3f%%", bestNetPct, a.minProfitPercent),
		}
	}

	confidence := clamp(0.5+(bestNetPct-a.minProfitPercent)*0.2, 0, 0.95)
	amount := riskAdjustedAmount(a.baseAmount, confidence, a.riskLevel, a.allocation)

	// Never size past the thinner leg
	liquidity := bestBuy.Liquidity
	if bestSell.Liquidity < liquidity {
		liquidity = bestSell.Liquidity
	}
	if liquidity > 0 && amount > liquidity {
		amount = liquidity
	}

	return TradingSignal{
		Strategy:   a.Name(),
		Action:     ActionBuy,
		Confidence: confidence,
		Amount:     amount,
		Reason: fmt.Sprintf("spread %.3f%%: buy %s @ %.2f, sell %s @ %.2f",
			bestNetPct, bestBuy.Venue, bestBuy.Price, bestSell.Venue, bestSell.Price),
	}
}
