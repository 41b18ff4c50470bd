package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/pkg/types"
)

func arbitrageConfig() config.ArbitrageConfig {
	return config.ArbitrageConfig{
		Enabled:          true,
		Allocation:       25,
		RiskLevel:        "LOW",
		BaseAmount:       500,
		Venues:           []string{"binance", "bybit"},
		MinProfitPercent: 0.3,
	}
}

// stubQuoter returns fixed quotes or a fixed error
type stubQuoter struct {
	quotes []types.VenueQuote
	err    error
}

func (q *stubQuoter) Quotes(_ string) ([]types.VenueQuote, error) {
	return q.quotes, q.err
}

func quote(venue string, price, liquidity, cost float64) types.VenueQuote {
	return types.VenueQuote{
		Venue:         venue,
		Symbol:        "BTCUSDT",
		Price:         price,
		Liquidity:     liquidity,
		ExecutionCost: cost,
		Timestamp:     time.Now(),
	}
}

func TestNewArbitrageStrategy_RequiresQuoter(t *testing.T) {
	_, err := NewArbitrageStrategy(arbitrageConfig(), nil)
	assert.Error(t, err)
}

func TestArbitrageStrategy_ProfitableSpread(t *testing.T) {
	quoter := &stubQuoter{quotes: []types.VenueQuote{
		quote("binance", 100, 5000, 0.05),
		quote("bybit", 102, 5000, 0.05),
	}}
	s, err := NewArbitrageStrategy(arbitrageConfig(), quoter)
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), nil)

	// net = 2 - 0.1 = 1.9% against the 0.3% threshold
	assert.Equal(t, ActionBuy, signal.Action)
	assert.InDelta(t, 0.82, signal.Confidence, 1e-9)
	assert.Greater(t, signal.Amount, 0.0)
}

func TestArbitrageStrategy_SpreadBelowThreshold(t *testing.T) {
	quoter := &stubQuoter{quotes: []types.VenueQuote{
		quote("binance", 100, 5000, 0.05),
		quote("bybit", 100.2, 5000, 0.05),
	}}
	s, err := NewArbitrageStrategy(arbitrageConfig(), quoter)
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), nil)

	assert.Equal(t, ActionHold, signal.Action)
	assert.InDelta(t, 0.05, signal.Confidence, 1e-9)
	assert.Zero(t, signal.Amount)
}

func TestArbitrageStrategy_CostsEraseSpread(t *testing.T) {
	quoter := &stubQuoter{quotes: []types.VenueQuote{
		quote("binance", 100, 5000, 1.0),
		quote("bybit", 101, 5000, 1.0),
	}}
	s, err := NewArbitrageStrategy(arbitrageConfig(), quoter)
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), nil)

	assert.Equal(t, ActionHold, signal.Action)
}

func TestArbitrageStrategy_AmountCappedByThinnerLeg(t *testing.T) {
	quoter := &stubQuoter{quotes: []types.VenueQuote{
		quote("binance", 100, 5000, 0.05),
		quote("bybit", 102, 50, 0.05), // thin sell leg
	}}
	s, err := NewArbitrageStrategy(arbitrageConfig(), quoter)
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), nil)

	require.Equal(t, ActionBuy, signal.Action)
	// base 500 * 0.82 * 0.5 (LOW) * 0.25 = 51.25, capped to the 50 of liquidity
	assert.InDelta(t, 50, signal.Amount, 1e-9)
}

func TestArbitrageStrategy_QuoterErrorFailsFast(t *testing.T) {
	quoter := &stubQuoter{err: fmt.Errorf("venue unreachable")}
	s, err := NewArbitrageStrategy(arbitrageConfig(), quoter)
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), nil)

	assert.Equal(t, ActionHold, signal.Action)
	assert.Zero(t, signal.Confidence)
	assert.Contains(t, signal.Reason, "venue quotes unavailable")
}

func TestArbitrageStrategy_SingleQuoteIsHold(t *testing.T) {
	quoter := &stubQuoter{quotes: []types.VenueQuote{quote("binance", 100, 5000, 0.05)}}
	s, err := NewArbitrageStrategy(arbitrageConfig(), quoter)
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), nil)

	assert.Equal(t, ActionHold, signal.Action)
}
