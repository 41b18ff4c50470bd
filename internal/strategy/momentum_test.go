package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/pkg/types"
)

func momentumConfig() config.MomentumConfig {
	return config.MomentumConfig{
		Enabled:          true,
		Allocation:       40,
		RiskLevel:        "MEDIUM",
		BaseAmount:       500,
		ShortWindow:      3,
		LongWindow:       10,
		TrendThreshold:   0.01,
		VolumeMultiplier: 1.5,
	}
}

// trendSamples generates a price series starting at base with a fixed step
func trendSamples(n int, base, step, volume float64) []types.MarketSample {
	samples := make([]types.MarketSample, n)
	for i := range samples {
		samples[i] = types.MarketSample{
			Symbol:    "BTCUSDT",
			Price:     base + step*float64(i),
			Volume:    volume,
			Timestamp: time.Now(),
		}
	}
	return samples
}

func TestNewMomentumStrategy_RejectsInvalidWindows(t *testing.T) {
	cfg := momentumConfig()
	cfg.ShortWindow = 10
	cfg.LongWindow = 5

	_, err := NewMomentumStrategy(cfg)
	assert.Error(t, err)
}

func TestMomentumStrategy_InsufficientHistory(t *testing.T) {
	s, err := NewMomentumStrategy(momentumConfig())
	require.NoError(t, err)

	signal := s.Analyze(sample("BTCUSDT", 100), trendSamples(5, 100, 1, 1000))

	assert.Equal(t, ActionHold, signal.Action)
	assert.Zero(t, signal.Confidence)
}

func TestMomentumStrategy_UptrendWithVolume(t *testing.T) {
	s, err := NewMomentumStrategy(momentumConfig())
	require.NoError(t, err)

	history := trendSamples(10, 100, 1, 1000) // 100..109 rising
	current := types.MarketSample{Symbol: "BTCUSDT", Price: 110, Volume: 5000, Timestamp: time.Now()}

	signal := s.Analyze(current, history)

	assert.Equal(t, ActionBuy, signal.Action)
	assert.Greater(t, signal.Confidence, 0.4)
	assert.LessOrEqual(t, signal.Confidence, 0.95)
	assert.Greater(t, signal.Amount, 0.0)
}

func TestMomentumStrategy_UptrendWithoutVolumeIsHold(t *testing.T) {
	s, err := NewMomentumStrategy(momentumConfig())
	require.NoError(t, err)

	history := trendSamples(10, 100, 1, 1000)
	current := types.MarketSample{Symbol: "BTCUSDT", Price: 110, Volume: 1000, Timestamp: time.Now()}

	signal := s.Analyze(current, history)

	assert.Equal(t, ActionHold, signal.Action)
	assert.InDelta(t, 0.2, signal.Confidence, 1e-9)
}

func TestMomentumStrategy_Downtrend(t *testing.T) {
	s, err := NewMomentumStrategy(momentumConfig())
	require.NoError(t, err)

	history := trendSamples(10, 110, -1, 1000) // 110..101 falling
	current := types.MarketSample{Symbol: "BTCUSDT", Price: 100, Volume: 1000, Timestamp: time.Now()}

	signal := s.Analyze(current, history)

	assert.Equal(t, ActionSell, signal.Action)
	assert.Greater(t, signal.Confidence, 0.4)
	assert.Greater(t, signal.Amount, 0.0)
}

func TestMomentumStrategy_SidewaysMarket(t *testing.T) {
	s, err := NewMomentumStrategy(momentumConfig())
	require.NoError(t, err)

	history := trendSamples(10, 100, 0, 1000)
	signal := s.Analyze(sample("BTCUSDT", 100), history)

	assert.Equal(t, ActionHold, signal.Action)
	assert.Zero(t, signal.Amount)
}

func TestMomentumStrategy_AmountScalesWithAllocation(t *testing.T) {
	cfg := momentumConfig()
	s, err := NewMomentumStrategy(cfg)
	require.NoError(t, err)

	cfg.Allocation = 20
	half, err := NewMomentumStrategy(cfg)
	require.NoError(t, err)

	history := trendSamples(10, 100, 1, 1000)
	current := types.MarketSample{Symbol: "BTCUSDT", Price: 110, Volume: 5000, Timestamp: time.Now()}

	full := s.Analyze(current, history)
	halved := half.Analyze(current, history)

	require.Equal(t, ActionBuy, full.Action)
	require.Equal(t, ActionBuy, halved.Action)
	assert.InDelta(t, full.Amount/2, halved.Amount, 1e-9)
}
