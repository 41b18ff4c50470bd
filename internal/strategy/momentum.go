package strategy

import (
	"fmt"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// MomentumStrategy flags trends with a dual moving-average crossover confirmed
// by volume. An uptrend needs the short MA above the long MA, a price change
// over the long window above the trend threshold, and current volume exceeding
// the average volume by the configured multiplier.
type MomentumStrategy struct {
	allocation       float64
	riskLevel        RiskLevel
	baseAmount       float64
	shortWindow      int
	longWindow       int
	trendThreshold   float64
	volumeMultiplier float64
}

// NewMomentumStrategy creates a momentum strategy from validated config
func NewMomentumStrategy(cfg config.MomentumConfig) (*MomentumStrategy, error) {
	level, err := ParseRiskLevel(cfg.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("momentum: %w", err)
	}
	if cfg.ShortWindow <= 0 || cfg.LongWindow <= cfg.ShortWindow {
		return nil, fmt.Errorf("momentum: windows invalid: short=%d long=%d", cfg.ShortWindow, cfg.LongWindow)
	}
	return &MomentumStrategy{
		allocation:       cfg.Allocation,
		riskLevel:        level,
		baseAmount:       cfg.BaseAmount,
		shortWindow:      cfg.ShortWindow,
		longWindow:       cfg.LongWindow,
		trendThreshold:   cfg.TrendThreshold,
		volumeMultiplier: cfg.VolumeMultiplier,
	}, nil
}

// Name returns the strategy name
func (m *MomentumStrategy) Name() string {
	return "momentum"
}

// Analyze evaluates the trend over the lookback window
func (m *MomentumStrategy) Analyze(current types.MarketSample, history []types.MarketSample) TradingSignal {
	if len(history) < m.longWindow {
		return holdSignal(m.Name(), fmt.Sprintf("insufficient history: %d < %d", len(history), m.longWindow))
	}
	if current.Price <= 0 {
		return holdSignal(m.Name(), "invalid current price")
	}

	shortMA := averagePrice(history[len(history)-m.shortWindow:])
	longMA := averagePrice(history[len(history)-m.longWindow:])

	windowStart := history[len(history)-m.longWindow].Price
	if windowStart <= 0 {
		return holdSignal(m.Name(), "invalid window start price")
	}
	trendStrength := (current.Price - windowStart) / windowStart

	avgVolume := averageVolume(history[len(history)-m.longWindow:])
	volumeRatio := 0.0
	if avgVolume > 0 {
		volumeRatio = current.Volume / avgVolume
	}

	switch {
	case shortMA > longMA && trendStrength > m.trendThreshold && volumeRatio > m.volumeMultiplier:
		confidence := clamp(0.4+trendStrength*8+(volumeRatio/m.volumeMultiplier-1)*0.2, 0, 0.95)
		return TradingSignal{
			Strategy:   m.Name(),
			Action:     ActionBuy,
			Confidence: confidence,
			Amount:     riskAdjustedAmount(m.baseAmount, confidence, m.riskLevel, m.allocation),
			Reason: fmt.Sprintf("uptrend: shortMA %.2f > longMA %.2f, trend %.2f%%, volume x%.2f",
				shortMA, longMA, trendStrength*100, volumeRatio),
		}

	case shortMA < longMA && trendStrength < -m.trendThreshold:
		confidence := clamp(0.4-trendStrength*8, 0, 0.95)
		return TradingSignal{
			Strategy:   m.Name(),
			Action:     ActionSell,
			Confidence: confidence,
			Amount:     riskAdjustedAmount(m.baseAmount, confidence, m.riskLevel, m.allocation),
			Reason: fmt.Sprintf("downtrend: shortMA %.2f < longMA %.2f, trend %.2f%%",
				shortMA, longMA, trendStrength*100),
		}

	default:
		return TradingSignal{
			Strategy:   m.Name(),
			Action:     ActionHold,
			Confidence: 0.2,
			Amount:     0,
			Reason:     fmt.Sprintf("no trend: shortMA %.2f, longMA %.2f, trend %.2f%%", shortMA, longMA, trendStrength*100),
		}
	}
}

func averagePrice(samples []types.MarketSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Price
	}
	return sum / float64(len(samples))
}

func averageVolume(samples []types.MarketSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Volume
	}
	return sum / float64(len(samples))
}
