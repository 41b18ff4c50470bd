package strategy

import (
	"fmt"
	"math"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// MeanReversionStrategy trades price excursions beyond Bollinger-style bands
// confirmed by RSI. A close below the lower band with oversold RSI and enough
// volume is a BUY; the symmetric condition is a SELL. Excursions past 1.5
// standard deviations that miss the strict thresholds produce a weaker
// contrarian signal.
type MeanReversionStrategy struct {
	allocation     float64
	riskLevel      RiskLevel
	baseAmount     float64
	meanWindow     int
	rsiWindow      int
	bandWidth      float64
	rsiOversold    float64
	rsiOverbought  float64
	minVolumeRatio float64
}

// NewMeanReversionStrategy creates a mean reversion strategy from validated config
func NewMeanReversionStrategy(cfg config.MeanReversionConfig) (*MeanReversionStrategy, error) {
	level, err := ParseRiskLevel(cfg.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("mean reversion: %w", err)
	}
	if cfg.MeanWindow <= 1 || cfg.RSIWindow <= 1 {
		return nil, fmt.Errorf("mean reversion: windows invalid: mean=%d rsi=%d", cfg.MeanWindow, cfg.RSIWindow)
	}
	return &MeanReversionStrategy{
		allocation:     cfg.Allocation,
		riskLevel:      level,
		baseAmount:     cfg.BaseAmount,
		meanWindow:     cfg.MeanWindow,
		rsiWindow:      cfg.RSIWindow,
		bandWidth:      cfg.BandWidth,
		rsiOversold:    cfg.RSIOversold,
		rsiOverbought:  cfg.RSIOverbought,
		minVolumeRatio: cfg.MinVolumeRatio,
	}, nil
}

// Name returns the strategy name
func (m *MeanReversionStrategy) Name() string {
	return "mean_reversion"
}

// Analyze evaluates band and RSI excursions over the lookback window
func (m *MeanReversionStrategy) Analyze(current types.MarketSample, history []types.MarketSample) TradingSignal {
	required := m.meanWindow
	if m.rsiWindow+1 > required {
		required = m.rsiWindow + 1
	}
	if len(history) < required {
		return holdSignal(m.Name(), fmt.Sprintf("insufficient history: %d < %d", len(history), required))
	}
	if current.Price <= 0 {
		return holdSignal(m.Name(), "invalid current price")
	}

	window := history[len(history)-m.meanWindow:]
	mean := averagePrice(window)
	stddev := priceStdDev(window, mean)
	if stddev == 0 {
		return holdSignal(m.Name(), "flat window: zero standard deviation")
	}

	upper := mean + m.bandWidth*stddev
	lower := mean - m.bandWidth*stddev
	rsi := relativeStrengthIndex(history, m.rsiWindow)

	avgVolume := averageVolume(window)
	volumeRatio := 0.0
	if avgVolume > 0 {
		volumeRatio = current.Volume / avgVolume
	}
	zScore := (current.Price - mean) / stddev

	var signal TradingSignal
	switch {
	case current.Price < lower && rsi < m.rsiOversold:
		confidence := clamp(0.5+(m.rsiOversold-rsi)/100+(-zScore-m.bandWidth)*0.1, 0, 0.95)
		signal = TradingSignal{
			Strategy:   m.Name(),
			Action:     ActionBuy,
			Confidence: confidence,
			Reason: fmt.Sprintf("oversold: price %.2f < lower band %.2f, RSI %.1f, z %.2f",
				current.Price, lower, rsi, zScore),
		}

	case current.Price > upper && rsi > m.rsiOverbought:
		confidence := clamp(0.5+(rsi-m.rsiOverbought)/100+(zScore-m.bandWidth)*0.1, 0, 0.95)
		signal = TradingSignal{
			Strategy:   m.Name(),
			Action:     ActionSell,
			Confidence: confidence,
			Reason: fmt.Sprintf("overbought: price %.2f > upper band %.2f, RSI %.1f, z %.2f",
				current.Price, upper, rsi, zScore),
		}

	case math.Abs(zScore) > 1.5:
		// Contrarian lean without band/RSI confirmation
		action := ActionBuy
		if zScore > 0 {
			action = ActionSell
		}
		signal = TradingSignal{
			Strategy:   m.Name(),
			Action:     action,
			Confidence: 0.25,
			Reason:     fmt.Sprintf("weak contrarian: z %.2f, RSI %.1f", zScore, rsi),
		}

	default:
		return TradingSignal{
			Strategy:   m.Name(),
			Action:     ActionHold,
			Confidence: 0.1,
			Amount:     0,
			Reason:     fmt.Sprintf("within bands: price %.2f, mean %.2f, RSI %.1f", current.Price, mean, rsi),
		}
	}

	if volumeRatio < m.minVolumeRatio {
		signal.Confidence = clamp(signal.Confidence*0.6, 0, 0.95)
		signal.Reason += fmt.Sprintf(" (thin volume x%.2f)", volumeRatio)
	}
	signal.Amount = riskAdjustedAmount(m.baseAmount, signal.Confidence, m.riskLevel, m.allocation)
	return signal
}

func priceStdDev(samples []types.MarketSample, mean float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	variance := 0.0
	for _, s := range samples {
		diff := s.Price - mean
		variance += diff * diff
	}
	variance /= float64(len(samples))
	return math.Sqrt(variance)
}

// relativeStrengthIndex computes a simple-average RSI over the trailing window
func relativeStrengthIndex(history []types.MarketSample, window int) float64 {
	if len(history) < window+1 {
		return 50
	}
	gains := 0.0
	losses := 0.0
	for i := len(history) - window; i < len(history); i++ {
		delta := history[i].Price - history[i-1].Price
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100
	}
	rs := (gains / float64(window)) / (losses / float64(window))
	return 100 - 100/(1+rs)
}
