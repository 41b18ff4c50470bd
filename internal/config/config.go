package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the immutable session configuration. It is validated at startup
// and may only change afterwards through the trader's audited Reconfigure call.
type Config struct {
	Environment     string        `json:"environment"`
	Symbols         []string      `json:"symbols"`
	TickInterval    time.Duration `json:"tick_interval"`
	SessionDuration time.Duration `json:"session_duration"`
	InitialBalance  float64       `json:"initial_balance"`

	Strategies StrategiesConfig `json:"strategies"`
	Risk       RiskConfig       `json:"risk"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Reporting  ReportingConfig  `json:"reporting"`
}

// StrategiesConfig enumerates the competing strategy evaluators.
// Allocations of enabled strategies must sum to 100.
type StrategiesConfig struct {
	Momentum      MomentumConfig      `json:"momentum"`
	MeanReversion MeanReversionConfig `json:"mean_reversion"`
	Arbitrage     ArbitrageConfig     `json:"arbitrage"`
}

// MomentumConfig parameterizes the dual moving-average trend strategy
type MomentumConfig struct {
	Enabled          bool    `json:"enabled"`
	Allocation       float64 `json:"allocation"`
	RiskLevel        string  `json:"risk_level"`
	BaseAmount       float64 `json:"base_amount"`
	ShortWindow      int     `json:"short_window"`
	LongWindow       int     `json:"long_window"`
	TrendThreshold   float64 `json:"trend_threshold"`
	VolumeMultiplier float64 `json:"volume_multiplier"`
}

// MeanReversionConfig parameterizes the band/RSI contrarian strategy
type MeanReversionConfig struct {
	Enabled        bool    `json:"enabled"`
	Allocation     float64 `json:"allocation"`
	RiskLevel      string  `json:"risk_level"`
	BaseAmount     float64 `json:"base_amount"`
	MeanWindow     int     `json:"mean_window"`
	RSIWindow      int     `json:"rsi_window"`
	BandWidth      float64 `json:"band_width"`
	RSIOversold    float64 `json:"rsi_oversold"`
	RSIOverbought  float64 `json:"rsi_overbought"`
	MinVolumeRatio float64 `json:"min_volume_ratio"`
}

// ArbitrageConfig parameterizes cross-venue spread capture
type ArbitrageConfig struct {
	Enabled          bool     `json:"enabled"`
	Allocation       float64  `json:"allocation"`
	RiskLevel        string   `json:"risk_level"`
	BaseAmount       float64  `json:"base_amount"`
	Venues           []string `json:"venues"`
	MinProfitPercent float64  `json:"min_profit_percent"`
}

// RiskConfig holds the portfolio-level limits enforced by the risk governor.
// All percentages are fractions (0.15 = 15%).
type RiskConfig struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	MaxPositionSize float64 `json:"max_position_size"`
	MaxDailyLoss    float64 `json:"max_daily_loss"`
	RiskPerTrade    float64 `json:"risk_per_trade"`
	StopLoss        float64 `json:"stop_loss"` // 0 disables per-position stop-loss
}

// MonitoringConfig holds ports for the HTTP observability endpoints
type MonitoringConfig struct {
	PrometheusPort int `json:"prometheus_port"`
	HealthPort     int `json:"health_port"`
}

// ReportingConfig controls the end-of-session report
type ReportingConfig struct {
	ExcelPath string `json:"excel_path"` // empty disables the Excel export
}

// Load builds a configuration from environment variables with sane defaults
func Load() *Config {
	return &Config{
		Environment:     getEnv("ENV", "development"),
		Symbols:         getEnvList("TRADING_SYMBOLS", []string{"BTCUSDT", "ETHUSDT"}),
		TickInterval:    getEnvDuration("TICK_INTERVAL", 10*time.Second),
		SessionDuration: getEnvDuration("SESSION_DURATION", 24*time.Hour),
		InitialBalance:  getEnvFloat("INITIAL_BALANCE", 10000.0),

		Strategies: StrategiesConfig{
			Momentum: MomentumConfig{
				Enabled:          true,
				Allocation:       getEnvFloat("MOMENTUM_ALLOCATION", 40),
				RiskLevel:        getEnv("MOMENTUM_RISK_LEVEL", "MEDIUM"),
				BaseAmount:       getEnvFloat("MOMENTUM_BASE_AMOUNT", 500),
				ShortWindow:      getEnvInt("MOMENTUM_SHORT_WINDOW", 10),
				LongWindow:       getEnvInt("MOMENTUM_LONG_WINDOW", 30),
				TrendThreshold:   getEnvFloat("MOMENTUM_TREND_THRESHOLD", 0.01),
				VolumeMultiplier: getEnvFloat("MOMENTUM_VOLUME_MULTIPLIER", 1.5),
			},
			MeanReversion: MeanReversionConfig{
				Enabled:        true,
				Allocation:     getEnvFloat("MEANREV_ALLOCATION", 35),
				RiskLevel:      getEnv("MEANREV_RISK_LEVEL", "MEDIUM"),
				BaseAmount:     getEnvFloat("MEANREV_BASE_AMOUNT", 500),
				MeanWindow:     getEnvInt("MEANREV_MEAN_WINDOW", 20),
				RSIWindow:      getEnvInt("MEANREV_RSI_WINDOW", 14),
				BandWidth:      getEnvFloat("MEANREV_BAND_WIDTH", 2.0),
				RSIOversold:    getEnvFloat("MEANREV_RSI_OVERSOLD", 30),
				RSIOverbought:  getEnvFloat("MEANREV_RSI_OVERBOUGHT", 70),
				MinVolumeRatio: getEnvFloat("MEANREV_MIN_VOLUME_RATIO", 0.8),
			},
			Arbitrage: ArbitrageConfig{
				Enabled:          true,
				Allocation:       getEnvFloat("ARBITRAGE_ALLOCATION", 25),
				RiskLevel:        getEnv("ARBITRAGE_RISK_LEVEL", "LOW"),
				BaseAmount:       getEnvFloat("ARBITRAGE_BASE_AMOUNT", 500),
				Venues:           getEnvList("ARBITRAGE_VENUES", []string{"binance", "bybit", "okx"}),
				MinProfitPercent: getEnvFloat("ARBITRAGE_MIN_PROFIT", 0.3),
			},
		},

		Risk: RiskConfig{
			MaxDrawdown:     getEnvFloat("RISK_MAX_DRAWDOWN", 0.15),
			MaxPositionSize: getEnvFloat("RISK_MAX_POSITION_SIZE", 0.10),
			MaxDailyLoss:    getEnvFloat("RISK_MAX_DAILY_LOSS", 0.05),
			RiskPerTrade:    getEnvFloat("RISK_PER_TRADE", 0.02),
			StopLoss:        getEnvFloat("RISK_STOP_LOSS", 0.08),
		},

		Monitoring: MonitoringConfig{
			PrometheusPort: getEnvInt("PROMETHEUS_PORT", 8080),
			HealthPort:     getEnvInt("HEALTH_PORT", 8081),
		},

		Reporting: ReportingConfig{
			ExcelPath: getEnv("REPORT_EXCEL_PATH", ""),
		},
	}
}

// LoadFile loads a JSON config file and applies environment overrides on top
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks structural invariants before the session starts
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %.2f", c.InitialBalance)
	}

	if err := c.validateAllocations(); err != nil {
		return err
	}

	if c.Strategies.Momentum.Enabled {
		m := c.Strategies.Momentum
		if m.ShortWindow <= 0 || m.LongWindow <= 0 || m.ShortWindow >= m.LongWindow {
			return fmt.Errorf("momentum windows invalid: short=%d long=%d", m.ShortWindow, m.LongWindow)
		}
	}
	if c.Strategies.MeanReversion.Enabled {
		mr := c.Strategies.MeanReversion
		if mr.MeanWindow <= 0 || mr.RSIWindow <= 0 {
			return fmt.Errorf("mean reversion windows invalid: mean=%d rsi=%d", mr.MeanWindow, mr.RSIWindow)
		}
		if mr.BandWidth <= 0 {
			return fmt.Errorf("mean reversion band width must be positive, got %.2f", mr.BandWidth)
		}
	}
	if c.Strategies.Arbitrage.Enabled && len(c.Strategies.Arbitrage.Venues) < 2 {
		return fmt.Errorf("arbitrage requires at least two venues, got %d", len(c.Strategies.Arbitrage.Venues))
	}

	return c.Risk.Validate()
}

// validateAllocations enforces that enabled strategy allocations sum to exactly 100
func (c *Config) validateAllocations() error {
	total := 0.0
	if c.Strategies.Momentum.Enabled {
		total += c.Strategies.Momentum.Allocation
	}
	if c.Strategies.MeanReversion.Enabled {
		total += c.Strategies.MeanReversion.Allocation
	}
	if c.Strategies.Arbitrage.Enabled {
		total += c.Strategies.Arbitrage.Allocation
	}
	if math.Abs(total-100) > 1e-9 {
		return fmt.Errorf("strategy allocations must sum to 100, got %.2f", total)
	}
	return nil
}

// Validate checks that all risk limits are usable fractions
func (r *RiskConfig) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"max_drawdown", r.MaxDrawdown},
		{"max_position_size", r.MaxPositionSize},
		{"max_daily_loss", r.MaxDailyLoss},
		{"risk_per_trade", r.RiskPerTrade},
	}
	for _, chk := range checks {
		if chk.value <= 0 || chk.value > 1 {
			return fmt.Errorf("risk limit %s must be in (0, 1], got %.4f", chk.name, chk.value)
		}
	}
	if r.StopLoss < 0 || r.StopLoss > 1 {
		return fmt.Errorf("risk limit stop_loss must be in [0, 1], got %.4f", r.StopLoss)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}
