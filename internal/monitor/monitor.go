package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tradeforge/competition-trader/internal/events"
	"github.com/tradeforge/competition-trader/internal/monitoring"
)

// PortfolioView is the read-only slice of portfolio state the monitor samples
type PortfolioView struct {
	Equity      float64
	RealizedPnL float64
}

// TradeRecord is one ingested trade outcome
type TradeRecord struct {
	Timestamp time.Time
	Symbol    string
	Side      string
	Strategy  string
	Notional  float64
	PnL       float64
	Success   bool
	Reason    string
}

// Metrics is the derived snapshot recomputed each monitoring period. It is a
// pure function of the trade log and equity history, never independently mutated.
type Metrics struct {
	Timestamp          time.Time
	TotalTrades        int
	SuccessfulTrades   int
	FailedTrades       int
	RealizedPnL        float64
	RealizedPnLPercent float64
	WinRate            float64
	MaxDrawdown        float64
	CurrentDrawdown    float64
	TradesPerHour      float64
	StrategyPnL        map[string]float64
	ValueAtRisk95      float64
	Equity             float64
	Uptime             time.Duration
}

// Config holds monitoring cadences and alert thresholds
type Config struct {
	MetricsInterval   time.Duration
	HealthInterval    time.Duration
	DrawdownWarning   float64
	DrawdownCritical  float64
	FailureRateWindow time.Duration
	FailureRateLimit  float64
	StaleTradeWindow  time.Duration
}

// DefaultConfig returns the standard monitoring cadence and thresholds
func DefaultConfig() Config {
	return Config{
		MetricsInterval:   10 * time.Second,
		HealthInterval:    30 * time.Second,
		DrawdownWarning:   0.10,
		DrawdownCritical:  0.15,
		FailureRateWindow: time.Hour,
		FailureRateLimit:  0.20,
		StaleTradeWindow:  30 * time.Minute,
	}
}

type alertLogger interface {
	Alert(format string, args ...interface{})
}

// Monitor is the independent periodic observer: it ingests trade events from
// the bus, recomputes rolling metrics on its own cadence, and raises alerts
// when thresholds are crossed. It only reads portfolio state and appends to
// its own logs; it never mutates the portfolio.
type Monitor struct {
	cfg       Config
	bus       *events.Bus
	view      func() PortfolioView
	health    func() bool
	log       alertLogger
	alerts    *AlertLog
	startedAt time.Time
	baseline  float64

	mu          sync.RWMutex
	trades      []TradeRecord
	equityCurve []float64
	hwm         float64
	maxDrawdown float64
	lastMetrics Metrics
	active      map[string]bool // alert conditions currently firing
}

// New creates a monitor over the given event bus and portfolio view.
// healthProbe may be nil; view must not be.
func New(cfg Config, bus *events.Bus, view func() PortfolioView, healthProbe func() bool, log alertLogger) *Monitor {
	baseline := view().Equity
	return &Monitor{
		cfg:       cfg,
		bus:       bus,
		view:      view,
		health:    healthProbe,
		log:       log,
		alerts:    NewAlertLog(),
		startedAt: time.Now(),
		baseline:  baseline,
		hwm:       baseline,
		active:    make(map[string]bool),
	}
}

// Alerts exposes the append-only alert log
func (m *Monitor) Alerts() *AlertLog {
	return m.alerts
}

// Run ingests events and drives the metrics and health cadences until the
// context is cancelled or the bus closes
func (m *Monitor) Run(ctx context.Context) {
	sub := m.bus.Subscribe(512)

	metricsTicker := time.NewTicker(m.cfg.MetricsInterval)
	defer metricsTicker.Stop()
	healthTicker := time.NewTicker(m.cfg.HealthInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			m.ingest(e)
		case <-metricsTicker.C:
			m.recompute()
		case <-healthTicker.C:
			m.checkHealth()
		}
	}
}

// ingest records one event from the execution loop
func (m *Monitor) ingest(e events.Event) {
	switch e.Type {
	case events.TypeTradeExecuted:
		m.mu.Lock()
		m.trades = append(m.trades, TradeRecord{
			Timestamp: e.Timestamp,
			Symbol:    e.Symbol,
			Side:      e.Side,
			Strategy:  e.Strategy,
			Notional:  e.Notional,
			PnL:       e.PnL,
			Success:   true,
		})
		m.mu.Unlock()
		m.recompute()

	case events.TypeTradeFailed:
		m.mu.Lock()
		m.trades = append(m.trades, TradeRecord{
			Timestamp: e.Timestamp,
			Symbol:    e.Symbol,
			Side:      e.Side,
			Strategy:  e.Strategy,
			Notional:  e.Notional,
			Reason:    e.Reason,
		})
		m.mu.Unlock()
	}
}

// recompute derives the current metrics snapshot from the trade log and
// portfolio view
func (m *Monitor) recompute() {
	view := m.view()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.equityCurve = append(m.equityCurve, view.Equity)
	if view.Equity > m.hwm {
		m.hwm = view.Equity
	}
	currentDrawdown := 0.0
	if m.hwm > 0 {
		currentDrawdown = (m.hwm - view.Equity) / m.hwm
	}
	if currentDrawdown > m.maxDrawdown {
		m.maxDrawdown = currentDrawdown
	}

	var successful, failed, wins, closed int
	strategyPnL := make(map[string]float64)
	for _, t := range m.trades {
		if t.Success {
			successful++
			if t.Strategy != "" {
				strategyPnL[t.Strategy] += t.PnL
			}
			if t.Side == "SELL" {
				closed++
				if t.PnL > 0 {
					wins++
				}
			}
		} else {
			failed++
		}
	}

	winRate := 0.0
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}

	uptime := time.Since(m.startedAt)
	tradesPerHour := 0.0
	if hours := uptime.Hours(); hours > 0 {
		tradesPerHour = float64(successful) / hours
	}

	pnlPercent := 0.0
	if m.baseline > 0 {
		pnlPercent = view.RealizedPnL / m.baseline * 100
	}

	m.lastMetrics = Metrics{
		Timestamp:          time.Now(),
		TotalTrades:        successful + failed,
		SuccessfulTrades:   successful,
		FailedTrades:       failed,
		RealizedPnL:        view.RealizedPnL,
		RealizedPnLPercent: pnlPercent,
		WinRate:            winRate,
		MaxDrawdown:        m.maxDrawdown,
		CurrentDrawdown:    currentDrawdown,
		TradesPerHour:      tradesPerHour,
		StrategyPnL:        strategyPnL,
		ValueAtRisk95:      valueAtRisk(m.equityCurve, 0.95),
		Equity:             view.Equity,
		Uptime:             uptime,
	}
}

// RefreshMetrics forces an immediate recomputation, used for the final
// end-of-session snapshot
func (m *Monitor) RefreshMetrics() Metrics {
	m.recompute()
	return m.GetMetrics()
}

// Trades returns a copy of the ingested trade log, oldest first
func (m *Monitor) Trades() []TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// GetMetrics returns the most recent metrics snapshot
func (m *Monitor) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.lastMetrics
	snap.StrategyPnL = make(map[string]float64, len(m.lastMetrics.StrategyPnL))
	for k, v := range m.lastMetrics.StrategyPnL {
		snap.StrategyPnL[k] = v
	}
	return snap
}

// checkHealth evaluates the alerting rules for the current period
func (m *Monitor) checkHealth() {
	m.recompute()
	metrics := m.GetMetrics()

	// Drawdown thresholds; the critical alert is the execution loop's halt trigger
	switch {
	case metrics.CurrentDrawdown > m.cfg.DrawdownCritical:
		m.raiseOnce("drawdown_critical", events.AlertCritical, "risk",
			"drawdown %.2f%% exceeds critical threshold %.2f%%",
			metrics.CurrentDrawdown*100, m.cfg.DrawdownCritical*100)
	case metrics.CurrentDrawdown > m.cfg.DrawdownWarning:
		m.raiseOnce("drawdown_warning", events.AlertWarning, "risk",
			"drawdown %.2f%% exceeds warning threshold %.2f%%",
			metrics.CurrentDrawdown*100, m.cfg.DrawdownWarning*100)
	default:
		m.clearCondition("drawdown_warning")
		m.clearCondition("drawdown_critical")
	}

	if m.health != nil && !m.health() {
		m.raiseOnce("health_probe", events.AlertWarning, "health", "health probe failed")
	} else {
		m.clearCondition("health_probe")
	}

	if rate, enough := m.trailingFailureRate(); enough && rate > m.cfg.FailureRateLimit {
		m.raiseOnce("failure_rate", events.AlertWarning, "execution",
			"trade failure rate %.0f%% over trailing window exceeds %.0f%%",
			rate*100, m.cfg.FailureRateLimit*100)
	} else {
		m.clearCondition("failure_rate")
	}

	if time.Since(m.startedAt) > m.cfg.StaleTradeWindow && m.lastTradeAge() > m.cfg.StaleTradeWindow {
		m.raiseOnce("no_trades", events.AlertWarning, "activity",
			"no trades executed in the last %s", m.cfg.StaleTradeWindow)
	} else {
		m.clearCondition("no_trades")
	}
}

// raiseOnce raises an alert when its condition transitions from clear to firing
func (m *Monitor) raiseOnce(key string, level events.AlertLevel, category, format string, args ...interface{}) {
	m.mu.Lock()
	if m.active[key] {
		m.mu.Unlock()
		return
	}
	m.active[key] = true
	m.mu.Unlock()

	alert := m.alerts.Raise(level, category, fmt.Sprintf(format, args...))
	if m.log != nil {
		m.log.Alert("[%s] %s: %s", alert.Level, alert.Category, alert.Message)
	}
	monitoring.RecordFault(string(level))
	m.bus.Publish(events.Event{
		Type:   events.TypeAlertRaised,
		Reason: alert.Message,
		Alert:  alert,
	})
}

func (m *Monitor) clearCondition(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, key)
}

// trailingFailureRate returns the failure share of submissions inside the
// window, and whether there were enough submissions to judge
func (m *Monitor) trailingFailureRate() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-m.cfg.FailureRateWindow)
	total, failed := 0, 0
	for _, t := range m.trades {
		if t.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if !t.Success {
			failed++
		}
	}
	if total < 5 {
		return 0, false
	}
	return float64(failed) / float64(total), true
}

func (m *Monitor) lastTradeAge() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	last := time.Time{}
	for _, t := range m.trades {
		if t.Success && t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}
	if last.IsZero() {
		return time.Since(m.startedAt)
	}
	return time.Since(last)
}

// valueAtRisk computes a simplified historical VaR over per-period equity
// returns: the loss at the given confidence level, as a positive fraction.
func valueAtRisk(equityCurve []float64, confidence float64) float64 {
	if len(equityCurve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		if equityCurve[i-1] > 0 {
			returns = append(returns, (equityCurve[i]-equityCurve[i-1])/equityCurve[i-1])
		}
	}
	if len(returns) == 0 {
		return 0
	}

	sort.Float64s(returns)
	idx := int(math.Floor(float64(len(returns)) * (1 - confidence)))
	if idx >= len(returns) {
		idx = len(returns) - 1
	}
	loss := -returns[idx]
	if loss < 0 {
		return 0
	}
	return loss
}
