package strategy

import (
	"fmt"
	"math"
	"sync"

	"github.com/tradeforge/competition-trader/pkg/types"
)

const (
	// DefaultHistorySize is the per-symbol lookback window retained for analysis
	DefaultHistorySize = 150

	// noiseFloor discards signals too weak to influence reconciliation
	noiseFloor = 0.1

	// activationScore is the minimum winning score required to act
	activationScore = 0.3

	baseConfidenceCap  = 0.95
	consensusBonus     = 1.2
	consensusBonusCap  = 0.98
	consensusMinAgrees = 2
)

// faultLogger is the slice of the session logger the manager needs
type faultLogger interface {
	Error(format string, args ...interface{})
}

// Manager owns the active strategy set and the capped per-symbol market
// history. It runs every strategy against the current sample and reconciles
// their independent signals into one portfolio decision.
type Manager struct {
	historySize int
	log         faultLogger

	mu         sync.RWMutex
	strategies []Strategy
	histories  map[string][]types.MarketSample
}

// NewManager creates a strategy manager. historySize <= 0 selects the default window.
func NewManager(strategies []Strategy, historySize int, log faultLogger) *Manager {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Manager{
		strategies:  strategies,
		historySize: historySize,
		log:         log,
		histories:   make(map[string][]types.MarketSample),
	}
}

// Strategies returns the names of the active strategies in registration order
func (m *Manager) Strategies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		names[i] = s.Name()
	}
	return names
}

// SetStrategies replaces the active strategy set. The execution loop calls
// this at a tick boundary when a reconfiguration rebuilds the strategies;
// an Analyze already in flight works on its own snapshot and is unaffected.
func (m *Manager) SetStrategies(strategies []Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = strategies
}

// Observe appends a sample to the symbol's history window, evicting the
// oldest entry once the window is full
func (m *Manager) Observe(sample types.MarketSample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.histories[sample.Symbol], sample)
	if len(history) > m.historySize {
		history = history[len(history)-m.historySize:]
	}
	m.histories[sample.Symbol] = history
}

// History returns a copy of the symbol's current lookback window
func (m *Manager) History(symbol string) []types.MarketSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.histories[symbol]
	out := make([]types.MarketSample, len(history))
	copy(out, history)
	return out
}

// Analyze runs all strategies concurrently against a shared read-only history
// snapshot and reconciles the surviving signals. A strategy that panics or
// returns out-of-range data is logged and excluded from this tick; it never
// blocks the others.
func (m *Manager) Analyze(current types.MarketSample) PortfolioSignal {
	history := m.History(current.Symbol)

	m.mu.RLock()
	strategies := make([]Strategy, len(m.strategies))
	copy(strategies, m.strategies)
	m.mu.RUnlock()

	results := make([]TradingSignal, len(strategies))
	completed := make([]bool, len(strategies))

	var wg sync.WaitGroup
	for i, st := range strategies {
		wg.Add(1)
		go func(i int, st Strategy) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					if m.log != nil {
						m.log.Error("strategy %s panicked during analyze: %v", st.Name(), r)
					}
				}
			}()
			results[i] = st.Analyze(current, history)
			completed[i] = true
		}(i, st)
	}
	wg.Wait()

	// Collect in registration order so reconciliation stays deterministic
	signals := make([]TradingSignal, 0, len(results))
	for i, ok := range completed {
		if !ok {
			continue
		}
		if err := validateSignal(results[i]); err != nil {
			if m.log != nil {
				m.log.Error("strategy %s returned invalid signal: %v", strategies[i].Name(), err)
			}
			continue
		}
		signals = append(signals, results[i])
	}

	return Reconcile(signals)
}

// validateSignal rejects out-of-range strategy output
func validateSignal(s TradingSignal) error {
	if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of [0,1]", s.Confidence)
	}
	if math.IsNaN(s.Amount) || s.Amount < 0 {
		return fmt.Errorf("amount %.2f is negative", s.Amount)
	}
	return nil
}

// Reconcile deterministically combines per-strategy signals into one decision:
//
//  1. Signals at or below the noise floor are discarded.
//  2. Buy and sell scores accumulate surviving confidences per side; the
//     notional accumulates over BUY and SELL survivors together. Summing both
//     sides into one amount is intentional and load-bearing: the governor
//     bounds the result, and HOLD zeroes it.
//  3. A side wins if its score beats the other side and clears the activation
//     score; otherwise the decision is HOLD.
//  4. Base confidence is the winning share of total surviving confidence,
//     capped at 0.95.
//  5. Two or more agreeing survivors earn a 1.2x consensus bonus, capped at 0.98.
func Reconcile(signals []TradingSignal) PortfolioSignal {
	surviving := make([]TradingSignal, 0, len(signals))
	for _, s := range signals {
		if s.Confidence > noiseFloor {
			surviving = append(surviving, s)
		}
	}

	var buyScore, sellScore, totalWeight, totalAmount float64
	for _, s := range surviving {
		totalWeight += s.Confidence
		switch s.Action {
		case ActionBuy:
			buyScore += s.Confidence
			totalAmount += s.Amount
		case ActionSell:
			sellScore += s.Confidence
			totalAmount += s.Amount
		}
	}

	finalAction := ActionHold
	winningScore := 0.0
	switch {
	case buyScore > sellScore && buyScore > activationScore:
		finalAction = ActionBuy
		winningScore = buyScore
	case sellScore > buyScore && sellScore > activationScore:
		finalAction = ActionSell
		winningScore = sellScore
	}

	confidence := math.Min(baseConfidenceCap, winningScore/math.Max(totalWeight, 1))

	agreeing := 0
	for _, s := range surviving {
		if s.Action == finalAction {
			agreeing++
		}
	}
	if finalAction != ActionHold && agreeing >= consensusMinAgrees && len(surviving) >= 2 {
		confidence = math.Min(confidence*consensusBonus, consensusBonusCap)
	}

	if finalAction == ActionHold {
		totalAmount = 0
	}

	return PortfolioSignal{
		FinalAction:  finalAction,
		Confidence:   confidence,
		TotalAmount:  totalAmount,
		Contributing: surviving,
		Reasoning: fmt.Sprintf("%s: buyScore %.2f, sellScore %.2f, %d/%d signals survived, %d agree",
			finalAction, buyScore, sellScore, len(surviving), len(signals), agreeing),
	}
}
