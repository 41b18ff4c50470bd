package trader

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/internal/errors"
	"github.com/tradeforge/competition-trader/internal/events"
	"github.com/tradeforge/competition-trader/internal/executor"
	"github.com/tradeforge/competition-trader/internal/feed"
	"github.com/tradeforge/competition-trader/internal/logger"
	"github.com/tradeforge/competition-trader/internal/monitoring"
	"github.com/tradeforge/competition-trader/internal/portfolio"
	"github.com/tradeforge/competition-trader/internal/risk"
	"github.com/tradeforge/competition-trader/internal/safety"
	"github.com/tradeforge/competition-trader/internal/strategy"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// State is the orchestrator lifecycle state
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateEmergencyHalted
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateRunning:
		return "RUNNING"
	case StateEmergencyHalted:
		return "EMERGENCY_HALTED"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultSubmitTimeout = 10 * time.Second
	defaultMaxRetries    = 2
)

// CompetitionTrader is the ticking orchestrator. It owns the portfolio, runs
// the per-tick pipeline (feed -> strategy manager -> risk governor -> executor),
// applies fills, and emits lifecycle events. Ticks are strictly sequential:
// tick N finishes applying its outcome before tick N+1 begins.
type CompetitionTrader struct {
	feed     feed.Feed
	manager  *strategy.Manager
	governor *risk.Governor
	exec     executor.OrderExecutor
	pf       *portfolio.Portfolio
	bus      *events.Bus
	log      *logger.Logger
	health   *monitoring.HealthChecker

	breaker     *safety.CircuitBreaker
	feedLimiter *safety.RateLimiter

	submitTimeout time.Duration
	maxRetries    int

	mu                sync.RWMutex
	cfg               *config.Config
	pendingCfg        *config.Config
	pendingStrategies []strategy.Strategy
	strategyFactory   func(*config.Config) ([]strategy.Strategy, error)
	state             State
	lastPrices        map[string]float64
	haltReason        string
	endReason         string

	startedAt time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}
	stopOnce  sync.Once
}

// New wires a competition trader from its collaborators. The portfolio is
// owned by the trader; nothing else may mutate it.
func New(cfg *config.Config, marketFeed feed.Feed, manager *strategy.Manager,
	governor *risk.Governor, exec executor.OrderExecutor, pf *portfolio.Portfolio,
	bus *events.Bus, log *logger.Logger, health *monitoring.HealthChecker) *CompetitionTrader {

	return &CompetitionTrader{
		feed:          marketFeed,
		manager:       manager,
		governor:      governor,
		exec:          exec,
		pf:            pf,
		bus:           bus,
		log:           log,
		health:        health,
		breaker:       safety.NewCircuitBreaker("executor", safety.BreakerConfig{}),
		feedLimiter:   safety.NewRateLimiter(50, 50),
		submitTimeout: defaultSubmitTimeout,
		maxRetries:    defaultMaxRetries,
		cfg:           cfg,
		state:         StateNotStarted,
		lastPrices:    make(map[string]float64),
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// State returns the current orchestrator state
func (t *CompetitionTrader) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Start transitions NotStarted -> Running and launches the tick loop
func (t *CompetitionTrader) Start() error {
	t.mu.Lock()
	if t.state != StateNotStarted {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", state)
	}
	t.state = StateRunning
	t.startedAt = time.Now()
	t.mu.Unlock()

	if t.health != nil {
		t.health.SetRunning(true)
		t.health.SetState(StateRunning.String())
	}
	t.log.Info("execution loop started: %d symbols, tick %s",
		len(t.currentConfig().Symbols), t.currentConfig().TickInterval)

	go t.watchCriticalAlerts()
	go t.run()
	return nil
}

// Stop requests shutdown. The signal is observed at the next tick boundary;
// an in-flight order submission completes first. Stop blocks until the loop exits.
func (t *CompetitionTrader) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
	<-t.doneChan
}

// Done returns a channel closed when the session has ended
func (t *CompetitionTrader) Done() <-chan struct{} {
	return t.doneChan
}

// EmergencyHalt suppresses new order submission while the process keeps
// running and positions remain reportable. Only a critical risk breach
// triggers this transition.
func (t *CompetitionTrader) EmergencyHalt(reason string) {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	t.state = StateEmergencyHalted
	t.haltReason = reason
	t.mu.Unlock()

	if t.health != nil {
		t.health.SetState(StateEmergencyHalted.String())
		t.health.AddError("emergency halt: " + reason)
	}
	t.log.Error("EMERGENCY HALT: %s", reason)
}

// SetStrategyFactory installs the builder used to rebuild the strategy set
// when a reconfiguration changes strategy parameters. Without a factory the
// running strategies stay in place across reconfigurations.
func (t *CompetitionTrader) SetStrategyFactory(factory func(*config.Config) ([]strategy.Strategy, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategyFactory = factory
}

// Reconfigure validates the new configuration, rebuilds the strategy set, and
// schedules both for the next tick boundary, where the risk limits, strategies
// and tick cadence all take effect. The change is written to the audit log
// before it applies.
func (t *CompetitionTrader) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.NewConfigFault("reconfigure", err.Error())
	}

	t.mu.RLock()
	factory := t.strategyFactory
	t.mu.RUnlock()

	var strategies []strategy.Strategy
	if factory != nil {
		built, err := factory(cfg)
		if err != nil {
			return errors.NewConfigFault("reconfigure", fmt.Sprintf("strategy rebuild failed: %v", err))
		}
		strategies = built
	}

	t.mu.Lock()
	t.pendingCfg = cfg
	t.pendingStrategies = strategies
	t.mu.Unlock()

	t.log.Audit("reconfiguration accepted: symbols=%v tick=%s risk=%+v",
		cfg.Symbols, cfg.TickInterval, cfg.Risk)
	return nil
}

// PortfolioEquity values the portfolio at the latest observed prices
func (t *CompetitionTrader) PortfolioEquity() float64 {
	return t.pf.Equity(t.LastPrices())
}

// PortfolioRealizedPnL returns the portfolio's realized result
func (t *CompetitionTrader) PortfolioRealizedPnL() float64 {
	return t.pf.RealizedPnL()
}

// LastPrices returns a copy of the latest observed price per symbol
func (t *CompetitionTrader) LastPrices() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prices := make(map[string]float64, len(t.lastPrices))
	for k, v := range t.lastPrices {
		prices[k] = v
	}
	return prices
}

func (t *CompetitionTrader) currentConfig() *config.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// run drives strictly sequential ticks until the session duration elapses or
// shutdown is requested
func (t *CompetitionTrader) run() {
	defer close(t.doneChan)

	cfg := t.currentConfig()
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	var deadlineTimer *time.Timer
	var deadline <-chan time.Time
	if cfg.SessionDuration > 0 {
		deadlineTimer = time.NewTimer(cfg.SessionDuration)
		deadline = deadlineTimer.C
	}
	defer func() {
		if deadlineTimer != nil {
			deadlineTimer.Stop()
		}
	}()

	for {
		select {
		case <-t.stopChan:
			t.end("stop requested")
			return
		case <-deadline:
			t.end("session duration elapsed")
			return
		case <-ticker.C:
			if applied := t.applyPendingConfig(); applied != nil {
				if applied.TickInterval != cfg.TickInterval {
					ticker.Reset(applied.TickInterval)
				}
				if applied.SessionDuration != cfg.SessionDuration {
					if deadlineTimer != nil {
						if !deadlineTimer.Stop() {
							<-deadlineTimer.C
						}
						deadlineTimer = nil
						deadline = nil
					}
					if applied.SessionDuration > 0 {
						remaining := time.Until(t.startedAt.Add(applied.SessionDuration))
						if remaining <= 0 {
							t.end("session duration elapsed")
							return
						}
						deadlineTimer = time.NewTimer(remaining)
						deadline = deadlineTimer.C
					}
				}
				cfg = applied
			}
			t.executeTick()
		}
	}
}

// applyPendingConfig swaps in a scheduled reconfiguration at the tick boundary
// and pushes the new limits and strategy set into the pipeline, so the very
// next order is governed by the reconfigured state. Returns the applied
// config, or nil when nothing was pending.
func (t *CompetitionTrader) applyPendingConfig() *config.Config {
	t.mu.Lock()
	applied := t.pendingCfg
	strategies := t.pendingStrategies
	if applied != nil {
		t.cfg = applied
		t.pendingCfg = nil
		t.pendingStrategies = nil
	}
	t.mu.Unlock()

	if applied == nil {
		return nil
	}

	t.governor.SetLimits(applied.Risk)
	if strategies != nil {
		t.manager.SetStrategies(strategies)
	}
	return applied
}

// executeTick runs the full decision pipeline once for every configured symbol
func (t *CompetitionTrader) executeTick() {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tick pipeline panicked: %v", r)
			t.EmergencyHalt(fmt.Sprintf("uncaught fault in tick pipeline: %v", r))
		}
	}()

	cfg := t.currentConfig()
	monitoring.RecordTick()
	t.bus.Publish(events.Event{Type: events.TypeTickStarted})

	for _, symbol := range cfg.Symbols {
		t.processSymbol(symbol)
	}

	prices := t.LastPrices()
	t.pf.RollDayIfNeeded(time.Now(), prices)
	t.pf.UpdateHighWaterMark(prices)

	// Stop-loss liquidations bypass signal analysis but not the governor's state
	if t.State() == StateRunning {
		for _, order := range t.governor.StopLossSweep(prices) {
			t.log.Warning("stop-loss triggered for %s: %s", order.Symbol, order.SizingRationale)
			t.submitAndApply(order)
		}
	}

	// A breach of the hard limits is the only condition that changes orchestrator state
	if err := t.governor.CheckLimits(prices); err != nil {
		var fault *errors.TradeFault
		if stderrors.As(err, &fault) && fault.IsCritical() {
			monitoring.RecordFault(string(errors.FaultCategoryCritical))
			t.EmergencyHalt(fault.Message)
		}
	}

	equity := t.pf.Equity(prices)
	drawdown := t.pf.Drawdown(prices)
	monitoring.UpdateEquity(equity, drawdown)
	if t.health != nil {
		t.health.RecordTick(equity, drawdown)
	}
}

// processSymbol runs the pipeline for one symbol: sample, analyze, govern, execute
func (t *CompetitionTrader) processSymbol(symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.submitTimeout)
	defer cancel()

	if err := t.feedLimiter.Wait(ctx); err != nil {
		t.log.LogError("feed rate limit wait for "+symbol, err)
		return
	}

	sample, err := t.feed.GetLatest(symbol)
	if err != nil {
		// Feed faults skip this symbol only; other symbols still trade this tick
		fault := errors.NewFeedFault(symbol, err)
		monitoring.RecordFault(string(errors.FaultCategoryFeed))
		t.log.LogError("market data unavailable", fault)
		return
	}

	t.mu.Lock()
	t.lastPrices[symbol] = sample.Price
	t.mu.Unlock()

	t.manager.Observe(sample)

	// Halted sessions keep observing prices so positions stay reportable,
	// but never issue new orders
	if t.State() != StateRunning {
		return
	}

	signal := t.manager.Analyze(sample)
	for _, s := range signal.Contributing {
		monitoring.UpdateStrategyConfidence(s.Strategy, s.Confidence)
	}
	t.log.LogTickStatus(symbol, sample.Price, signal.FinalAction.String(), signal.Confidence, signal.TotalAmount)

	verdict := t.governor.Evaluate(signal, symbol, t.LastPrices())
	if verdict.Order == nil {
		if verdict.Vetoed {
			// A veto is a deliberate decision, not an error
			t.log.Info("risk veto for %s: %s", symbol, verdict.Reason)
			monitoring.RecordFault(string(errors.FaultCategoryRiskVeto))
		}
		return
	}

	t.submitAndApply(verdict.Order)
}

// submitAndApply pushes one order through the executor and applies the outcome
// to the portfolio. Failures leave the portfolio untouched.
func (t *CompetitionTrader) submitAndApply(order *risk.Order) {
	fill, err := t.submitWithRetry(order)
	if err != nil {
		fault := errors.NewExecutionFault("submit", err)
		monitoring.RecordFault(string(errors.FaultCategoryExecution))
		monitoring.RecordTrade(order.Symbol, order.Side.String(), "failed", order.Amount)
		t.log.LogError("order submission failed", fault)
		t.bus.Publish(events.Event{
			Type:     events.TypeTradeFailed,
			Symbol:   order.Symbol,
			OrderID:  order.ID,
			Side:     order.Side.String(),
			Strategy: order.RequestedBy,
			Notional: order.Amount,
			Reason:   err.Error(),
		})
		return
	}

	pnlBefore := t.pf.RealizedPnL()
	if err := t.pf.ApplyFill(*fill); err != nil {
		t.log.LogError("fill could not be applied", err)
		t.bus.Publish(events.Event{
			Type:     events.TypeTradeFailed,
			Symbol:   order.Symbol,
			OrderID:  order.ID,
			Side:     order.Side.String(),
			Strategy: order.RequestedBy,
			Notional: order.Amount,
			Reason:   err.Error(),
		})
		return
	}
	pnlDelta := t.pf.RealizedPnL() - pnlBefore

	prices := t.LastPrices()
	t.pf.UpdateHighWaterMark(prices)
	equity := t.pf.Equity(prices)

	monitoring.RecordTrade(order.Symbol, order.Side.String(), "executed", fill.Notional)
	if t.health != nil {
		t.health.RecordTrade()
	}
	t.log.LogTradeExecution(order.Side.String(), order.Symbol, order.ID,
		fill.Quantity, fill.Price, fill.Notional, equity)

	t.bus.Publish(events.Event{
		Type:     events.TypeTradeExecuted,
		Symbol:   order.Symbol,
		OrderID:  order.ID,
		Side:     order.Side.String(),
		Strategy: order.RequestedBy,
		Notional: fill.Notional,
		Price:    fill.Price,
		Quantity: fill.Quantity,
		PnL:      pnlDelta,
		Partial:  fill.Partial,
	})
}

// submitWithRetry bounds the executor call with a timeout and a retry budget.
// Exhausted retries surface as a trade-failed outcome, never an endless loop.
// Retrying the same order ID is safe: the executor treats submission as
// idempotent per order.
func (t *CompetitionTrader) submitWithRetry(order *risk.Order) (*types.Fill, error) {
	var fill *types.Fill
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), t.submitTimeout)
		err := t.breaker.Call(func() error {
			f, submitErr := t.exec.Submit(ctx, order)
			if submitErr != nil {
				return submitErr
			}
			fill = f
			return nil
		})
		cancel()

		if err == nil {
			return fill, nil
		}
		lastErr = err

		// No point retrying while the breaker rejects submissions
		var open *safety.ErrBreakerOpen
		if stderrors.As(err, &open) {
			break
		}
	}
	return nil, lastErr
}

// watchCriticalAlerts consumes the monitor's alert stream; a CRITICAL alert is
// the halt trigger for the execution loop
func (t *CompetitionTrader) watchCriticalAlerts() {
	sub := t.bus.Subscribe(256)
	for {
		select {
		case <-t.doneChan:
			// Release the subscription so later publishers never block on
			// a buffer nobody reads anymore
			t.bus.Unsubscribe(sub)
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if e.Type == events.TypeAlertRaised && e.Alert != nil && e.Alert.Level == events.AlertCritical {
				t.EmergencyHalt(e.Alert.Message)
			}
		}
	}
}

// EndReason returns why the session ended, or why it was halted
func (t *CompetitionTrader) EndReason() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.haltReason != "" {
		return "emergency halt: " + t.haltReason
	}
	return t.endReason
}

// end finishes the session from either Running or EmergencyHalted
func (t *CompetitionTrader) end(reason string) {
	t.mu.Lock()
	t.state = StateEnded
	t.endReason = reason
	t.mu.Unlock()

	if t.health != nil {
		t.health.SetRunning(false)
		t.health.SetState(StateEnded.String())
	}
	t.log.Info("execution loop ended: %s", reason)
	t.bus.Publish(events.Event{Type: events.TypeSessionEnded, Reason: reason})
}
