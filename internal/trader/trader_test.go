package trader

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/internal/events"
	"github.com/tradeforge/competition-trader/internal/executor"
	"github.com/tradeforge/competition-trader/internal/feed"
	"github.com/tradeforge/competition-trader/internal/logger"
	"github.com/tradeforge/competition-trader/internal/portfolio"
	"github.com/tradeforge/competition-trader/internal/risk"
	"github.com/tradeforge/competition-trader/internal/strategy"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// alwaysBuy emits a constant high-confidence BUY so the pipeline trades every tick
type alwaysBuy struct{}

func (alwaysBuy) Analyze(_ types.MarketSample, _ []types.MarketSample) strategy.TradingSignal {
	return strategy.TradingSignal{
		Strategy: "always_buy", Action: strategy.ActionBuy, Confidence: 0.9, Amount: 500,
	}
}

func (alwaysBuy) Name() string { return "always_buy" }

// rebuiltBuy stands in for a strategy set produced by a reconfiguration
type rebuiltBuy struct{}

func (rebuiltBuy) Analyze(_ types.MarketSample, _ []types.MarketSample) strategy.TradingSignal {
	return strategy.TradingSignal{
		Strategy: "rebuilt_buy", Action: strategy.ActionBuy, Confidence: 0.9, Amount: 500,
	}
}

func (rebuiltBuy) Name() string { return "rebuilt_buy" }

type fixture struct {
	trader *CompetitionTrader
	bus    *events.Bus
	pf     *portfolio.Portfolio
	sub    <-chan events.Event
}

func newFixture(t *testing.T, strategies []strategy.Strategy, duration time.Duration) *fixture {
	t.Helper()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg := config.Load()
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.TickInterval = 5 * time.Millisecond
	cfg.SessionDuration = duration

	log, err := logger.NewLogger("test", cfg.Symbols)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	marketFeed := feed.NewSimulatedFeed(map[string]float64{"BTCUSDT": 65000}, 0.002, 42)
	manager := strategy.NewManager(strategies, 50, log)
	pf := portfolio.New(cfg.InitialBalance, time.Now())
	governor := risk.NewGovernor(cfg.Risk, pf)
	exec := executor.NewPaperExecutor(marketFeed, 0.0005, 0.001)
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	tr := New(cfg, marketFeed, manager, governor, exec, pf, bus, log, nil)
	return &fixture{
		trader: tr,
		bus:    bus,
		pf:     pf,
		sub:    bus.Subscribe(4096),
	}
}

func TestCompetitionTrader_Lifecycle(t *testing.T) {
	fx := newFixture(t, nil, 0)

	assert.Equal(t, StateNotStarted, fx.trader.State())
	require.NoError(t, fx.trader.Start())
	assert.Equal(t, StateRunning, fx.trader.State())

	assert.Error(t, fx.trader.Start(), "double start is rejected")

	time.Sleep(30 * time.Millisecond)
	fx.trader.Stop()

	assert.Equal(t, StateEnded, fx.trader.State())
	assert.Equal(t, "stop requested", fx.trader.EndReason())
}

func TestCompetitionTrader_SessionDurationEnds(t *testing.T) {
	fx := newFixture(t, nil, 40*time.Millisecond)

	require.NoError(t, fx.trader.Start())

	select {
	case <-fx.trader.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end at its deadline")
	}

	assert.Equal(t, StateEnded, fx.trader.State())
	assert.Equal(t, "session duration elapsed", fx.trader.EndReason())
}

func TestCompetitionTrader_TicksAndSessionEndEmitted(t *testing.T) {
	fx := newFixture(t, nil, 0)

	require.NoError(t, fx.trader.Start())
	time.Sleep(30 * time.Millisecond)
	fx.trader.Stop()

	ticks := 0
	ended := false
	for {
		select {
		case e := <-fx.sub:
			switch e.Type {
			case events.TypeTickStarted:
				ticks++
			case events.TypeSessionEnded:
				ended = true
				assert.Equal(t, "stop requested", e.Reason)
			}
			if ended {
				assert.Greater(t, ticks, 0)
				return
			}
		case <-time.After(time.Second):
			t.Fatal("session end event never arrived")
		}
	}
}

func TestCompetitionTrader_PipelineExecutesTrades(t *testing.T) {
	fx := newFixture(t, []strategy.Strategy{alwaysBuy{}}, 0)

	require.NoError(t, fx.trader.Start())

	deadline := time.After(2 * time.Second)
	var executed *events.Event
	for executed == nil {
		select {
		case e := <-fx.sub:
			if e.Type == events.TypeTradeExecuted {
				executed = &e
			}
		case <-deadline:
			t.Fatal("no trade executed")
		}
	}
	fx.trader.Stop()

	assert.Equal(t, "BTCUSDT", executed.Symbol)
	assert.Equal(t, "BUY", executed.Side)
	assert.Equal(t, "always_buy", executed.Strategy)
	assert.Greater(t, executed.Notional, 0.0)
	assert.NotEmpty(t, executed.OrderID)

	pos, ok := fx.pf.Position("BTCUSDT")
	require.True(t, ok, "executed fill must reach the portfolio")
	assert.Greater(t, pos.Quantity, 0.0)
}

func TestCompetitionTrader_EmergencyHaltOnCriticalAlert(t *testing.T) {
	fx := newFixture(t, []strategy.Strategy{alwaysBuy{}}, 0)

	require.NoError(t, fx.trader.Start())
	go func() {
		for range fx.sub { // drain so the bus never blocks
		}
	}()

	fx.bus.Publish(events.Event{
		Type:  events.TypeAlertRaised,
		Alert: &events.Alert{Level: events.AlertCritical, Message: "drawdown 16% exceeds critical threshold"},
	})

	require.Eventually(t, func() bool {
		return fx.trader.State() == StateEmergencyHalted
	}, 2*time.Second, 5*time.Millisecond)

	fx.trader.Stop()
	assert.Equal(t, StateEnded, fx.trader.State())
	assert.Contains(t, fx.trader.EndReason(), "emergency halt")
}

func TestCompetitionTrader_HaltSuppressesNewOrders(t *testing.T) {
	fx := newFixture(t, []strategy.Strategy{alwaysBuy{}}, 0)

	require.NoError(t, fx.trader.Start())
	fx.trader.EmergencyHalt("manual halt for test")

	// Drain anything published before the halt landed
	time.Sleep(30 * time.Millisecond)
	for len(fx.sub) > 0 {
		<-fx.sub
	}

	// From here on, ticks continue but no orders are submitted
	time.Sleep(30 * time.Millisecond)
	fx.trader.Stop()

	for len(fx.sub) > 0 {
		e := <-fx.sub
		assert.NotEqual(t, events.TypeTradeExecuted, e.Type, "halted trader must not trade")
	}
}

func TestCompetitionTrader_EmergencyHaltOnlyFromRunning(t *testing.T) {
	fx := newFixture(t, nil, 0)

	fx.trader.EmergencyHalt("too early")
	assert.Equal(t, StateNotStarted, fx.trader.State())
}

func TestCompetitionTrader_Reconfigure(t *testing.T) {
	fx := newFixture(t, nil, 0)

	bad := config.Load()
	bad.Strategies.Momentum.Allocation = 50
	assert.Error(t, fx.trader.Reconfigure(bad))

	good := config.Load()
	good.Symbols = []string{"ETHUSDT"}
	assert.NoError(t, fx.trader.Reconfigure(good))

	// A failing strategy rebuild rejects the whole reconfiguration
	fx.trader.SetStrategyFactory(func(*config.Config) ([]strategy.Strategy, error) {
		return nil, fmt.Errorf("no strategies enabled")
	})
	assert.Error(t, fx.trader.Reconfigure(good))
}

// reconfigured builds the config a reconfiguration test schedules: same
// symbols and cadence as the fixture so the loop keeps ticking after the swap
func reconfigured() *config.Config {
	cfg := config.Load()
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.TickInterval = 5 * time.Millisecond
	cfg.SessionDuration = 0
	return cfg
}

func TestCompetitionTrader_ReconfigureAppliesRiskLimits(t *testing.T) {
	fx := newFixture(t, []strategy.Strategy{alwaysBuy{}}, 0)

	next := reconfigured()
	next.Risk.MaxPositionSize = 0.001 // $10 position cap on the default $10k balance
	require.NoError(t, fx.trader.Reconfigure(next))
	require.NoError(t, fx.trader.Start())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-fx.sub:
			if e.Type == events.TypeTradeExecuted {
				fx.trader.Stop()
				assert.LessOrEqual(t, e.Notional, 10.0+1e-6,
					"orders must be sized under the reconfigured limits")
				return
			}
		case <-deadline:
			t.Fatal("no trade executed after reconfiguration")
		}
	}
}

func TestCompetitionTrader_ReconfigureRebuildsStrategies(t *testing.T) {
	fx := newFixture(t, nil, 0)

	fx.trader.SetStrategyFactory(func(*config.Config) ([]strategy.Strategy, error) {
		return []strategy.Strategy{rebuiltBuy{}}, nil
	})
	require.NoError(t, fx.trader.Reconfigure(reconfigured()))
	require.NoError(t, fx.trader.Start())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-fx.sub:
			if e.Type == events.TypeTradeExecuted {
				fx.trader.Stop()
				assert.Equal(t, "rebuilt_buy", e.Strategy,
					"trades after the swap must come from the rebuilt strategy set")
				return
			}
		case <-deadline:
			t.Fatal("rebuilt strategy never traded")
		}
	}
}

func TestCompetitionTrader_EmergencyHaltOnDrawdownBreach(t *testing.T) {
	fx := newFixture(t, nil, 0)

	// Seed a position bought near the top and mark the high-water mark well
	// above the feed's price, so the first tick values the book >15% under water
	require.NoError(t, fx.pf.ApplyFill(types.Fill{
		OrderID: "seed", Symbol: "BTCUSDT", Side: types.SideBuy,
		Quantity: 0.14, Price: 70000, Notional: 9800,
	}))
	fx.pf.UpdateHighWaterMark(map[string]float64{"BTCUSDT": 80000})

	require.NoError(t, fx.trader.Start())
	go func() {
		for range fx.sub { // drain so the bus never blocks
		}
	}()

	require.Eventually(t, func() bool {
		return fx.trader.State() == StateEmergencyHalted
	}, 2*time.Second, 5*time.Millisecond, "limit breach must halt within a tick")

	fx.trader.Stop()
	assert.Contains(t, fx.trader.EndReason(), "drawdown")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NOT_STARTED", StateNotStarted.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "EMERGENCY_HALTED", StateEmergencyHalted.String())
	assert.Equal(t, "ENDED", StateEnded.String())
}
