package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradeforge/competition-trader/internal/config"
	"github.com/tradeforge/competition-trader/internal/events"
	"github.com/tradeforge/competition-trader/internal/executor"
	"github.com/tradeforge/competition-trader/internal/feed"
	"github.com/tradeforge/competition-trader/internal/logger"
	"github.com/tradeforge/competition-trader/internal/monitor"
	"github.com/tradeforge/competition-trader/internal/monitoring"
	"github.com/tradeforge/competition-trader/internal/portfolio"
	"github.com/tradeforge/competition-trader/internal/risk"
	"github.com/tradeforge/competition-trader/internal/strategy"
	"github.com/tradeforge/competition-trader/internal/trader"
	"github.com/tradeforge/competition-trader/pkg/reporting"
)

func main() {
	var (
		configFile = flag.String("config", "", "JSON configuration file (optional, env vars otherwise)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load env file (%v), using environment variables", err)
	}

	fmt.Println("🚀 Competition Trader Starting...")

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sessionID := time.Now().Format("150405")
	sessionLog, err := logger.NewLogger(sessionID, cfg.Symbols)
	if err != nil {
		log.Fatalf("Failed to create session logger: %v", err)
	}
	defer sessionLog.Close()

	// Paper components stand in for the external market-data and execution
	// collaborators a live deployment must provide
	seed := time.Now().UnixNano()
	marketFeed := feed.NewSimulatedFeed(startPrices(cfg.Symbols), 0.002, seed)
	quoter := feed.NewSimulatedVenueQuoter(marketFeed, cfg.Strategies.Arbitrage.Venues, 0.001, seed+1)
	exec := executor.NewPaperExecutor(marketFeed, 0.0005, 0.001)

	strategies, err := buildStrategies(cfg, quoter)
	if err != nil {
		log.Fatalf("Failed to build strategies: %v", err)
	}
	manager := strategy.NewManager(strategies, strategy.DefaultHistorySize, sessionLog)

	pf := portfolio.New(cfg.InitialBalance, time.Now())
	governor := risk.NewGovernor(cfg.Risk, pf)
	bus := events.NewBus()
	health := monitoring.NewHealthChecker()

	bot := trader.New(cfg, marketFeed, manager, governor, exec, pf, bus, sessionLog, health)
	bot.SetStrategyFactory(func(c *config.Config) ([]strategy.Strategy, error) {
		return buildStrategies(c, quoter)
	})

	mon := monitor.New(monitor.DefaultConfig(), bus, func() monitor.PortfolioView {
		return monitor.PortfolioView{
			Equity:      bot.PortfolioEquity(),
			RealizedPnL: bot.PortfolioRealizedPnL(),
		}
	}, health.Healthy, sessionLog)

	monCtx, cancelMon := context.WithCancel(context.Background())
	defer cancelMon()
	go mon.Run(monCtx)

	startHTTPServers(cfg.Monitoring, health)

	console := reporting.NewConsoleReporter()
	console.PrintStartupInfo(sessionID, cfg.Symbols, cfg.InitialBalance,
		cfg.TickInterval.String(), cfg.SessionDuration.String())

	startedAt := time.Now()
	if err := bot.Start(); err != nil {
		log.Fatalf("Failed to start trader: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		fmt.Println("\n🛑 Shutdown signal received...")
		bot.Stop()
	case <-bot.Done():
		fmt.Println("\n🏁 Session complete")
	}

	report := &reporting.SessionReport{
		SessionID:      sessionID,
		Symbols:        cfg.Symbols,
		StartedAt:      startedAt,
		EndedAt:        time.Now(),
		InitialBalance: cfg.InitialBalance,
		Metrics:        mon.RefreshMetrics(),
		Snapshot:       pf.GetSnapshot(bot.LastPrices()),
		Trades:         mon.Trades(),
		Alerts:         mon.Alerts().All(),
		EndReason:      bot.EndReason(),
	}

	console.PrintSessionSummary(report)

	if path := cfg.Reporting.ExcelPath; path != "" {
		if err := reporting.NewExcelReporter().WriteSessionXLSX(report, path); err != nil {
			sessionLog.LogError("excel report export", err)
		} else {
			fmt.Printf("📄 Excel report written to %s\n", path)
		}
	}

	bus.Close()
	fmt.Printf("✅ Trader stopped, session log: %s\n", sessionLog.GetLogPath())
}

// buildStrategies constructs every enabled strategy from its config block
func buildStrategies(cfg *config.Config, quoter strategy.VenueQuoter) ([]strategy.Strategy, error) {
	var strategies []strategy.Strategy

	if cfg.Strategies.Momentum.Enabled {
		s, err := strategy.NewMomentumStrategy(cfg.Strategies.Momentum)
		if err != nil {
			return nil, fmt.Errorf("momentum: %w", err)
		}
		strategies = append(strategies, s)
	}
	if cfg.Strategies.MeanReversion.Enabled {
		s, err := strategy.NewMeanReversionStrategy(cfg.Strategies.MeanReversion)
		if err != nil {
			return nil, fmt.Errorf("mean reversion: %w", err)
		}
		strategies = append(strategies, s)
	}
	if cfg.Strategies.Arbitrage.Enabled {
		s, err := strategy.NewArbitrageStrategy(cfg.Strategies.Arbitrage, quoter)
		if err != nil {
			return nil, fmt.Errorf("arbitrage: %w", err)
		}
		strategies = append(strategies, s)
	}

	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies enabled")
	}
	return strategies, nil
}

// startHTTPServers exposes the health probe and Prometheus metrics endpoints
func startHTTPServers(cfg config.MonitoringConfig, health *monitoring.HealthChecker) {
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			log.Printf("Health endpoint stopped: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.MetricsHandler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.PrometheusPort)
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Printf("Metrics endpoint stopped: %v", err)
		}
	}()
}

// startPrices seeds the simulated feed with plausible reference prices
func startPrices(symbols []string) map[string]float64 {
	reference := map[string]float64{
		"BTCUSDT": 65000,
		"ETHUSDT": 3200,
		"SOLUSDT": 150,
		"BNBUSDT": 580,
		"XRPUSDT": 0.55,
	}

	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if p, ok := reference[symbol]; ok {
			prices[symbol] = p
		} else {
			prices[symbol] = 100
		}
	}
	return prices
}

// loadEnvFile loads environment variables from a file
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
