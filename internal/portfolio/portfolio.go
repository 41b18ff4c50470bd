package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/competition-trader/pkg/types"
)

// Position is a per-symbol holding, mutated only by confirmed fills
type Position struct {
	Symbol      string
	Quantity    float64
	AverageCost float64
}

// UnrealizedPnLPercent returns the position's fractional gain or loss at the given price
func (p Position) UnrealizedPnLPercent(price float64) float64 {
	if p.AverageCost <= 0 || p.Quantity <= 0 {
		return 0
	}
	return (price - p.AverageCost) / p.AverageCost
}

// Portfolio tracks cash, positions and realized results for one session.
// The execution loop is the only writer; the risk governor and monitor read
// through the RWMutex-guarded accessors.
type Portfolio struct {
	mu             sync.RWMutex
	cash           float64
	positions      map[string]*Position
	highWaterMark  float64
	realizedPnL    float64
	dayStart       time.Time
	dayStartEquity float64
}

// Snapshot is a point-in-time read of portfolio state for observers
type Snapshot struct {
	Cash           float64
	Positions      map[string]Position
	Equity         float64
	HighWaterMark  float64
	RealizedPnL    float64
	DayStartEquity float64
}

// New creates a portfolio funded with the initial cash balance
func New(initialCash float64, now time.Time) *Portfolio {
	return &Portfolio{
		cash:           initialCash,
		positions:      make(map[string]*Position),
		highWaterMark:  initialCash,
		dayStart:       now.UTC().Truncate(24 * time.Hour),
		dayStartEquity: initialCash,
	}
}

// ApplyFill mutates cash and positions from a confirmed fill. It is the only
// mutation path; rejected or failed orders never reach it.
func (p *Portfolio) ApplyFill(fill types.Fill) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fill.Quantity <= 0 || fill.Price <= 0 {
		return fmt.Errorf("invalid fill: quantity %.6f, price %.2f", fill.Quantity, fill.Price)
	}
	notional := fill.Notional
	if notional == 0 {
		notional = fill.Quantity * fill.Price
	}

	switch fill.Side {
	case types.SideBuy:
		if notional > p.cash {
			return fmt.Errorf("fill notional $%.2f exceeds cash $%.2f", notional, p.cash)
		}
		pos, ok := p.positions[fill.Symbol]
		if !ok {
			pos = &Position{Symbol: fill.Symbol}
			p.positions[fill.Symbol] = pos
		}
		totalCost := pos.AverageCost*pos.Quantity + notional
		pos.Quantity += fill.Quantity
		pos.AverageCost = totalCost / pos.Quantity
		p.cash -= notional

	case types.SideSell:
		pos, ok := p.positions[fill.Symbol]
		if !ok || pos.Quantity < fill.Quantity {
			return fmt.Errorf("sell of %.6f %s exceeds held quantity", fill.Quantity, fill.Symbol)
		}
		p.realizedPnL += (fill.Price - pos.AverageCost) * fill.Quantity
		pos.Quantity -= fill.Quantity
		if pos.Quantity <= 1e-12 {
			delete(p.positions, fill.Symbol)
		}
		p.cash += notional

	default:
		return fmt.Errorf("unknown fill side %v", fill.Side)
	}

	return nil
}

// Equity values the portfolio at the given per-symbol prices. Positions with
// no quoted price are valued at average cost.
func (p *Portfolio) Equity(prices map[string]float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equityLocked(prices)
}

func (p *Portfolio) equityLocked(prices map[string]float64) float64 {
	equity := p.cash
	for symbol, pos := range p.positions {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			price = pos.AverageCost
		}
		equity += pos.Quantity * price
	}
	return equity
}

// UpdateHighWaterMark raises the running equity high-water mark; it never lowers it
func (p *Portfolio) UpdateHighWaterMark(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if equity := p.equityLocked(prices); equity > p.highWaterMark {
		p.highWaterMark = equity
	}
}

// Drawdown returns the fractional decline of current equity from the high-water mark
func (p *Portfolio) Drawdown(prices map[string]float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.highWaterMark <= 0 {
		return 0
	}
	dd := (p.highWaterMark - p.equityLocked(prices)) / p.highWaterMark
	if dd < 0 {
		return 0
	}
	return dd
}

// DailyLoss returns today's fractional loss (realized plus unrealized) against
// the day-start equity. Gains return 0.
func (p *Portfolio) DailyLoss(prices map[string]float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.dayStartEquity <= 0 {
		return 0
	}
	loss := (p.dayStartEquity - p.equityLocked(prices)) / p.dayStartEquity
	if loss < 0 {
		return 0
	}
	return loss
}

// RollDayIfNeeded resets the daily-loss baseline when the UTC date changes
func (p *Portfolio) RollDayIfNeeded(now time.Time, prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	day := now.UTC().Truncate(24 * time.Hour)
	if day.After(p.dayStart) {
		p.dayStart = day
		p.dayStartEquity = p.equityLocked(prices)
	}
}

// Cash returns the available cash balance
func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// RealizedPnL returns the cumulative realized profit and loss
func (p *Portfolio) RealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// Position returns the holding for a symbol, if any
func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// GetSnapshot returns a consistent copy of portfolio state for observers
func (p *Portfolio) GetSnapshot(prices map[string]float64) Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make(map[string]Position, len(p.positions))
	for symbol, pos := range p.positions {
		positions[symbol] = *pos
	}
	return Snapshot{
		Cash:           p.cash,
		Positions:      positions,
		Equity:         p.equityLocked(prices),
		HighWaterMark:  p.highWaterMark,
		RealizedPnL:    p.realizedPnL,
		DayStartEquity: p.dayStartEquity,
	}
}
