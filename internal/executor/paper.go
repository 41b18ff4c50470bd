package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"time"

	"github.com/tradeforge/competition-trader/internal/risk"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// PriceSource supplies the execution price for paper fills
type PriceSource interface {
	LatestPrice(symbol string) (float64, error)
}

// PaperExecutor simulates venue execution: fills at the latest feed price with
// a slippage and fee model. Submissions are recorded by order ID so retries
// after a timeout return the original fill.
type PaperExecutor struct {
	prices      PriceSource
	slippage    float64 // fractional price impact per fill, e.g. 0.0005
	feeRate     float64 // fractional fee deducted from filled quantity
	partialProb float64 // probability of a simulated partial fill
	rng         *rand.Rand

	mu     sync.Mutex
	filled map[string]*types.Fill
}

// NewPaperExecutor creates a paper executor over the given price source
func NewPaperExecutor(prices PriceSource, slippage, feeRate float64) *PaperExecutor {
	return &PaperExecutor{
		prices:   prices,
		slippage: slippage,
		feeRate:  feeRate,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		filled:   make(map[string]*types.Fill),
	}
}

// SetPartialFillProbability enables simulated partial fills
func (e *PaperExecutor) SetPartialFillProbability(p float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.partialProb = p
}

// Submit fills the order at the latest price adjusted for slippage. A repeated
// order ID returns the recorded fill without executing again.
func (e *PaperExecutor) Submit(ctx context.Context, order *risk.Order) (*types.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The rng draws stay under the mutex alongside the fill cache; Submit
	// must stay safe for concurrent callers.
	e.mu.Lock()
	if fill, ok := e.filled[order.ID]; ok {
		e.mu.Unlock()
		return fill, nil
	}
	partialFraction := 0.0
	if e.partialProb > 0 && e.rng.Float64() < e.partialProb {
		partialFraction = 0.5 + e.rng.Float64()*0.4
	}
	e.mu.Unlock()

	price, err := e.prices.LatestPrice(order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("paper execution for %s: %w", order.Symbol, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("paper execution for %s: no quotable price", order.Symbol)
	}

	// Slippage works against the order direction
	fillPrice := price * (1 + e.slippage)
	if order.Side == types.SideSell {
		fillPrice = price * (1 - e.slippage)
	}

	notional := order.Amount
	partial := false
	if partialFraction > 0 {
		notional = order.Amount * partialFraction
		partial = true
	}

	quantity := notional / fillPrice * (1 - e.feeRate)
	fill := &types.Fill{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  quantity,
		Price:     fillPrice,
		Notional:  notional,
		Partial:   partial,
		Timestamp: time.Now(),
	}

	e.mu.Lock()
	e.filled[order.ID] = fill
	e.mu.Unlock()

	return fill, nil
}
