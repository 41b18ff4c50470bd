package feed

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/tradeforge/competition-trader/pkg/types"
)

// SimulatedFeed generates a random-walk price process per symbol. Each
// GetLatest call advances the walk one step, so the feed doubles as a paper
// trading data source and a deterministic test fixture when seeded.
type SimulatedFeed struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	state      map[string]*walkState
	histories  map[string][]types.MarketSample
	maxHistory int
}

type walkState struct {
	price      float64
	baseVolume float64
	dayOpen    float64
}

// NewSimulatedFeed creates a feed seeded with starting prices per symbol
func NewSimulatedFeed(startPrices map[string]float64, volatility float64, seed int64) *SimulatedFeed {
	if volatility <= 0 {
		volatility = 0.002
	}
	f := &SimulatedFeed{
		rng:        rand.New(rand.NewSource(seed)),
		volatility: volatility,
		state:      make(map[string]*walkState),
		histories:  make(map[string][]types.MarketSample),
		maxHistory: 500,
	}
	for symbol, price := range startPrices {
		f.state[symbol] = &walkState{
			price:      price,
			baseVolume: 1000 + f.rng.Float64()*9000,
			dayOpen:    price,
		}
	}
	return f
}

// GetLatest advances the random walk and returns the new sample
func (f *SimulatedFeed) GetLatest(symbol string) (types.MarketSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.state[symbol]
	if !ok {
		return types.MarketSample{}, fmt.Errorf("unknown symbol %s", symbol)
	}

	st.price *= math.Exp(f.rng.NormFloat64() * f.volatility)
	volume := st.baseVolume * (0.5 + f.rng.Float64())

	sample := types.MarketSample{
		Symbol:         symbol,
		Price:          st.price,
		Volume:         volume,
		PriceChange24h: (st.price - st.dayOpen) / st.dayOpen * 100,
		Timestamp:      time.Now(),
	}

	history := append(f.histories[symbol], sample)
	if len(history) > f.maxHistory {
		history = history[len(history)-f.maxHistory:]
	}
	f.histories[symbol] = history

	return sample, nil
}

// GetHistory returns up to n most recent generated samples, oldest first
func (f *SimulatedFeed) GetHistory(symbol string, n int) ([]types.MarketSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	history, ok := f.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]types.MarketSample, len(history))
	copy(out, history)
	return out, nil
}

// LatestPrice implements the executor price source over the current walk state
func (f *SimulatedFeed) LatestPrice(symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.state[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown symbol %s", symbol)
	}
	return st.price, nil
}

// SimulatedVenueQuoter derives per-venue quotes from a price source by adding
// venue-specific jitter and execution costs. It stands in for the external
// quote acquisition a production deployment must supply.
type SimulatedVenueQuoter struct {
	mu     sync.Mutex
	prices interface {
		LatestPrice(symbol string) (float64, error)
	}
	venues   []string
	costRate float64
	rng      *rand.Rand
}

// NewSimulatedVenueQuoter creates a quoter over the given venues
func NewSimulatedVenueQuoter(prices interface {
	LatestPrice(symbol string) (float64, error)
}, venues []string, costRate float64, seed int64) *SimulatedVenueQuoter {
	if costRate <= 0 {
		costRate = 0.001
	}
	return &SimulatedVenueQuoter{
		prices:   prices,
		venues:   venues,
		costRate: costRate,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Quotes returns one jittered quote per venue, or fails fast when the
// reference price is unavailable
func (q *SimulatedVenueQuoter) Quotes(symbol string) ([]types.VenueQuote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ref, err := q.prices.LatestPrice(symbol)
	if err != nil {
		return nil, fmt.Errorf("reference price for %s: %w", symbol, err)
	}

	quotes := make([]types.VenueQuote, 0, len(q.venues))
	for _, venue := range q.venues {
		price := ref * (1 + q.rng.NormFloat64()*0.002)
		quotes = append(quotes, types.VenueQuote{
			Venue:         venue,
			Symbol:        symbol,
			Price:         price,
			Liquidity:     500 + q.rng.Float64()*4500,
			ExecutionCost: price * q.costRate,
			Timestamp:     time.Now(),
		})
	}
	return quotes, nil
}
