package types

import "time"

// MarketSample is a single timestamped observation for one symbol.
// Samples are produced by the market data feed and never mutated afterwards.
type MarketSample struct {
	Symbol         string
	Price          float64
	Volume         float64
	PriceChange24h float64
	Timestamp      time.Time
}

// VenueQuote is a per-venue quote for one symbol, used by arbitrage analysis.
type VenueQuote struct {
	Venue         string
	Symbol        string
	Price         float64
	Liquidity     float64
	ExecutionCost float64
	Timestamp     time.Time
}

// OrderSide is the direction of an order or fill.
type OrderSide int

const (
	SideBuy OrderSide = iota
	SideSell
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Fill confirms that an order was executed on the venue.
type Fill struct {
	OrderID   string
	Symbol    string
	Side      OrderSide
	Quantity  float64
	Price     float64
	Notional  float64
	Partial   bool
	Timestamp time.Time
}
