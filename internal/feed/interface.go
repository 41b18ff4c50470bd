package feed

import (
	"github.com/tradeforge/competition-trader/pkg/types"
)

// Feed supplies timestamped market samples. The feed owns its own refresh
// cadence and source fallback; the core only pulls.
type Feed interface {
	// GetLatest returns the newest sample for the symbol, or an error when
	// the symbol has no data this tick
	GetLatest(symbol string) (types.MarketSample, error)

	// GetHistory returns up to n most recent samples, oldest first
	GetHistory(symbol string, n int) ([]types.MarketSample, error)
}
