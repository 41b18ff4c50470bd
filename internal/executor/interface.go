package executor

import (
	"context"

	"github.com/tradeforge/competition-trader/internal/risk"
	"github.com/tradeforge/competition-trader/pkg/types"
)

// OrderExecutor submits bounded orders to the venue. Implementations must be
// idempotent-safe under retry: resubmitting an order ID that already filled
// returns the original fill instead of executing twice. Partial fills are
// reported distinctly via Fill.Partial.
type OrderExecutor interface {
	Submit(ctx context.Context, order *risk.Order) (*types.Fill, error)
}
