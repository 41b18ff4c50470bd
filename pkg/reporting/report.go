package reporting

import (
	"time"

	"github.com/tradeforge/competition-trader/internal/events"
	"github.com/tradeforge/competition-trader/internal/monitor"
	"github.com/tradeforge/competition-trader/internal/portfolio"
)

// SessionReport collects everything the end-of-session outputs need: the final
// metrics snapshot, the closing portfolio state, the full trade log and every
// alert raised during the session.
type SessionReport struct {
	SessionID      string
	Symbols        []string
	StartedAt      time.Time
	EndedAt        time.Time
	InitialBalance float64

	Metrics   monitor.Metrics
	Snapshot  portfolio.Snapshot
	Trades    []monitor.TradeRecord
	Alerts    []events.Alert
	EndReason string
}

// TotalReturnPercent returns the session's overall fractional return in percent
func (r *SessionReport) TotalReturnPercent() float64 {
	if r.InitialBalance <= 0 {
		return 0
	}
	return (r.Snapshot.Equity - r.InitialBalance) / r.InitialBalance * 100
}

// Duration returns the elapsed session time
func (r *SessionReport) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}
