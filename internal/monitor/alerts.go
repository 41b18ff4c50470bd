package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeforge/competition-trader/internal/events"
)

// AlertLog is the append-only store of raised alerts. Entries are never
// removed; acknowledgement flips once and never reverts.
type AlertLog struct {
	mu     sync.RWMutex
	alerts []*events.Alert
}

// NewAlertLog creates an empty alert log
func NewAlertLog() *AlertLog {
	return &AlertLog{}
}

// Raise appends a new alert and returns it
func (l *AlertLog) Raise(level events.AlertLevel, category, message string) *events.Alert {
	alert := &events.Alert{
		ID:        uuid.NewString(),
		Level:     level,
		Category:  category,
		Message:   message,
		Timestamp: time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, alert)
	return alert
}

// Acknowledge marks the alert as acknowledged. Acknowledging twice is an error;
// the flag never reverts.
func (l *AlertLog) Acknowledge(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.alerts {
		if a.ID == id {
			if a.Acknowledged {
				return fmt.Errorf("alert %s already acknowledged", id)
			}
			a.Acknowledged = true
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", id)
}

// All returns a copy of every raised alert in order
func (l *AlertLog) All() []events.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]events.Alert, len(l.alerts))
	for i, a := range l.alerts {
		out[i] = *a
	}
	return out
}

// Unacknowledged returns alerts not yet acknowledged
func (l *AlertLog) Unacknowledged() []events.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []events.Alert
	for _, a := range l.alerts {
		if !a.Acknowledged {
			out = append(out, *a)
		}
	}
	return out
}
