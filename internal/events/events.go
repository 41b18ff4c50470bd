package events

import (
	"sync"
	"time"
)

// Type enumerates the lifecycle events the core emits
type Type string

const (
	TypeTickStarted   Type = "tick_started"
	TypeTradeExecuted Type = "trade_executed"
	TypeTradeFailed   Type = "trade_failed"
	TypeAlertRaised   Type = "alert_raised"
	TypeSessionEnded  Type = "session_ended"
)

// AlertLevel grades raised alerts
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertError    AlertLevel = "ERROR"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is an append-only observability record. Acknowledged flips once and
// never reverts.
type Alert struct {
	ID           string
	Level        AlertLevel
	Category     string
	Message      string
	Timestamp    time.Time
	Acknowledged bool
}

// Event is one entry in the typed event stream. Fields beyond Type and
// Timestamp are populated per event type.
type Event struct {
	Type      Type
	Timestamp time.Time
	Symbol    string

	// Trade events
	OrderID  string
	Side     string
	Strategy string // attribution: strategy that requested the order
	Notional float64
	Price    float64
	Quantity float64
	PnL      float64 // realized PnL effect of the fill, if any
	Partial  bool
	Reason   string // failure reason, veto reason, session end cause

	// Alert events
	Alert *Alert
}

// Bus delivers events to subscribers in publish order, at least once.
// Publish blocks when a subscriber's buffer is full rather than dropping,
// so slow consumers apply backpressure instead of losing events.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber with the given channel buffer
func (b *Bus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel. A publisher
// blocked on the subscriber's full buffer is drained free first, so a reader
// that stops consuming can always detach without wedging the bus. Unknown or
// already-removed channels are ignored.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sub:
			case <-done:
				return
			}
		}
	}()

	b.mu.Lock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			break
		}
	}
	b.mu.Unlock()
	close(done)
}

// Publish delivers the event to every subscriber in registration order
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		ch <- e
	}
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
