package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker serves a JSON health probe over the trader's latest state
type HealthChecker struct {
	mu        sync.RWMutex
	running   bool
	state     string
	lastTick  time.Time
	lastTrade time.Time
	equity    float64
	drawdown  float64
	errors    []string
}

// HealthStatus is the health endpoint payload
type HealthStatus struct {
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	LastTick  time.Time `json:"last_tick"`
	LastTrade time.Time `json:"last_trade"`
	Equity    float64   `json:"equity"`
	Drawdown  float64   `json:"drawdown"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetRunning records whether the execution loop is active
func (h *HealthChecker) SetRunning(running bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = running
}

// SetState records the orchestrator state name
func (h *HealthChecker) SetState(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
}

// RecordTick records the most recent execution tick
func (h *HealthChecker) RecordTick(equity, drawdown float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = time.Now()
	h.equity = equity
	h.drawdown = drawdown
}

// RecordTrade records the most recent executed trade
func (h *HealthChecker) RecordTrade() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTrade = time.Now()
}

// AddError appends to the recent error window (last 10 kept)
func (h *HealthChecker) AddError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// Healthy reports whether the last probe would return OK
func (h *HealthChecker) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running && len(h.errors) == 0
}

// ServeHTTP serves the health endpoint
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.running {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	payload := HealthStatus{
		Status:    status,
		State:     h.state,
		Timestamp: time.Now(),
		LastTick:  h.lastTick,
		LastTrade: h.lastTrade,
		Equity:    h.equity,
		Drawdown:  h.drawdown,
		Uptime:    time.Since(startTime).String(),
		Errors:    h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
