package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports engine liveness over HTTP
type HealthChecker struct {
	mu               sync.RWMutex
	gatewayConnected bool
	lastOrderTime    time.Time
	activeOrders     int
	tradingHalted    bool
	errors           []string
}

// HealthStatus is the JSON body served by the health endpoint
type HealthStatus struct {
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	GatewayConnected bool      `json:"gateway_connected"`
	LastOrderTime    time.Time `json:"last_order_time,omitempty"`
	ActiveOrders     int       `json:"active_orders"`
	TradingHalted    bool      `json:"trading_halted"`
	Uptime           string    `json:"uptime"`
	Errors           []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetGatewayConnected records gateway connectivity
func (h *HealthChecker) SetGatewayConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gatewayConnected = connected
}

// RecordOrder notes the time of the most recent accepted order
func (h *HealthChecker) RecordOrder() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastOrderTime = time.Now()
}

// SetActiveOrders records the tracked order count
func (h *HealthChecker) SetActiveOrders(count int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeOrders = count
}

// SetTradingHalted records the halt switch state
func (h *HealthChecker) SetTradingHalted(halted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tradingHalted = halted
}

// RecordFailure appends an error to the health report
func (h *HealthChecker) RecordFailure(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, message)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}

// ClearFailures resets the error list
func (h *HealthChecker) ClearFailures() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.gatewayConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:           status,
		Timestamp:        time.Now(),
		GatewayConnected: h.gatewayConnected,
		LastOrderTime:    h.lastOrderTime,
		ActiveOrders:     h.activeOrders,
		TradingHalted:    h.tradingHalted,
		Uptime:           time.Since(startTime).String(),
		Errors:           h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
