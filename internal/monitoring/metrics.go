package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order flow metrics
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execution_engine_orders_total",
			Help: "Total number of order submissions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	orderNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "execution_engine_order_notional",
			Help:    "Distribution of submitted order notional values",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		},
		[]string{"symbol"},
	)

	executionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "execution_engine_execution_seconds",
			Help:    "Time from order request to gateway acknowledgement",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "execution_engine_active_orders",
			Help: "Number of tracked non-terminal orders",
		},
	)

	// Risk metrics
	riskViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execution_engine_risk_violations_total",
			Help: "Total number of risk violations by type and severity",
		},
		[]string{"type", "severity"},
	)

	tradingHalted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "execution_engine_trading_halted",
			Help: "Whether trading is currently halted (1) or active (0)",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execution_engine_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(orderNotional)
	prometheus.MustRegister(executionSeconds)
	prometheus.MustRegister(activeOrders)
	prometheus.MustRegister(riskViolationsTotal)
	prometheus.MustRegister(tradingHalted)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordOrder records an order submission outcome
func RecordOrder(strategy, outcome, symbol string, notional, durationSeconds float64) {
	ordersTotal.WithLabelValues(strategy, outcome).Inc()
	if notional > 0 {
		orderNotional.WithLabelValues(symbol).Observe(notional)
	}
	if durationSeconds > 0 {
		executionSeconds.Observe(durationSeconds)
	}
}

// SetActiveOrders updates the active order gauge
func SetActiveOrders(count int) {
	activeOrders.Set(float64(count))
}

// RecordRiskViolation records a risk violation metric
func RecordRiskViolation(violationType, severity string) {
	riskViolationsTotal.WithLabelValues(violationType, severity).Inc()
}

// SetTradingHalted updates the trading halt gauge
func SetTradingHalted(halted bool) {
	if halted {
		tradingHalted.Set(1)
	} else {
		tradingHalted.Set(0)
	}
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
