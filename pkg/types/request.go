package types

// ExecutionStrategy selects how the router works an order
type ExecutionStrategy string

const (
	StrategyImmediate ExecutionStrategy = "immediate"
	StrategySmart     ExecutionStrategy = "smart"
	StrategyIceberg   ExecutionStrategy = "iceberg"
	StrategyTWAP      ExecutionStrategy = "twap"
	StrategyVWAP      ExecutionStrategy = "vwap"
)

// OrderRequest is a caller's instruction to the execution engine. It is
// validated and risk-checked before anything reaches the brokerage.
type OrderRequest struct {
	Symbol            string            `json:"symbol"`
	Side              OrderSide         `json:"side"`
	Quantity          int               `json:"quantity"`
	OrderType         OrderType         `json:"order_type"`
	LimitPrice        float64           `json:"limit_price,omitempty"` // 0 when not set
	StopPrice         float64           `json:"stop_price,omitempty"`  // 0 when not set
	TimeInForce       TimeInForce       `json:"time_in_force"`
	Strategy          ExecutionStrategy `json:"strategy"`
	ParticipationRate float64           `json:"participation_rate,omitempty"` // (0, 1], 0 = default
}

// Clone returns a copy of the request suitable for modification
func (r *OrderRequest) Clone() *OrderRequest {
	copied := *r
	return &copied
}

// Notional returns the order value at the given reference price
func (r *OrderRequest) Notional(price float64) float64 {
	return float64(r.Quantity) * price
}
