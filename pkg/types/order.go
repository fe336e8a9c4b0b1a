package types

import "time"

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the closing side for a position opened on this side
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents the type of an order
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// RequiresLimitPrice reports whether orders of this type must carry a limit price
func (t OrderType) RequiresLimitPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

// RequiresStopPrice reports whether orders of this type must carry a stop price
func (t OrderType) RequiresStopPrice() bool {
	return t == OrderTypeStop || t == OrderTypeStopLimit
}

// TimeInForce represents how long an order remains active
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// OrderStatus represents the broker-reported status of an order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// IsTerminal reports whether no further status transitions are possible
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// Order represents a broker-acknowledged order tracked by the engine.
// OrderID is broker-assigned and unique; the order is mutated only by
// status-poll results and evicted from tracking once terminal.
type Order struct {
	OrderID        string      `json:"order_id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	OrderType      OrderType   `json:"order_type"`
	Quantity       int         `json:"quantity"`
	FilledQuantity int         `json:"filled_quantity"`
	AvgFillPrice   float64     `json:"avg_fill_price"` // 0 until first fill
	Fees           float64     `json:"fees"`           // cumulative broker fees
	LimitPrice     float64     `json:"limit_price"`    // 0 when not set
	StopPrice      float64     `json:"stop_price"`     // 0 when not set
	TimeInForce    TimeInForce `json:"time_in_force"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// RemainingQuantity returns the unfilled portion of the order
func (o *Order) RemainingQuantity() int {
	return o.Quantity - o.FilledQuantity
}

// IsTerminal reports whether the order reached a terminal status
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// FillsConsistent verifies the 0 <= filled <= quantity invariant
func (o *Order) FillsConsistent() bool {
	return o.FilledQuantity >= 0 && o.FilledQuantity <= o.Quantity
}
