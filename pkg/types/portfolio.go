package types

import (
	"math"
	"time"
)

// Position represents a live position in a single symbol.
// Quantity is signed: positive for long, negative for short. A zero
// quantity means "no position" and is never stored in a snapshot.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      int     `json:"quantity"`
	MarketValue   float64 `json:"market_value"` // always >= 0
	CostBasis     float64 `json:"cost_basis"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	DayPnL        float64 `json:"day_pnl"`
}

// IsLong reports whether the position is long
func (p *Position) IsLong() bool {
	return p.Quantity > 0
}

// IsShort reports whether the position is short
func (p *Position) IsShort() bool {
	return p.Quantity < 0
}

// AverageCost returns the per-share entry cost of the position
func (p *Position) AverageCost() float64 {
	if p.Quantity == 0 {
		return 0
	}
	return math.Abs(p.CostBasis / float64(p.Quantity))
}

// CurrentPrice returns the per-share market price implied by the
// position's market value
func (p *Position) CurrentPrice() float64 {
	if p.Quantity == 0 {
		return 0
	}
	return math.Abs(p.MarketValue / float64(p.Quantity))
}

// PortfolioSnapshot is a point-in-time view of the account. Snapshots are
// immutable once constructed; every risk evaluation fetches a fresh one.
type PortfolioSnapshot struct {
	Timestamp   time.Time  `json:"timestamp"`
	TotalValue  float64    `json:"total_value"`
	BuyingPower float64    `json:"buying_power"`
	DayPnL      float64    `json:"day_pnl"`
	TotalPnL    float64    `json:"total_pnl"`
	Positions   []Position `json:"positions"` // symbols unique within a snapshot
}

// GetPosition returns the position for symbol, or nil if none is held
func (s *PortfolioSnapshot) GetPosition(symbol string) *Position {
	for i := range s.Positions {
		if s.Positions[i].Symbol == symbol {
			return &s.Positions[i]
		}
	}
	return nil
}

// Quote is a best-effort market data point for a symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	AverageVolume float64   `json:"average_volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Spread returns the bid-ask spread
func (q *Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// MidPrice returns the bid-ask midpoint
func (q *Quote) MidPrice() float64 {
	return (q.Bid + q.Ask) / 2
}

// AccountInfo holds account-level gates checked before submission
type AccountInfo struct {
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
	DayPnL         float64 `json:"day_pnl"`
	TradingBlocked bool    `json:"trading_blocked"`
}
