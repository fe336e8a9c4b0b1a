package broker

import (
	"context"
	"errors"
	"time"

	"github.com/quantfold/execution-engine/pkg/types"
)

// ErrOrderNotFound is returned by GetOrder when the broker has no record
// of the requested order ID.
var ErrOrderNotFound = errors.New("order not found")

// SubmitParams holds parameters for submitting an order to the brokerage
type SubmitParams struct {
	Symbol      string
	Quantity    int
	Side        types.OrderSide
	OrderType   types.OrderType
	TimeInForce types.TimeInForce
	LimitPrice  float64 // required for limit and stop-limit orders
	StopPrice   float64 // required for stop and stop-limit orders
}

// Gateway abstracts the brokerage API consumed by the engine. Submission,
// cancellation and status queries are at-most-once from the engine's
// perspective; retries are the gateway implementation's concern.
type Gateway interface {
	GetName() string

	SubmitOrder(ctx context.Context, params SubmitParams) (*types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*types.Order, error)

	GetPositions(ctx context.Context) ([]types.Position, error)
	GetAccountInfo(ctx context.Context) (*types.AccountInfo, error)
	IsMarketOpen(ctx context.Context) (bool, error)
}

// MarketData abstracts the quote provider. Quotes are best effort; the
// engine falls back to a configured default price when none is available.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*types.Quote, error)
}

// Snapshot builds a fresh portfolio snapshot from the gateway's account
// and position queries. A new snapshot is fetched for every risk
// evaluation; nothing is cached across decisions.
func Snapshot(ctx context.Context, g Gateway) (*types.PortfolioSnapshot, error) {
	account, err := g.GetAccountInfo(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := g.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	totalPnL := 0.0
	for i := range positions {
		totalPnL += positions[i].UnrealizedPnL
	}

	return &types.PortfolioSnapshot{
		Timestamp:   time.Now().UTC(),
		TotalValue:  account.PortfolioValue,
		BuyingPower: account.BuyingPower,
		DayPnL:      account.DayPnL,
		TotalPnL:    totalPnL,
		Positions:   positions,
	}, nil
}
