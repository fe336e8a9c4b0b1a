package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantfold/execution-engine/pkg/types"
)

// PaperGateway is an in-memory brokerage simulator implementing Gateway and
// MarketData. Market orders and marketable limit orders fill immediately
// against the quote table; resting limit orders stay open until filled via
// SimulateFill or cancelled. It is the default gateway for local runs and
// the test suites.
type PaperGateway struct {
	mu sync.RWMutex

	initialCapital float64
	cash           float64
	tradingBlocked bool
	marketOpen     bool

	orders       map[string]*types.Order
	orderCounter int

	positions map[string]*paperPosition

	quotes map[string]types.Quote

	fallbackPrice float64
	commission    float64
}

type paperPosition struct {
	quantity  int
	costBasis float64
	dayPnL    float64
}

// PaperConfig holds configuration for the paper gateway
type PaperConfig struct {
	InitialCapital     float64 // starting cash (default: $100,000)
	FallbackPrice      float64 // price used when no quote is set (default: $100)
	CommissionPerShare float64 // per-share fee charged on fills (default: free)
}

// NewPaperGateway creates a new in-memory brokerage simulator
func NewPaperGateway(cfg *PaperConfig) *PaperGateway {
	if cfg == nil {
		cfg = &PaperConfig{}
	}

	capital := cfg.InitialCapital
	if capital <= 0 {
		capital = 100_000
	}

	fallback := cfg.FallbackPrice
	if fallback <= 0 {
		fallback = 100.0
	}

	return &PaperGateway{
		initialCapital: capital,
		cash:           capital,
		marketOpen:     true,
		orders:         make(map[string]*types.Order),
		positions:      make(map[string]*paperPosition),
		quotes:         make(map[string]types.Quote),
		fallbackPrice:  fallback,
		commission:     cfg.CommissionPerShare,
	}
}

// GetName returns "paper"
func (pg *PaperGateway) GetName() string { return "paper" }

// SetQuote installs or replaces the quote for a symbol
func (pg *PaperGateway) SetQuote(q types.Quote) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	q.Timestamp = time.Now().UTC()
	pg.quotes[q.Symbol] = q
}

// SetTradingBlocked toggles the account-level trading block
func (pg *PaperGateway) SetTradingBlocked(blocked bool) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	pg.tradingBlocked = blocked
}

// SetMarketOpen toggles the simulated market session
func (pg *PaperGateway) SetMarketOpen(open bool) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	pg.marketOpen = open
}

// SeedPosition installs a position directly, bypassing order flow. Used to
// arrange account state for risk monitoring scenarios.
func (pg *PaperGateway) SeedPosition(symbol string, quantity int, avgCost float64) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	if quantity == 0 {
		delete(pg.positions, symbol)
		return
	}
	pg.positions[symbol] = &paperPosition{
		quantity:  quantity,
		costBasis: float64(quantity) * avgCost,
	}
}

// SubmitOrder acknowledges the order and fills it when marketable
func (pg *PaperGateway) SubmitOrder(_ context.Context, params SubmitParams) (*types.Order, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.tradingBlocked {
		return nil, fmt.Errorf("trading is blocked on this account")
	}
	if params.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %d", params.Quantity)
	}

	pg.orderCounter++
	now := time.Now().UTC()
	order := &types.Order{
		OrderID:     fmt.Sprintf("paper-%06d", pg.orderCounter),
		Symbol:      params.Symbol,
		Side:        params.Side,
		OrderType:   params.OrderType,
		Quantity:    params.Quantity,
		LimitPrice:  params.LimitPrice,
		StopPrice:   params.StopPrice,
		TimeInForce: params.TimeInForce,
		Status:      types.OrderStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if price, marketable := pg.marketablePrice(order); marketable {
		pg.fill(order, order.Quantity, price)
	}

	pg.orders[order.OrderID] = order

	copied := *order
	return &copied, nil
}

// marketablePrice returns the execution price for an immediately
// marketable order. Stop orders always rest.
func (pg *PaperGateway) marketablePrice(order *types.Order) (float64, bool) {
	if order.OrderType == types.OrderTypeStop || order.OrderType == types.OrderTypeStopLimit {
		return 0, false
	}

	quoted := pg.quotePrice(order.Symbol, order.Side)

	switch order.OrderType {
	case types.OrderTypeMarket:
		return quoted, true
	case types.OrderTypeLimit:
		if order.Side == types.OrderSideBuy && order.LimitPrice >= quoted {
			return quoted, true
		}
		if order.Side == types.OrderSideSell && order.LimitPrice <= quoted {
			return quoted, true
		}
	}
	return 0, false
}

func (pg *PaperGateway) quotePrice(symbol string, side types.OrderSide) float64 {
	if q, ok := pg.quotes[symbol]; ok {
		if side == types.OrderSideBuy {
			return q.Ask
		}
		return q.Bid
	}
	return pg.fallbackPrice
}

// fill applies an execution to the order and to account state.
// Caller must hold the lock.
func (pg *PaperGateway) fill(order *types.Order, qty int, price float64) {
	prevNotional := order.AvgFillPrice * float64(order.FilledQuantity)
	order.FilledQuantity += qty
	order.AvgFillPrice = (prevNotional + price*float64(qty)) / float64(order.FilledQuantity)
	order.Fees += float64(qty) * pg.commission
	if order.FilledQuantity >= order.Quantity {
		order.Status = types.OrderStatusFilled
	} else {
		order.Status = types.OrderStatusPartiallyFilled
	}
	order.UpdatedAt = time.Now().UTC()

	signed := qty
	if order.Side == types.OrderSideSell {
		signed = -qty
	}

	pos := pg.positions[order.Symbol]
	if pos == nil {
		pos = &paperPosition{}
		pg.positions[order.Symbol] = pos
	}
	pos.quantity += signed
	pos.costBasis += float64(signed) * price
	if pos.quantity == 0 {
		delete(pg.positions, order.Symbol)
	}

	pg.cash -= float64(signed) * price
}

// SimulateFill advances a resting order by qty shares at price. It exists
// so tests and the demo entrypoint can drive partial fills through the
// status-polling path.
func (pg *PaperGateway) SimulateFill(orderID string, qty int, price float64) error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	order, ok := pg.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if order.IsTerminal() {
		return fmt.Errorf("order %s is %s", orderID, order.Status)
	}
	if qty <= 0 || qty > order.RemainingQuantity() {
		return fmt.Errorf("invalid fill quantity %d for order %s", qty, orderID)
	}

	pg.fill(order, qty, price)
	return nil
}

// CancelOrder cancels a non-terminal order
func (pg *PaperGateway) CancelOrder(_ context.Context, orderID string) error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	order, ok := pg.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if order.IsTerminal() {
		return fmt.Errorf("order %s already %s", orderID, order.Status)
	}

	order.Status = types.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()
	return nil
}

// GetOrder returns a copy of the tracked order
func (pg *PaperGateway) GetOrder(_ context.Context, orderID string) (*types.Order, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()

	order, ok := pg.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	copied := *order
	return &copied, nil
}

// GetPositions returns all open positions marked to the quote table
func (pg *PaperGateway) GetPositions(_ context.Context) ([]types.Position, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()

	positions := make([]types.Position, 0, len(pg.positions))
	for symbol, pos := range pg.positions {
		price := pg.markPrice(symbol)
		marketValue := math.Abs(float64(pos.quantity)) * price
		positions = append(positions, types.Position{
			Symbol:        symbol,
			Quantity:      pos.quantity,
			MarketValue:   marketValue,
			CostBasis:     pos.costBasis,
			UnrealizedPnL: float64(pos.quantity)*price - pos.costBasis,
			DayPnL:        pos.dayPnL,
		})
	}
	return positions, nil
}

func (pg *PaperGateway) markPrice(symbol string) float64 {
	if q, ok := pg.quotes[symbol]; ok {
		return q.MidPrice()
	}
	return pg.fallbackPrice
}

// GetAccountInfo returns the simulated account state
func (pg *PaperGateway) GetAccountInfo(_ context.Context) (*types.AccountInfo, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()

	portfolioValue := pg.cash
	dayPnL := 0.0
	for symbol, pos := range pg.positions {
		portfolioValue += float64(pos.quantity) * pg.markPrice(symbol)
		dayPnL += pos.dayPnL
	}

	return &types.AccountInfo{
		BuyingPower:    pg.cash,
		PortfolioValue: portfolioValue,
		DayPnL:         dayPnL,
		TradingBlocked: pg.tradingBlocked,
	}, nil
}

// SetDayPnL overrides the day P&L for a held symbol. Used to arrange
// daily-loss scenarios.
func (pg *PaperGateway) SetDayPnL(symbol string, pnl float64) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	if pos, ok := pg.positions[symbol]; ok {
		pos.dayPnL = pnl
	}
}

// IsMarketOpen reports the simulated market session
func (pg *PaperGateway) IsMarketOpen(_ context.Context) (bool, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()
	return pg.marketOpen, nil
}

// GetQuote implements MarketData from the quote table
func (pg *PaperGateway) GetQuote(_ context.Context, symbol string) (*types.Quote, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()

	q, ok := pg.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	copied := q
	return &copied, nil
}
