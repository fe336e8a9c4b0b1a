package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/execution-engine/pkg/types"
)

func newTestGateway() *PaperGateway {
	pg := NewPaperGateway(&PaperConfig{InitialCapital: 100_000})
	pg.SetQuote(types.Quote{Symbol: "AAPL", Bid: 189.90, Ask: 190.10, AverageVolume: 1_000_000})
	return pg
}

func TestPaperMarketOrderFillsImmediately(t *testing.T) {
	pg := newTestGateway()

	order, err := pg.SubmitOrder(context.Background(), SubmitParams{
		Symbol:    "AAPL",
		Quantity:  100,
		Side:      types.OrderSideBuy,
		OrderType: types.OrderTypeMarket,
	})
	require.NoError(t, err)

	assert.Equal(t, types.OrderStatusFilled, order.Status)
	assert.Equal(t, 100, order.FilledQuantity)
	assert.Equal(t, 190.10, order.AvgFillPrice) // fills at the ask

	positions, err := pg.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 100, positions[0].Quantity)

	account, err := pg.GetAccountInfo(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100_000-100*190.10, account.BuyingPower, 1e-9)
}

func TestPaperNonMarketableLimitRests(t *testing.T) {
	pg := newTestGateway()

	order, err := pg.SubmitOrder(context.Background(), SubmitParams{
		Symbol:     "AAPL",
		Quantity:   100,
		Side:       types.OrderSideBuy,
		OrderType:  types.OrderTypeLimit,
		LimitPrice: 185.00, // below the ask
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusNew, order.Status)
	assert.Equal(t, 0, order.FilledQuantity)

	// advance it through a partial fill
	require.NoError(t, pg.SimulateFill(order.OrderID, 40, 185.00))

	updated, err := pg.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusPartiallyFilled, updated.Status)
	assert.Equal(t, 40, updated.FilledQuantity)
}

func TestPaperCancelOrder(t *testing.T) {
	pg := newTestGateway()

	order, err := pg.SubmitOrder(context.Background(), SubmitParams{
		Symbol:     "AAPL",
		Quantity:   100,
		Side:       types.OrderSideBuy,
		OrderType:  types.OrderTypeLimit,
		LimitPrice: 100.00,
	})
	require.NoError(t, err)

	require.NoError(t, pg.CancelOrder(context.Background(), order.OrderID))

	updated, err := pg.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, updated.Status)

	// cancelling a terminal order fails
	assert.Error(t, pg.CancelOrder(context.Background(), order.OrderID))
}

func TestPaperCancelUnknownOrder(t *testing.T) {
	pg := newTestGateway()
	err := pg.CancelOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPaperTradingBlockedRejectsSubmission(t *testing.T) {
	pg := newTestGateway()
	pg.SetTradingBlocked(true)

	_, err := pg.SubmitOrder(context.Background(), SubmitParams{
		Symbol:    "AAPL",
		Quantity:  10,
		Side:      types.OrderSideBuy,
		OrderType: types.OrderTypeMarket,
	})
	assert.Error(t, err)

	account, err := pg.GetAccountInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, account.TradingBlocked)
}

func TestPaperSellClosesPosition(t *testing.T) {
	pg := newTestGateway()
	pg.SeedPosition("AAPL", 100, 180.00)

	order, err := pg.SubmitOrder(context.Background(), SubmitParams{
		Symbol:    "AAPL",
		Quantity:  100,
		Side:      types.OrderSideSell,
		OrderType: types.OrderTypeMarket,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
	assert.Equal(t, 189.90, order.AvgFillPrice) // fills at the bid

	positions, err := pg.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSnapshotAggregation(t *testing.T) {
	pg := newTestGateway()
	pg.SeedPosition("AAPL", 100, 180.00)
	pg.SetDayPnL("AAPL", -250.00)

	snapshot, err := Snapshot(context.Background(), pg)
	require.NoError(t, err)

	require.Len(t, snapshot.Positions, 1)
	pos := snapshot.Positions[0]
	// marked to the quote midpoint
	assert.InDelta(t, 100*190.00, pos.MarketValue, 1e-6)
	assert.InDelta(t, 100*(190.00-180.00), pos.UnrealizedPnL, 1e-6)
	assert.InDelta(t, snapshot.TotalPnL, pos.UnrealizedPnL, 1e-6)
	assert.Equal(t, -250.00, snapshot.DayPnL)
	assert.False(t, snapshot.Timestamp.IsZero())
}
