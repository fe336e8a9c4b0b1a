package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/execution-engine/pkg/types"
)

func testLimits() types.RiskLimits {
	return types.RiskLimits{
		MaxPositionSize:           50_000,
		MaxPortfolioConcentration: 0.20,
		MaxDailyLoss:              5_000,
		MaxDrawdown:               0.15,
		StopLossPercentage:        0.05,
	}
}

func snapshotWith(totalValue, dayPnL float64, positions ...types.Position) *types.PortfolioSnapshot {
	return &types.PortfolioSnapshot{
		TotalValue:  totalValue,
		BuyingPower: totalValue,
		DayPnL:      dayPnL,
		Positions:   positions,
	}
}

func TestCheckStopLossLongPosition(t *testing.T) {
	limits := testLimits()

	// entry $160, 5% stop -> trigger at $152
	pos := &types.Position{Symbol: "AAPL", Quantity: 100, CostBasis: 16_000, MarketValue: 15_500}
	assert.Nil(t, checkStopLoss(pos, limits), "no violation at $155")

	pos.MarketValue = 15_000 // $150
	v := checkStopLoss(pos, limits)
	require.NotNil(t, v, "expected violation at $150")
	assert.Equal(t, ViolationStopLossTriggered, v.Type)
	assert.Equal(t, SeverityHigh, v.Severity)
	assert.Equal(t, ActionClosePosition, v.RecommendedAction)
	assert.Equal(t, "AAPL", v.Symbol)
}

func TestCheckStopLossShortPosition(t *testing.T) {
	limits := testLimits()

	// short entry $200, 5% stop -> trigger at $210
	pos := &types.Position{Symbol: "TSLA", Quantity: -50, CostBasis: -10_000, MarketValue: 10_250} // $205
	assert.Nil(t, checkStopLoss(pos, limits))

	pos.MarketValue = 10_550 // $211
	v := checkStopLoss(pos, limits)
	require.NotNil(t, v)
	assert.Equal(t, ViolationStopLossTriggered, v.Type)
}

func TestCheckOrderDailyLossProxy(t *testing.T) {
	limits := testLimits()
	req := &types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 300}

	// day P&L -4000, notional 300*100=30000, proxy loss 1500 -> projected -5500
	violations := checkOrderDailyLoss(req, 100, snapshotWith(200_000, -4_000), limits)
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationMaxDailyLoss, violations[0].Type)
	assert.Equal(t, SeverityHigh, violations[0].Severity)
	assert.Equal(t, ActionStopTrading, violations[0].RecommendedAction)

	// day P&L -3000 -> projected -4500, inside the limit
	violations = checkOrderDailyLoss(req, 100, snapshotWith(200_000, -3_000), limits)
	assert.Empty(t, violations)
}

func TestCheckPositionSizeProspective(t *testing.T) {
	limits := testLimits()

	// existing 200 shares + 400 more at $100 = $60,000 > $50,000
	existing := types.Position{Symbol: "AAPL", Quantity: 200, CostBasis: 20_000, MarketValue: 20_000}
	req := &types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 400}

	violations, _ := checkPositionSize(req, 100, snapshotWith(400_000, 0, existing), limits)
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationMaxPositionSize, violations[0].Type)
	assert.Equal(t, SeverityMedium, violations[0].Severity)
	assert.Equal(t, ActionReducePosition, violations[0].RecommendedAction)

	// a sell reduces the prospective position
	sell := &types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideSell, Quantity: 100}
	violations, _ = checkPositionSize(sell, 100, snapshotWith(400_000, 0, existing), limits)
	assert.Empty(t, violations)
}

func TestCheckPositionSizeApproachingWarning(t *testing.T) {
	limits := testLimits()
	req := &types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 450}

	// $45,000 is 90% of the $50,000 limit: warn, don't violate
	violations, warnings := checkPositionSize(req, 100, snapshotWith(1_000_000, 0), limits)
	assert.Empty(t, violations)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "AAPL")
}

func TestCheckConcentration(t *testing.T) {
	limits := testLimits()
	req := &types.OrderRequest{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 300}

	// $30,000 of a $100,000 book is 30% > 20%
	violations, _ := checkPositionSize(req, 100, snapshotWith(100_000, 0), limits)
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationMaxConcentration, violations[0].Type)
}

func TestCheckDailyLoss(t *testing.T) {
	limits := testLimits()

	violations := checkDailyLoss(snapshotWith(100_000, -6_000), limits)
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationDailyLossExceeded, violations[0].Type)
	assert.Equal(t, SeverityHigh, violations[0].Severity)

	assert.Empty(t, checkDailyLoss(snapshotWith(100_000, -4_000), limits))
}

func TestMeasureConcentration(t *testing.T) {
	snapshot := snapshotWith(100_000, 0,
		types.Position{Symbol: "AAPL", Quantity: 100, MarketValue: 50_000},
		types.Position{Symbol: "MSFT", Quantity: 100, MarketValue: 50_000},
	)

	metrics := measureConcentration(snapshot)
	assert.InDelta(t, 0.5, metrics.HHI, 1e-9)
	assert.InDelta(t, 2.0, metrics.EffectivePositions, 1e-9)
	assert.Equal(t, 0.5, metrics.LargestWeight)
}

func TestMeasureDrawdown(t *testing.T) {
	metrics := measureDrawdown([]float64{100_000, 120_000, 96_000, 108_000})

	assert.Equal(t, 120_000.0, metrics.PeakValue)
	assert.Equal(t, 108_000.0, metrics.CurrentValue)
	assert.InDelta(t, 0.10, metrics.CurrentDrawdown, 1e-9)
	assert.InDelta(t, 0.20, metrics.MaxDrawdown, 1e-9)

	violations := checkDrawdown(metrics, testLimits())
	assert.Empty(t, violations, "10%% current drawdown is inside the 15%% limit")

	violations = checkDrawdown(measureDrawdown([]float64{120_000, 100_000}), testLimits())
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationMaxDrawdown, violations[0].Type)
	assert.Equal(t, SeverityMedium, violations[0].Severity)
	assert.Equal(t, ActionAlertOnly, violations[0].RecommendedAction)
}

func TestRecommendPositionSize(t *testing.T) {
	limits := testLimits()

	// 32% annual vol -> ~2% daily; stop ~ $4 on a $100 stock
	rec := RecommendPositionSize(1_000_000, 100, 0.3175, 0.01, limits)
	assert.Greater(t, rec.Quantity, 0)
	assert.InDelta(t, 0.02, rec.DailyVolatility, 0.001)
	assert.InDelta(t, 4.0, rec.StopDistance, 0.2)

	// $10k risk budget / $4 stop = 2500 by risk, but $50k cap / $100 = 500
	assert.Equal(t, "position_size", rec.LimitingFactor)
	assert.Equal(t, 500, rec.Quantity)

	// small account: concentration binds first
	rec = RecommendPositionSize(100_000, 100, 0.3175, 0.05, limits)
	assert.Equal(t, "concentration", rec.LimitingFactor)
	assert.Equal(t, 200, rec.Quantity)
}
