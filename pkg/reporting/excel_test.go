package reporting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantfold/execution-engine/internal/executor"
	"github.com/quantfold/execution-engine/internal/risk"
	"github.com/quantfold/execution-engine/pkg/types"
)

func sampleReport() *SessionReport {
	started := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return &SessionReport{
		EngineName:  "test-engine",
		GatewayName: "paper",
		StartedAt:   started,
		EndedAt:     started.Add(time.Hour),
		Execution: executor.ExecutionStats{
			TotalOrders:      4,
			SuccessfulOrders: 3,
			FailedOrders:     1,
		},
		Risk: risk.RiskStats{
			OrdersEvaluated: 4,
			OrdersBlocked:   1,
		},
		Orders: []types.Order{
			{
				OrderID:        "paper-000001",
				Symbol:         "AAPL",
				Side:           types.OrderSideBuy,
				OrderType:      types.OrderTypeLimit,
				Quantity:       100,
				FilledQuantity: 100,
				AvgFillPrice:   189.50,
				LimitPrice:     190.00,
				Status:         types.OrderStatusFilled,
				CreatedAt:      started,
				UpdatedAt:      started.Add(time.Minute),
			},
		},
		Violations: []risk.RiskViolation{
			{
				Type:              risk.ViolationMaxPositionSize,
				Severity:          risk.SeverityMedium,
				Symbol:            "AAPL",
				Message:           "position too large",
				ObservedValue:     60_000,
				LimitValue:        50_000,
				RecommendedAction: risk.ActionReducePosition,
				Timestamp:         started.Add(30 * time.Minute),
			},
		},
	}
}

func TestWriteSessionXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "session.xlsx")
	require.NoError(t, NewExcelReporter().WriteSessionXLSX(sampleReport(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Summary", "Orders", "Violations"}, fx.GetSheetList())

	engine, err := fx.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "test-engine", engine)

	orderID, err := fx.GetCellValue("Orders", "A2")
	require.NoError(t, err)
	assert.Equal(t, "paper-000001", orderID)

	status, err := fx.GetCellValue("Orders", "I2")
	require.NoError(t, err)
	assert.Equal(t, "filled", status)

	violationType, err := fx.GetCellValue("Violations", "B2")
	require.NoError(t, err)
	assert.Equal(t, "max_position_size", violationType)
}

func TestSessionDuration(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, time.Hour, report.SessionDuration())

	report.EndedAt = time.Time{}
	assert.Greater(t, report.SessionDuration(), time.Duration(0))
}
