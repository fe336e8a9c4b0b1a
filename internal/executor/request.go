package executor

import (
	"fmt"
	"time"

	"github.com/quantfold/execution-engine/internal/errors"
	"github.com/quantfold/execution-engine/pkg/types"
)

const component = "executor"

// validateRequest checks an order request before anything reaches the
// brokerage. All failures are validation errors; none consume a gateway
// call.
func validateRequest(req *types.OrderRequest) error {
	if req == nil {
		return errors.NewValidationError(component, "validate_request", "order request is nil")
	}
	if req.Symbol == "" {
		return errors.NewValidationError(component, "validate_request", "symbol must not be empty")
	}
	if req.Quantity <= 0 {
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("quantity must be positive, got %d", req.Quantity))
	}

	switch req.Side {
	case types.OrderSideBuy, types.OrderSideSell:
	default:
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("invalid order side %q", req.Side))
	}

	switch req.OrderType {
	case types.OrderTypeMarket, types.OrderTypeLimit, types.OrderTypeStop, types.OrderTypeStopLimit:
	default:
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("invalid order type %q", req.OrderType))
	}

	if req.OrderType.RequiresLimitPrice() && req.LimitPrice <= 0 {
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("%s orders require a positive limit price", req.OrderType))
	}
	if req.OrderType.RequiresStopPrice() && req.StopPrice <= 0 {
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("%s orders require a positive stop price", req.OrderType))
	}

	if req.ParticipationRate != 0 && (req.ParticipationRate <= 0 || req.ParticipationRate > 1) {
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("participation rate must be in (0, 1], got %.4f", req.ParticipationRate))
	}

	switch req.Strategy {
	case "", types.StrategyImmediate, types.StrategySmart, types.StrategyIceberg, types.StrategyTWAP, types.StrategyVWAP:
	default:
		return errors.NewValidationError(component, "validate_request",
			fmt.Sprintf("invalid execution strategy %q", req.Strategy))
	}

	return nil
}

// ExecutionResult is the outcome of one execute call. Submission
// failures produce a failed result rather than an error; only caller
// mistakes (validation, funds, blocked account) are raised.
type ExecutionResult struct {
	Success     bool                    `json:"success"`
	Order       *types.Order            `json:"order,omitempty"`
	Request     *types.OrderRequest     `json:"request"`
	Strategy    types.ExecutionStrategy `json:"strategy"` // strategy actually routed, after fallbacks
	Warnings    []string                `json:"warnings,omitempty"`
	Error       string                  `json:"error,omitempty"`
	SubmittedAt time.Time               `json:"submitted_at"`
	Duration    time.Duration           `json:"duration"`
}

// ExecutionStats accumulates per-session execution statistics.
// PartialFills counts orders observed entering the partially-filled
// state; TotalFees sums broker fees over completed orders.
type ExecutionStats struct {
	TotalOrders      int           `json:"total_orders"`
	SuccessfulOrders int           `json:"successful_orders"`
	FailedOrders     int           `json:"failed_orders"`
	CancelledOrders  int           `json:"cancelled_orders"`
	PartialFills     int           `json:"partial_fills"`
	TotalFees        float64       `json:"total_fees"`
	TotalExecTime    time.Duration `json:"total_exec_time"`
}

// SuccessRate returns the fraction of submissions that were accepted
func (s *ExecutionStats) SuccessRate() float64 {
	if s.TotalOrders == 0 {
		return 0
	}
	return float64(s.SuccessfulOrders) / float64(s.TotalOrders)
}

// AvgExecutionTime returns the mean time from request to gateway ack
func (s *ExecutionStats) AvgExecutionTime() time.Duration {
	if s.SuccessfulOrders == 0 {
		return 0
	}
	return s.TotalExecTime / time.Duration(s.SuccessfulOrders)
}
