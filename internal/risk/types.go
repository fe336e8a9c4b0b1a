package risk

import (
	"time"

	"github.com/quantfold/execution-engine/pkg/types"
)

// ViolationSeverity grades how serious a risk violation is. High and
// critical violations block order approval; medium violations are
// recoverable through order modification or alerting.
type ViolationSeverity string

const (
	SeverityMedium   ViolationSeverity = "medium"
	SeverityHigh     ViolationSeverity = "high"
	SeverityCritical ViolationSeverity = "critical"
)

// RiskAction is the recommended remediation for a violation
type RiskAction string

const (
	ActionAlertOnly      RiskAction = "alert_only"
	ActionBlockOrder     RiskAction = "block_order"
	ActionReducePosition RiskAction = "reduce_position"
	ActionClosePosition  RiskAction = "close_position"
	ActionStopTrading    RiskAction = "stop_trading"
	ActionRebalance      RiskAction = "rebalance"
)

// ViolationType identifies which control a violation came from
type ViolationType string

const (
	ViolationMaxPositionSize       ViolationType = "max_position_size"
	ViolationMaxConcentration      ViolationType = "max_concentration"
	ViolationMaxDailyLoss          ViolationType = "max_daily_loss"
	ViolationDailyLossExceeded     ViolationType = "daily_loss_exceeded"
	ViolationStopLossTriggered     ViolationType = "stop_loss_triggered"
	ViolationMaxDrawdown           ViolationType = "max_drawdown"
	ViolationAccountTradingBlocked ViolationType = "account_trading_blocked"
	ViolationTradingHalted         ViolationType = "trading_halted"
	ViolationValidationError       ViolationType = "validation_error"
)

// severityFor maps a violation type to its severity. Unknown types grade
// as medium so a new control can never silently block trading.
func severityFor(violationType ViolationType) ViolationSeverity {
	switch violationType {
	case ViolationMaxPositionSize, ViolationMaxConcentration:
		return SeverityMedium
	case ViolationMaxDailyLoss, ViolationDailyLossExceeded, ViolationStopLossTriggered:
		return SeverityHigh
	case ViolationAccountTradingBlocked, ViolationTradingHalted, ViolationValidationError:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// actionFor maps a violation type to its recommended remediation
func actionFor(violationType ViolationType) RiskAction {
	switch violationType {
	case ViolationMaxPositionSize, ViolationMaxConcentration:
		return ActionReducePosition
	case ViolationMaxDailyLoss, ViolationDailyLossExceeded:
		return ActionStopTrading
	case ViolationStopLossTriggered:
		return ActionClosePosition
	case ViolationAccountTradingBlocked, ViolationTradingHalted, ViolationValidationError:
		return ActionBlockOrder
	default:
		return ActionAlertOnly
	}
}

// RiskViolation describes one breached control
type RiskViolation struct {
	Type              ViolationType     `json:"type"`
	Severity          ViolationSeverity `json:"severity"`
	Symbol            string            `json:"symbol,omitempty"` // empty for portfolio-level violations
	Message           string            `json:"message"`
	ObservedValue     float64           `json:"observed_value"`
	LimitValue        float64           `json:"limit_value"`
	RecommendedAction RiskAction        `json:"recommended_action"`
	Timestamp         time.Time         `json:"timestamp"`
}

// newViolation builds a violation with severity and action derived from
// its type
func newViolation(violationType ViolationType, symbol, message string, observed, limit float64) RiskViolation {
	return RiskViolation{
		Type:              violationType,
		Severity:          severityFor(violationType),
		Symbol:            symbol,
		Message:           message,
		ObservedValue:     observed,
		LimitValue:        limit,
		RecommendedAction: actionFor(violationType),
		Timestamp:         time.Now().UTC(),
	}
}

// IsBlocking reports whether the violation alone prevents order approval
func (v *RiskViolation) IsBlocking() bool {
	return v.Severity == SeverityHigh || v.Severity == SeverityCritical
}

// RiskControlResult is the outcome of a pre-trade risk evaluation
type RiskControlResult struct {
	Approved      bool                `json:"approved"`
	Violations    []RiskViolation     `json:"violations"`
	Warnings      []string            `json:"warnings"`
	ModifiedOrder *types.OrderRequest `json:"modified_order,omitempty"`
	EvaluatedAt   time.Time           `json:"evaluated_at"`
}

// HasCriticalViolations reports whether any violation is critical
func (r *RiskControlResult) HasCriticalViolations() bool {
	for i := range r.Violations {
		if r.Violations[i].Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// HasHighViolations reports whether any violation is high severity
func (r *RiskControlResult) HasHighViolations() bool {
	for i := range r.Violations {
		if r.Violations[i].Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// HasBlockingViolations reports whether approval must be denied outright
func (r *RiskControlResult) HasBlockingViolations() bool {
	return r.HasHighViolations() || r.HasCriticalViolations()
}

// RiskStats accumulates per-session risk control statistics
type RiskStats struct {
	OrdersEvaluated       int                   `json:"orders_evaluated"`
	OrdersBlocked         int                   `json:"orders_blocked"`
	OrdersModified        int                   `json:"orders_modified"`
	ViolationsByType      map[ViolationType]int `json:"violations_by_type"`
	AutomaticActionsTaken int                   `json:"automatic_actions_taken"`
}

// BlockRate returns the fraction of evaluated orders that were blocked
func (s *RiskStats) BlockRate() float64 {
	if s.OrdersEvaluated == 0 {
		return 0
	}
	return float64(s.OrdersBlocked) / float64(s.OrdersEvaluated)
}

// ModificationRate returns the fraction of evaluated orders that were
// approved only after modification
func (s *RiskStats) ModificationRate() float64 {
	if s.OrdersEvaluated == 0 {
		return 0
	}
	return float64(s.OrdersModified) / float64(s.OrdersEvaluated)
}
