package reporting

import (
	"time"

	"github.com/quantfold/execution-engine/internal/executor"
	"github.com/quantfold/execution-engine/internal/risk"
	"github.com/quantfold/execution-engine/pkg/types"
)

// SessionReport collects everything worth keeping from one engine
// session: execution and risk statistics, the orders that went through,
// the violations raised and the final portfolio state.
type SessionReport struct {
	EngineName  string
	GatewayName string
	StartedAt   time.Time
	EndedAt     time.Time

	Execution executor.ExecutionStats
	Risk      risk.RiskStats

	Orders     []types.Order
	Violations []risk.RiskViolation

	FinalSnapshot *types.PortfolioSnapshot
}

// SessionDuration returns the wall-clock length of the session
func (r *SessionReport) SessionDuration() time.Duration {
	end := r.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}
