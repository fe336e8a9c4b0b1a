package types

// RiskLimits is the process-wide risk configuration. Limits are
// hot-swappable; every evaluation uses whichever limits are current at
// call time.
type RiskLimits struct {
	MaxPositionSize           float64 `json:"max_position_size"`           // currency, per position
	MaxPortfolioConcentration float64 `json:"max_portfolio_concentration"` // fraction of total value
	MaxDailyLoss              float64 `json:"max_daily_loss"`              // currency
	MaxDrawdown               float64 `json:"max_drawdown"`                // fraction from peak
	StopLossPercentage        float64 `json:"stop_loss_percentage"`        // fraction from entry
}

// DefaultRiskLimits returns the limits used when none are configured
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:           50000.00, // $50k max per position
		MaxPortfolioConcentration: 0.20,     // 20% max allocation per position
		MaxDailyLoss:              5000.00,  // $5k max daily loss
		MaxDrawdown:               0.15,     // 15% max drawdown
		StopLossPercentage:        0.05,     // 5% stop loss
	}
}
