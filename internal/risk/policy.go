package risk

import (
	"fmt"
	"math"

	"github.com/quantfold/execution-engine/pkg/types"
)

// Risk policy: pure evaluation functions over a portfolio snapshot and
// the current limits. Nothing here touches the broker or mutates state,
// which keeps every rule independently testable.

// approachingThreshold is the fraction of a limit at which a warning is
// emitted before the limit is actually breached.
const approachingThreshold = 0.80

// tradingDaysPerYear converts annualized volatility to daily
const tradingDaysPerYear = 252

// checkPositionSize evaluates the prospective position created by the
// request against the per-position size and concentration limits.
// The prospective quantity combines the existing position with the
// requested quantity, signed by side.
func checkPositionSize(req *types.OrderRequest, price float64, snapshot *types.PortfolioSnapshot, limits types.RiskLimits) ([]RiskViolation, []string) {
	var violations []RiskViolation
	var warnings []string

	existing := 0
	if pos := snapshot.GetPosition(req.Symbol); pos != nil {
		existing = pos.Quantity
	}

	delta := req.Quantity
	if req.Side == types.OrderSideSell {
		delta = -delta
	}
	prospectiveQty := existing + delta
	prospectiveValue := math.Abs(float64(prospectiveQty)) * price

	if prospectiveValue > limits.MaxPositionSize {
		violations = append(violations, newViolation(
			ViolationMaxPositionSize,
			req.Symbol,
			fmt.Sprintf("prospective position value $%.2f exceeds max position size $%.2f", prospectiveValue, limits.MaxPositionSize),
			prospectiveValue,
			limits.MaxPositionSize,
		))
	} else if prospectiveValue > limits.MaxPositionSize*approachingThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"%s position value $%.2f is at %.0f%% of the $%.2f position size limit",
			req.Symbol, prospectiveValue, prospectiveValue/limits.MaxPositionSize*100, limits.MaxPositionSize))
	}

	if snapshot.TotalValue > 0 {
		concentration := prospectiveValue / snapshot.TotalValue
		if concentration > limits.MaxPortfolioConcentration {
			violations = append(violations, newViolation(
				ViolationMaxConcentration,
				req.Symbol,
				fmt.Sprintf("prospective concentration %.1f%% exceeds limit %.1f%%", concentration*100, limits.MaxPortfolioConcentration*100),
				concentration,
				limits.MaxPortfolioConcentration,
			))
		} else if concentration > limits.MaxPortfolioConcentration*approachingThreshold {
			warnings = append(warnings, fmt.Sprintf(
				"%s concentration %.1f%% is approaching the %.1f%% limit",
				req.Symbol, concentration*100, limits.MaxPortfolioConcentration*100))
		}
	}

	return violations, warnings
}

// checkOrderDailyLoss applies the pre-trade daily loss proxy: the order
// is assumed to lose 5% of its notional immediately, and the result must
// stay within the daily loss limit.
func checkOrderDailyLoss(req *types.OrderRequest, price float64, snapshot *types.PortfolioSnapshot, limits types.RiskLimits) []RiskViolation {
	notional := req.Notional(price)
	projected := snapshot.DayPnL - 0.05*notional

	if projected < -limits.MaxDailyLoss {
		return []RiskViolation{newViolation(
			ViolationMaxDailyLoss,
			req.Symbol,
			fmt.Sprintf("projected daily loss $%.2f would exceed limit $%.2f", -projected, limits.MaxDailyLoss),
			-projected,
			limits.MaxDailyLoss,
		)}
	}
	return nil
}

// checkDailyLoss evaluates realized day P&L against the daily loss limit
func checkDailyLoss(snapshot *types.PortfolioSnapshot, limits types.RiskLimits) []RiskViolation {
	if snapshot.DayPnL < -limits.MaxDailyLoss {
		return []RiskViolation{newViolation(
			ViolationDailyLossExceeded,
			"",
			fmt.Sprintf("daily loss $%.2f exceeds limit $%.2f", -snapshot.DayPnL, limits.MaxDailyLoss),
			-snapshot.DayPnL,
			limits.MaxDailyLoss,
		)}
	}
	return nil
}

// checkStopLoss evaluates a position against the stop loss threshold.
// Long positions trigger when price falls to or below entry*(1-pct);
// short positions trigger when price rises to or above entry*(1+pct).
func checkStopLoss(pos *types.Position, limits types.RiskLimits) *RiskViolation {
	if limits.StopLossPercentage <= 0 || pos.Quantity == 0 {
		return nil
	}

	avgCost := pos.AverageCost()
	current := pos.CurrentPrice()
	if avgCost == 0 || current == 0 {
		return nil
	}

	var triggered bool
	var threshold float64
	if pos.IsLong() {
		threshold = avgCost * (1 - limits.StopLossPercentage)
		triggered = current <= threshold
	} else {
		threshold = avgCost * (1 + limits.StopLossPercentage)
		triggered = current >= threshold
	}

	if !triggered {
		return nil
	}

	v := newViolation(
		ViolationStopLossTriggered,
		pos.Symbol,
		fmt.Sprintf("price $%.2f breached stop level $%.2f (entry $%.2f)", current, threshold, avgCost),
		current,
		threshold,
	)
	return &v
}

// checkPositionLimits evaluates a held position against size and
// concentration limits during periodic monitoring.
func checkPositionLimits(pos *types.Position, snapshot *types.PortfolioSnapshot, limits types.RiskLimits) []RiskViolation {
	var violations []RiskViolation

	if pos.MarketValue > limits.MaxPositionSize {
		violations = append(violations, newViolation(
			ViolationMaxPositionSize,
			pos.Symbol,
			fmt.Sprintf("position value $%.2f exceeds max position size $%.2f", pos.MarketValue, limits.MaxPositionSize),
			pos.MarketValue,
			limits.MaxPositionSize,
		))
	}

	if snapshot.TotalValue > 0 {
		concentration := pos.MarketValue / snapshot.TotalValue
		if concentration > limits.MaxPortfolioConcentration {
			violations = append(violations, newViolation(
				ViolationMaxConcentration,
				pos.Symbol,
				fmt.Sprintf("concentration %.1f%% exceeds limit %.1f%%", concentration*100, limits.MaxPortfolioConcentration*100),
				concentration,
				limits.MaxPortfolioConcentration,
			))
		}
	}

	return violations
}

// ConcentrationMetrics summarizes how diversified the portfolio is
type ConcentrationMetrics struct {
	HHI                float64            `json:"hhi"` // Herfindahl-Hirschman index over position weights
	EffectivePositions float64            `json:"effective_positions"`
	LargestWeight      float64            `json:"largest_weight"`
	LargestSymbol      string             `json:"largest_symbol"`
	Weights            map[string]float64 `json:"weights"`
}

// measureConcentration computes portfolio concentration metrics from a
// snapshot. Weights are by absolute market value over total value.
func measureConcentration(snapshot *types.PortfolioSnapshot) ConcentrationMetrics {
	metrics := ConcentrationMetrics{Weights: make(map[string]float64)}
	if snapshot.TotalValue <= 0 {
		return metrics
	}

	for i := range snapshot.Positions {
		pos := &snapshot.Positions[i]
		weight := pos.MarketValue / snapshot.TotalValue
		metrics.Weights[pos.Symbol] = weight
		metrics.HHI += weight * weight
		if weight > metrics.LargestWeight {
			metrics.LargestWeight = weight
			metrics.LargestSymbol = pos.Symbol
		}
	}

	if metrics.HHI > 0 {
		metrics.EffectivePositions = 1 / metrics.HHI
	}
	return metrics
}

// DrawdownMetrics summarizes portfolio drawdown over observed history
type DrawdownMetrics struct {
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
	CurrentDrawdown float64 `json:"current_drawdown"` // fraction from peak
	MaxDrawdown     float64 `json:"max_drawdown"`
}

// measureDrawdown computes drawdown metrics over a sequence of total
// portfolio values, oldest first.
func measureDrawdown(history []float64) DrawdownMetrics {
	var metrics DrawdownMetrics
	if len(history) == 0 {
		return metrics
	}

	peak := history[0]
	for _, v := range history {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > metrics.MaxDrawdown {
				metrics.MaxDrawdown = dd
			}
		}
	}

	metrics.PeakValue = peak
	metrics.CurrentValue = history[len(history)-1]
	if peak > 0 {
		metrics.CurrentDrawdown = (peak - metrics.CurrentValue) / peak
	}
	return metrics
}

// checkDrawdown evaluates the current drawdown against the limit
func checkDrawdown(metrics DrawdownMetrics, limits types.RiskLimits) []RiskViolation {
	if limits.MaxDrawdown <= 0 {
		return nil
	}
	if metrics.CurrentDrawdown > limits.MaxDrawdown {
		return []RiskViolation{newViolation(
			ViolationMaxDrawdown,
			"",
			fmt.Sprintf("drawdown %.1f%% from peak $%.2f exceeds limit %.1f%%",
				metrics.CurrentDrawdown*100, metrics.PeakValue, limits.MaxDrawdown*100),
			metrics.CurrentDrawdown,
			limits.MaxDrawdown,
		)}
	}
	return nil
}

// PositionSizeRecommendation is the output of volatility-based sizing
type PositionSizeRecommendation struct {
	Quantity        int     `json:"quantity"`
	LimitingFactor  string  `json:"limiting_factor"` // risk_budget, position_size, concentration
	DailyVolatility float64 `json:"daily_volatility"`
	StopDistance    float64 `json:"stop_distance"` // currency per share
}

// RecommendPositionSize sizes a new position from annualized volatility.
// The stop distance is two daily standard deviations; the quantity risks
// riskPerTrade of account value at that stop, capped by the position
// size and concentration limits.
func RecommendPositionSize(accountValue, price, annualVolatility, riskPerTrade float64, limits types.RiskLimits) PositionSizeRecommendation {
	rec := PositionSizeRecommendation{LimitingFactor: "risk_budget"}
	if price <= 0 || accountValue <= 0 {
		return rec
	}
	if riskPerTrade <= 0 {
		riskPerTrade = 0.01
	}

	rec.DailyVolatility = annualVolatility / math.Sqrt(tradingDaysPerYear)
	rec.StopDistance = 2 * rec.DailyVolatility * price
	if rec.StopDistance <= 0 {
		// no volatility estimate; fall back to the stop loss percentage
		rec.StopDistance = limits.StopLossPercentage * price
	}
	if rec.StopDistance <= 0 {
		return rec
	}

	byRisk := accountValue * riskPerTrade / rec.StopDistance
	byPositionSize := limits.MaxPositionSize / price
	byConcentration := accountValue * limits.MaxPortfolioConcentration / price

	qty := byRisk
	if byPositionSize < qty {
		qty = byPositionSize
		rec.LimitingFactor = "position_size"
	}
	if byConcentration < qty {
		qty = byConcentration
		rec.LimitingFactor = "concentration"
	}

	rec.Quantity = int(math.Floor(qty))
	return rec
}
