package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantfold/execution-engine/internal/broker"
	"github.com/quantfold/execution-engine/internal/logger"
	"github.com/quantfold/execution-engine/pkg/types"
)

// snapshotHistoryLimit caps the portfolio value history kept for
// drawdown monitoring.
const snapshotHistoryLimit = 2880 // ~24h at the default 30s interval

// ControllerConfig holds the configuration for the risk controller
type ControllerConfig struct {
	Limits             types.RiskLimits
	MonitorInterval    time.Duration // default 30s
	ErrorInterval      time.Duration // interval after a failed cycle, default 60s
	AutoRemediation    bool
	QuoteFallbackPrice float64
}

// Controller enforces pre-trade risk controls and runs continuous
// position monitoring. Every evaluation fails closed: an internal error
// during evaluation denies the order rather than letting it through.
type Controller struct {
	gateway    broker.Gateway
	marketData broker.MarketData
	logger     *logger.Logger

	monitorInterval    time.Duration
	errorInterval      time.Duration
	autoRemediation    bool
	quoteFallbackPrice float64

	// mu guards halted, haltReason and limits together so a halt check
	// and a limit read always see one consistent state.
	mu         sync.RWMutex
	halted     bool
	haltReason string
	limits     types.RiskLimits

	callbackMu sync.RWMutex
	callbacks  []func(RiskViolation)

	statsMu sync.Mutex
	stats   RiskStats

	historyMu    sync.Mutex
	valueHistory []float64

	loopMu  sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewController creates a risk controller over the given gateway
func NewController(gateway broker.Gateway, marketData broker.MarketData, log *logger.Logger, cfg ControllerConfig) *Controller {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 30 * time.Second
	}
	if cfg.ErrorInterval <= 0 {
		cfg.ErrorInterval = 60 * time.Second
	}
	if cfg.QuoteFallbackPrice <= 0 {
		cfg.QuoteFallbackPrice = 100.0
	}
	if cfg.Limits == (types.RiskLimits{}) {
		cfg.Limits = types.DefaultRiskLimits()
	}

	return &Controller{
		gateway:            gateway,
		marketData:         marketData,
		logger:             log,
		monitorInterval:    cfg.MonitorInterval,
		errorInterval:      cfg.ErrorInterval,
		autoRemediation:    cfg.AutoRemediation,
		quoteFallbackPrice: cfg.QuoteFallbackPrice,
		limits:             cfg.Limits,
		stats:              RiskStats{ViolationsByType: make(map[ViolationType]int)},
	}
}

// RegisterRiskCallback registers a function invoked for every violation
// detected during pre-trade evaluation or monitoring.
func (c *Controller) RegisterRiskCallback(fn func(RiskViolation)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// HaltTrading flips the halt switch; all subsequent orders are denied
// until ResumeTrading is called.
func (c *Controller) HaltTrading(reason string) {
	c.mu.Lock()
	already := c.halted
	c.halted = true
	c.haltReason = reason
	c.mu.Unlock()

	if !already && c.logger != nil {
		c.logger.LogHalt(true, reason)
	}
}

// ResumeTrading clears the halt switch
func (c *Controller) ResumeTrading() {
	c.mu.Lock()
	wasHalted := c.halted
	reason := c.haltReason
	c.halted = false
	c.haltReason = ""
	c.mu.Unlock()

	if wasHalted && c.logger != nil {
		c.logger.LogHalt(false, fmt.Sprintf("operator resume (was: %s)", reason))
	}
}

// IsHalted reports whether trading is currently halted
func (c *Controller) IsHalted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.halted
}

// SetRiskLimits atomically replaces the active limits. In-flight
// evaluations finish with the limits they started with.
func (c *Controller) SetRiskLimits(limits types.RiskLimits) {
	c.mu.Lock()
	c.limits = limits
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Risk("Risk limits updated: max_position=$%.2f concentration=%.1f%% daily_loss=$%.2f drawdown=%.1f%% stop_loss=%.1f%%",
			limits.MaxPositionSize, limits.MaxPortfolioConcentration*100, limits.MaxDailyLoss,
			limits.MaxDrawdown*100, limits.StopLossPercentage*100)
	}
}

// GetRiskLimits returns the active limits
func (c *Controller) GetRiskLimits() types.RiskLimits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

// GetRiskStatistics returns a copy of the session statistics
func (c *Controller) GetRiskStatistics() RiskStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	out := c.stats
	out.ViolationsByType = make(map[ViolationType]int, len(c.stats.ViolationsByType))
	for k, v := range c.stats.ViolationsByType {
		out.ViolationsByType[k] = v
	}
	return out
}

// ValidateOrder runs the full pre-trade risk evaluation. It never
// returns an error: any internal failure produces a denied result with
// a single critical violation.
func (c *Controller) ValidateOrder(ctx context.Context, req *types.OrderRequest) *RiskControlResult {
	c.statsMu.Lock()
	c.stats.OrdersEvaluated++
	c.statsMu.Unlock()

	c.mu.RLock()
	halted := c.halted
	haltReason := c.haltReason
	limits := c.limits
	c.mu.RUnlock()

	result := &RiskControlResult{EvaluatedAt: time.Now().UTC()}

	if halted {
		result.Violations = append(result.Violations, newViolation(
			ViolationTradingHalted, req.Symbol,
			fmt.Sprintf("trading is halted: %s", haltReason), 0, 0))
		return c.finishEvaluation(result)
	}

	account, err := c.gateway.GetAccountInfo(ctx)
	if err != nil {
		return c.finishEvaluation(c.denyOnError("validate_order", err, result))
	}
	if account.TradingBlocked {
		result.Violations = append(result.Violations, newViolation(
			ViolationAccountTradingBlocked, req.Symbol,
			"trading is blocked at the account level", 0, 0))
		return c.finishEvaluation(result)
	}

	snapshot, err := broker.Snapshot(ctx, c.gateway)
	if err != nil {
		return c.finishEvaluation(c.denyOnError("validate_order", err, result))
	}

	price := c.resolvePrice(ctx, req)

	sizeViolations, warnings := checkPositionSize(req, price, snapshot, limits)
	result.Violations = append(result.Violations, sizeViolations...)
	result.Warnings = append(result.Warnings, warnings...)
	result.Violations = append(result.Violations, checkOrderDailyLoss(req, price, snapshot, limits)...)

	// Medium violations never block on their own: the order is approved
	// with the violation surfaced, shrunk when a limit price allows it.
	result.Approved = !result.HasBlockingViolations()

	if result.Approved && len(result.Violations) > 0 {
		c.attemptModification(req, snapshot, limits, result)
		for i := range result.Violations {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"approved with %s violation: %s", result.Violations[i].Type, result.Violations[i].Message))
		}
	}

	return c.finishEvaluation(result)
}

// resolvePrice returns the reference price for risk arithmetic: the
// limit price when present, otherwise a live quote, otherwise the
// configured fallback.
func (c *Controller) resolvePrice(ctx context.Context, req *types.OrderRequest) float64 {
	if req.LimitPrice > 0 {
		return req.LimitPrice
	}
	if c.marketData != nil {
		if quote, err := c.marketData.GetQuote(ctx, req.Symbol); err == nil {
			if req.Side == types.OrderSideBuy && quote.Ask > 0 {
				return quote.Ask
			}
			if req.Side == types.OrderSideSell && quote.Bid > 0 {
				return quote.Bid
			}
			if mid := quote.MidPrice(); mid > 0 {
				return mid
			}
		}
	}
	return c.quoteFallbackPrice
}

// attemptModification shrinks an order carrying a medium-severity size
// violation to the largest quantity that fits both the position size
// and concentration limits. Only possible when the request carries a
// limit price to size against.
func (c *Controller) attemptModification(req *types.OrderRequest, snapshot *types.PortfolioSnapshot, limits types.RiskLimits, result *RiskControlResult) {
	if req.LimitPrice <= 0 {
		return
	}

	hasSizeViolation := false
	for i := range result.Violations {
		if result.Violations[i].Type == ViolationMaxPositionSize || result.Violations[i].Type == ViolationMaxConcentration {
			hasSizeViolation = true
			break
		}
	}
	if !hasSizeViolation {
		return
	}

	allowedValue := limits.MaxPositionSize
	if snapshot.TotalValue > 0 {
		if byConcentration := snapshot.TotalValue * limits.MaxPortfolioConcentration; byConcentration < allowedValue {
			allowedValue = byConcentration
		}
	}

	newQty := int(math.Floor(allowedValue / req.LimitPrice))
	if newQty <= 0 || newQty >= req.Quantity {
		return
	}

	modified := req.Clone()
	modified.Quantity = newQty
	result.ModifiedOrder = modified
	result.Warnings = append(result.Warnings, fmt.Sprintf(
		"order quantity reduced from %d to %d to satisfy position limits", req.Quantity, newQty))

	c.statsMu.Lock()
	c.stats.OrdersModified++
	c.statsMu.Unlock()

	if c.logger != nil {
		c.logger.Risk("Order modified: %s %s quantity %d -> %d", req.Side, req.Symbol, req.Quantity, newQty)
	}
}

// denyOnError converts an internal evaluation failure into a denied
// result carrying a single critical violation. Fail closed.
func (c *Controller) denyOnError(operation string, err error, result *RiskControlResult) *RiskControlResult {
	if c.logger != nil {
		c.logger.LogError(fmt.Sprintf("risk evaluation failed during %s", operation), err)
	}

	result.Approved = false
	result.Violations = []RiskViolation{newViolation(
		ViolationValidationError, "",
		fmt.Sprintf("risk evaluation failed: %v", err), 0, 0)}
	return result
}

// finishEvaluation records statistics and dispatches callbacks for the
// finished result
func (c *Controller) finishEvaluation(result *RiskControlResult) *RiskControlResult {
	if !result.Approved {
		c.statsMu.Lock()
		c.stats.OrdersBlocked++
		c.statsMu.Unlock()
	}

	for i := range result.Violations {
		c.recordViolation(result.Violations[i])
	}
	return result
}

// recordViolation updates statistics, logs the violation and notifies
// registered callbacks
func (c *Controller) recordViolation(v RiskViolation) {
	c.statsMu.Lock()
	c.stats.ViolationsByType[v.Type]++
	c.statsMu.Unlock()

	if c.logger != nil {
		c.logger.LogRiskViolation(string(v.Type), string(v.Severity), v.Symbol, v.Message, v.ObservedValue, v.LimitValue)
	}

	c.callbackMu.RLock()
	callbacks := make([]func(RiskViolation), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.callbackMu.RUnlock()

	for _, fn := range callbacks {
		fn(v)
	}
}

// MonitorPositionRisk evaluates a single held position at a
// caller-supplied live price: stop loss, position size and
// concentration. Returns nil when no position is held in the symbol.
// Detected violations are recorded and remediated like those found by
// the portfolio cycle.
func (c *Controller) MonitorPositionRisk(ctx context.Context, symbol string, currentPrice float64) ([]RiskViolation, error) {
	snapshot, err := broker.Snapshot(ctx, c.gateway)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot portfolio: %w", err)
	}

	pos := snapshot.GetPosition(symbol)
	if pos == nil {
		return nil, nil
	}

	if currentPrice > 0 {
		repriced := *pos
		repriced.MarketValue = math.Abs(float64(pos.Quantity)) * currentPrice
		repriced.UnrealizedPnL = float64(pos.Quantity)*currentPrice - pos.CostBasis
		pos = &repriced
	}

	violations := evaluatePosition(pos, snapshot, c.GetRiskLimits())
	c.handleViolations(ctx, violations)
	return violations, nil
}

// MonitorPortfolioRisk runs one monitoring cycle: stop loss and limit
// checks per position, portfolio daily loss, concentration and drawdown.
// High and critical violations trigger automatic remediation when
// enabled.
func (c *Controller) MonitorPortfolioRisk(ctx context.Context) ([]RiskViolation, error) {
	snapshot, err := broker.Snapshot(ctx, c.gateway)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot portfolio: %w", err)
	}

	limits := c.GetRiskLimits()
	c.recordPortfolioValue(snapshot.TotalValue)

	var violations []RiskViolation

	for i := range snapshot.Positions {
		violations = append(violations, evaluatePosition(&snapshot.Positions[i], snapshot, limits)...)
	}

	violations = append(violations, checkDailyLoss(snapshot, limits)...)

	concentration := measureConcentration(snapshot)
	if concentration.LargestWeight > limits.MaxPortfolioConcentration {
		// per-position concentration is already reported above; log the
		// portfolio-level shape for the session record
		if c.logger != nil {
			c.logger.Risk("Concentration: HHI=%.4f effective_positions=%.1f largest=%s (%.1f%%)",
				concentration.HHI, concentration.EffectivePositions,
				concentration.LargestSymbol, concentration.LargestWeight*100)
		}
	}

	violations = append(violations, checkDrawdown(c.drawdownMetrics(), limits)...)

	c.handleViolations(ctx, violations)
	return violations, nil
}

// evaluatePosition runs the per-position monitoring checks
func evaluatePosition(pos *types.Position, snapshot *types.PortfolioSnapshot, limits types.RiskLimits) []RiskViolation {
	var violations []RiskViolation
	if v := checkStopLoss(pos, limits); v != nil {
		violations = append(violations, *v)
	}
	return append(violations, checkPositionLimits(pos, snapshot, limits)...)
}

// handleViolations records each violation and triggers automatic
// remediation for blocking ones when enabled
func (c *Controller) handleViolations(ctx context.Context, violations []RiskViolation) {
	for i := range violations {
		c.recordViolation(violations[i])

		if violations[i].IsBlocking() && c.autoRemediation {
			if ok := c.ExecuteAutomaticRiskAction(ctx, violations[i]); !ok && c.logger != nil {
				c.logger.Warning("automatic risk action %s failed for %s",
					violations[i].RecommendedAction, violations[i].Symbol)
			}
		}
	}
}

// ExecuteAutomaticRiskAction carries out the remediation recommended by
// a violation. Returns false when a required gateway call fails.
func (c *Controller) ExecuteAutomaticRiskAction(ctx context.Context, v RiskViolation) bool {
	c.statsMu.Lock()
	c.stats.AutomaticActionsTaken++
	c.statsMu.Unlock()

	switch v.RecommendedAction {
	case ActionClosePosition:
		return c.flattenPosition(ctx, v.Symbol, 1.0)
	case ActionReducePosition:
		return c.flattenPosition(ctx, v.Symbol, 0.5)
	case ActionStopTrading:
		c.HaltTrading(fmt.Sprintf("automatic halt: %s", v.Message))
		return true
	case ActionBlockOrder, ActionRebalance, ActionAlertOnly:
		if c.logger != nil {
			c.logger.Risk("Risk action %s for %s: %s", v.RecommendedAction, v.Symbol, v.Message)
		}
		return true
	default:
		return true
	}
}

// flattenPosition submits a market order closing the given fraction of
// the position. fraction 1.0 closes it entirely.
func (c *Controller) flattenPosition(ctx context.Context, symbol string, fraction float64) bool {
	positions, err := c.gateway.GetPositions(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.LogError("failed to fetch positions for remediation", err)
		}
		return false
	}

	var pos *types.Position
	for i := range positions {
		if positions[i].Symbol == symbol {
			pos = &positions[i]
			break
		}
	}
	if pos == nil || pos.Quantity == 0 {
		// position already gone; nothing to do
		return true
	}

	qty := int(math.Abs(float64(pos.Quantity)) * fraction)
	if qty <= 0 {
		qty = 1
	}

	side := types.OrderSideSell
	if pos.IsShort() {
		side = types.OrderSideBuy
	}

	order, err := c.gateway.SubmitOrder(ctx, broker.SubmitParams{
		Symbol:      symbol,
		Quantity:    qty,
		Side:        side,
		OrderType:   types.OrderTypeMarket,
		TimeInForce: types.TimeInForceDay,
	})
	if err != nil {
		if c.logger != nil {
			c.logger.LogError(fmt.Sprintf("remediation order for %s failed", symbol), err)
		}
		return false
	}

	if c.logger != nil {
		c.logger.Risk("Remediation order %s: %s %d %s at market", order.OrderID, side, qty, symbol)
	}
	return true
}

// recordPortfolioValue appends a total value observation for drawdown
// monitoring, bounded by snapshotHistoryLimit
func (c *Controller) recordPortfolioValue(value float64) {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()

	c.valueHistory = append(c.valueHistory, value)
	if len(c.valueHistory) > snapshotHistoryLimit {
		c.valueHistory = c.valueHistory[len(c.valueHistory)-snapshotHistoryLimit:]
	}
}

func (c *Controller) drawdownMetrics() DrawdownMetrics {
	c.historyMu.Lock()
	history := make([]float64, len(c.valueHistory))
	copy(history, c.valueHistory)
	c.historyMu.Unlock()

	return measureDrawdown(history)
}

// GetConcentrationMetrics computes concentration metrics from a fresh
// snapshot
func (c *Controller) GetConcentrationMetrics(ctx context.Context) (ConcentrationMetrics, error) {
	snapshot, err := broker.Snapshot(ctx, c.gateway)
	if err != nil {
		return ConcentrationMetrics{}, err
	}
	return measureConcentration(snapshot), nil
}

// GetDrawdownMetrics returns drawdown metrics over the observed history
func (c *Controller) GetDrawdownMetrics() DrawdownMetrics {
	return c.drawdownMetrics()
}

// Start launches the background monitoring loop. The loop runs a cycle
// every MonitorInterval, stretching to ErrorInterval after a failed
// cycle. Safe to call once; subsequent calls are no-ops.
func (c *Controller) Start(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.monitorLoop(ctx, c.stopCh, c.doneCh)

	if c.logger != nil {
		c.logger.Status("Risk monitoring started (interval %s)", c.monitorInterval)
	}
}

// Stop terminates the monitoring loop and waits for it to exit
func (c *Controller) Stop() {
	c.loopMu.Lock()
	if !c.running {
		c.loopMu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.loopMu.Unlock()

	<-done

	if c.logger != nil {
		c.logger.Status("Risk monitoring stopped")
	}
}

func (c *Controller) monitorLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(c.monitorInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timer.C:
		}

		interval := c.monitorInterval
		if _, err := c.MonitorPortfolioRisk(ctx); err != nil {
			if c.logger != nil {
				c.logger.LogError("risk monitoring cycle failed", err)
			}
			interval = c.errorInterval
		}
		timer.Reset(interval)
	}
}
