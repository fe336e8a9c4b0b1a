package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quantfold/execution-engine/internal/broker"
	"github.com/quantfold/execution-engine/internal/errors"
	"github.com/quantfold/execution-engine/internal/logger"
	"github.com/quantfold/execution-engine/internal/risk"
	"github.com/quantfold/execution-engine/pkg/types"
)

const (
	// iceberg slices: a quarter of the order, capped per child
	icebergSliceDivisor = 4
	icebergMaxChildQty  = 1000

	// smart routing thresholds
	volumeParticipationLimit = 0.05  // of average volume
	volatileSpreadFraction   = 0.001 // spread/mid above this counts as volatile
	limitConcession          = 0.001 // price concession when converting to limit
)

// Config holds the configuration for the order executor
type Config struct {
	DefaultTimeInForce   types.TimeInForce
	QuoteFallbackPrice   float64
	OrderPollInterval    time.Duration // default 5s
	OrderPollErrInterval time.Duration // interval after a failed poll, default 10s
}

// Executor routes order requests through validation, account gates and
// the risk controller, then submits them to the gateway using the
// requested execution strategy. Accepted orders are tracked and polled
// until they reach a terminal status.
type Executor struct {
	gateway    broker.Gateway
	marketData broker.MarketData
	riskCtrl   *risk.Controller
	logger     *logger.Logger

	defaultTIF      types.TimeInForce
	fallbackPrice   float64
	pollInterval    time.Duration
	pollErrInterval time.Duration

	mu           sync.Mutex
	activeOrders map[string]*types.Order
	pollRunning  bool
	stopCh       chan struct{}

	callbackMu sync.RWMutex
	callbacks  map[string][]func(*types.Order)

	statsMu sync.Mutex
	stats   ExecutionStats

	errStatsMu sync.Mutex
	errStats   *errors.ErrorStats
}

// NewExecutor creates an order executor over the given gateway and risk
// controller
func NewExecutor(gateway broker.Gateway, marketData broker.MarketData, riskCtrl *risk.Controller, log *logger.Logger, cfg Config) *Executor {
	if cfg.DefaultTimeInForce == "" {
		cfg.DefaultTimeInForce = types.TimeInForceDay
	}
	if cfg.QuoteFallbackPrice <= 0 {
		cfg.QuoteFallbackPrice = 100.0
	}
	if cfg.OrderPollInterval <= 0 {
		cfg.OrderPollInterval = 5 * time.Second
	}
	if cfg.OrderPollErrInterval <= 0 {
		cfg.OrderPollErrInterval = 10 * time.Second
	}

	return &Executor{
		gateway:         gateway,
		marketData:      marketData,
		riskCtrl:        riskCtrl,
		logger:          log,
		defaultTIF:      cfg.DefaultTimeInForce,
		fallbackPrice:   cfg.QuoteFallbackPrice,
		pollInterval:    cfg.OrderPollInterval,
		pollErrInterval: cfg.OrderPollErrInterval,
		activeOrders:    make(map[string]*types.Order),
		stopCh:          make(chan struct{}),
		callbacks:       make(map[string][]func(*types.Order)),
		errStats:        errors.NewErrorStats(20),
	}
}

// RegisterExecutionCallback registers a function invoked on every
// status change of the given order, including the final terminal
// update. Several callbacks may watch one order; all of them are
// discarded when the order reaches a terminal status.
func (e *Executor) RegisterExecutionCallback(orderID string, fn func(*types.Order)) {
	e.callbackMu.Lock()
	defer e.callbackMu.Unlock()
	e.callbacks[orderID] = append(e.callbacks[orderID], fn)
}

// ExecuteOrder runs the full order pipeline: validation, account gates,
// risk evaluation, strategy routing and gateway submission.
//
// Caller mistakes (validation failures, insufficient buying power, a
// blocked account) are returned as errors before any order reaches the
// gateway. Gateway submission failures are reported as an unsuccessful
// ExecutionResult, not an error.
func (e *Executor) ExecuteOrder(ctx context.Context, req *types.OrderRequest) (*ExecutionResult, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	req = req.Clone()
	if req.Strategy == "" {
		req.Strategy = types.StrategyImmediate
	}
	if req.TimeInForce == "" {
		req.TimeInForce = e.defaultTIF
	}

	e.statsMu.Lock()
	e.stats.TotalOrders++
	e.statsMu.Unlock()

	account, err := e.gateway.GetAccountInfo(ctx)
	if err != nil {
		return e.failResult(req, start, fmt.Errorf("failed to fetch account info: %w", err)), nil
	}
	if account.TradingBlocked {
		e.recordFailure()
		return nil, errors.NewTradingBlockedError(component, "execute_order",
			"trading is blocked at the account level")
	}

	if req.Side == types.OrderSideBuy {
		price := e.referencePrice(ctx, req)
		notional := req.Notional(price)
		if notional > account.BuyingPower {
			e.recordFailure()
			return nil, errors.NewInsufficientFundsError(component, "execute_order",
				fmt.Sprintf("order notional $%.2f exceeds buying power $%.2f", notional, account.BuyingPower))
		}
	}

	// a closed market is not a reason to reject: the order queues for
	// the next session
	var sessionWarnings []string
	if open, err := e.gateway.IsMarketOpen(ctx); err == nil && !open {
		warning := fmt.Sprintf("market is closed; %s order for %s will queue for the next session", req.Side, req.Symbol)
		if e.logger != nil {
			e.logger.Warning("%s", warning)
		}
		sessionWarnings = append(sessionWarnings, warning)
	}

	riskResult := e.riskCtrl.ValidateOrder(ctx, req)
	if !riskResult.Approved {
		reasons := make([]string, 0, len(riskResult.Violations))
		for i := range riskResult.Violations {
			reasons = append(reasons, riskResult.Violations[i].Message)
		}
		result := e.failResult(req, start, fmt.Errorf("blocked by risk controls: %s", strings.Join(reasons, "; ")))
		result.Warnings = riskResult.Warnings
		return result, nil
	}
	if riskResult.ModifiedOrder != nil {
		req = riskResult.ModifiedOrder
	}

	params, routed, routeWarnings := e.route(ctx, req)
	warnings := append(sessionWarnings, riskResult.Warnings...)
	warnings = append(warnings, routeWarnings...)

	order, err := e.gateway.SubmitOrder(ctx, params)
	if err != nil {
		result := e.failResult(req, start, fmt.Errorf("gateway submission failed: %w", err))
		result.Strategy = routed
		result.Warnings = warnings
		return result, nil
	}

	e.track(ctx, order)

	duration := time.Since(start)
	e.statsMu.Lock()
	e.stats.SuccessfulOrders++
	e.stats.TotalExecTime += duration
	if order.Status == types.OrderStatusPartiallyFilled {
		e.stats.PartialFills++
	}
	if order.IsTerminal() {
		e.stats.TotalFees += order.Fees
	}
	e.statsMu.Unlock()

	if e.logger != nil {
		e.logger.LogOrderExecution(order.OrderID, order.Symbol, string(order.Side),
			order.Quantity, order.FilledQuantity, order.AvgFillPrice, string(routed))
	}

	return &ExecutionResult{
		Success:     true,
		Order:       order,
		Request:     req,
		Strategy:    routed,
		Warnings:    warnings,
		SubmittedAt: start.UTC(),
		Duration:    duration,
	}, nil
}

// route translates the request into gateway submission parameters
// according to its execution strategy. TWAP and VWAP are not yet
// scheduled and fall back to immediate submission; iceberg submits only
// the first child slice.
func (e *Executor) route(ctx context.Context, req *types.OrderRequest) (broker.SubmitParams, types.ExecutionStrategy, []string) {
	params := broker.SubmitParams{
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		Side:        req.Side,
		OrderType:   req.OrderType,
		TimeInForce: req.TimeInForce,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
	}

	switch req.Strategy {
	case types.StrategySmart:
		return e.routeSmart(ctx, req, params)

	case types.StrategyIceberg:
		return e.routeIceberg(req, params)

	case types.StrategyTWAP, types.StrategyVWAP:
		warning := fmt.Sprintf("%s scheduling not available; submitting immediately", req.Strategy)
		if e.logger != nil {
			e.logger.Warning("%s", warning)
		}
		return params, types.StrategyImmediate, []string{warning}

	default:
		return params, types.StrategyImmediate, nil
	}
}

// routeSmart picks a tactic from current market conditions: large
// orders relative to average volume become iceberg orders, volatile
// markets convert market orders to limit orders with a small price
// concession, and calm markets submit as-is.
func (e *Executor) routeSmart(ctx context.Context, req *types.OrderRequest, params broker.SubmitParams) (broker.SubmitParams, types.ExecutionStrategy, []string) {
	if e.marketData == nil {
		return params, types.StrategyImmediate, nil
	}
	quote, err := e.marketData.GetQuote(ctx, req.Symbol)
	if err != nil {
		if e.logger != nil {
			e.logger.Warning("smart routing: no quote for %s, submitting immediately: %v", req.Symbol, err)
		}
		return params, types.StrategyImmediate, nil
	}

	if quote.AverageVolume > 0 && float64(req.Quantity) > volumeParticipationLimit*quote.AverageVolume {
		return e.routeIceberg(req, params)
	}

	mid := quote.MidPrice()
	if req.OrderType == types.OrderTypeMarket && mid > 0 && quote.Spread()/mid > volatileSpreadFraction {
		params.OrderType = types.OrderTypeLimit
		if req.Side == types.OrderSideBuy {
			params.LimitPrice = quote.Ask * (1 + limitConcession)
		} else {
			params.LimitPrice = quote.Bid * (1 - limitConcession)
		}
		warning := fmt.Sprintf("volatile market: converted to limit order at $%.2f", params.LimitPrice)
		return params, types.StrategySmart, []string{warning}
	}

	return params, types.StrategyImmediate, nil
}

// routeIceberg submits the first child slice of an iceberg order.
// Subsequent slices are released as earlier ones fill.
func (e *Executor) routeIceberg(req *types.OrderRequest, params broker.SubmitParams) (broker.SubmitParams, types.ExecutionStrategy, []string) {
	child := req.Quantity / icebergSliceDivisor
	if child > icebergMaxChildQty {
		child = icebergMaxChildQty
	}
	if child <= 0 {
		// order too small to slice; submit in full
		return params, types.StrategyImmediate, nil
	}

	params.Quantity = child
	warning := fmt.Sprintf("iceberg: submitted first child of %d shares (total %d)", child, req.Quantity)
	return params, types.StrategyIceberg, []string{warning}
}

// referencePrice returns the price used for the buying-power check
func (e *Executor) referencePrice(ctx context.Context, req *types.OrderRequest) float64 {
	if req.LimitPrice > 0 {
		return req.LimitPrice
	}
	if e.marketData != nil {
		if quote, err := e.marketData.GetQuote(ctx, req.Symbol); err == nil && quote.Ask > 0 {
			return quote.Ask
		}
	}
	return e.fallbackPrice
}

func (e *Executor) failResult(req *types.OrderRequest, start time.Time, err error) *ExecutionResult {
	e.recordFailure()
	e.recordError("execute_order", err)
	if e.logger != nil {
		e.logger.LogError(fmt.Sprintf("order execution failed for %s %s", req.Side, req.Symbol), err)
	}

	return &ExecutionResult{
		Success:     false,
		Request:     req,
		Strategy:    req.Strategy,
		Error:       err.Error(),
		SubmittedAt: start.UTC(),
		Duration:    time.Since(start),
	}
}

func (e *Executor) recordFailure() {
	e.statsMu.Lock()
	e.stats.FailedOrders++
	e.statsMu.Unlock()
}

// recordError categorizes a failure for the session error statistics
func (e *Executor) recordError(operation string, err error) {
	terr := errors.Categorize(err, component, operation)
	if terr == nil {
		return
	}
	e.errStatsMu.Lock()
	e.errStats.RecordError(terr)
	e.errStatsMu.Unlock()
}

// GetErrorStatistics returns a copy of the categorized error statistics
func (e *Executor) GetErrorStatistics() errors.ErrorStats {
	e.errStatsMu.Lock()
	defer e.errStatsMu.Unlock()

	out := *e.errStats
	out.ErrorsByCategory = make(map[errors.ErrorCategory]int, len(e.errStats.ErrorsByCategory))
	for k, v := range e.errStats.ErrorsByCategory {
		out.ErrorsByCategory[k] = v
	}
	out.RecentErrors = append([]*errors.TradingError(nil), e.errStats.RecentErrors...)
	return out
}

// CancelOrder attempts to cancel a tracked or broker-side order.
// Returns false when the cancellation fails for any reason.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) bool {
	if err := e.gateway.CancelOrder(ctx, orderID); err != nil {
		if e.logger != nil {
			e.logger.Warning("failed to cancel order %s: %v", orderID, err)
		}
		return false
	}

	e.statsMu.Lock()
	e.stats.CancelledOrders++
	e.statsMu.Unlock()

	// the poll loop picks up the terminal status on its next cycle;
	// refresh eagerly so callers see the cancellation immediately
	if order, err := e.gateway.GetOrder(ctx, orderID); err == nil {
		e.applyUpdate(order)
	}

	if e.logger != nil {
		e.logger.Trade("Order %s cancelled", orderID)
	}
	return true
}

// GetOrderStatus re-fetches the order from the gateway and merges the
// fresh state into local tracking, so callers never see a stale copy.
// Returns nil for orders the gateway has no record of.
func (e *Executor) GetOrderStatus(ctx context.Context, orderID string) (*types.Order, error) {
	order, err := e.gateway.GetOrder(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, broker.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, errors.NewOrderError(component, "get_order_status", err)
	}

	e.applyUpdate(order)

	copied := *order
	return &copied, nil
}

// GetActiveOrders returns copies of all non-terminal tracked orders
func (e *Executor) GetActiveOrders() []*types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]*types.Order, 0, len(e.activeOrders))
	for _, order := range e.activeOrders {
		copied := *order
		orders = append(orders, &copied)
	}
	return orders
}

// GetExecutionStatistics returns a copy of the session statistics
func (e *Executor) GetExecutionStatistics() ExecutionStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Stop terminates the status poll loop if it is running
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
}

// track registers an accepted order and lazily starts the poll loop.
// Orders already terminal at acknowledgement are dispatched and never
// tracked.
func (e *Executor) track(ctx context.Context, order *types.Order) {
	if order.IsTerminal() {
		e.dispatch(order)
		return
	}

	copied := *order

	e.mu.Lock()
	e.activeOrders[copied.OrderID] = &copied
	start := !e.pollRunning
	if start {
		e.pollRunning = true
	}
	e.mu.Unlock()

	if start {
		go e.pollLoop(ctx)
	}
}

// pollLoop refreshes tracked orders from the gateway until none remain.
// A failed cycle stretches the next poll to the error interval. The
// loop terminates itself once the tracking table empties; the next
// accepted order starts a new one.
func (e *Executor) pollLoop(ctx context.Context) {
	timer := time.NewTimer(e.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.pollRunning = false
			e.mu.Unlock()
			return
		case <-e.stopCh:
			e.mu.Lock()
			e.pollRunning = false
			e.mu.Unlock()
			return
		case <-timer.C:
		}

		interval := e.pollInterval
		if err := e.pollOnce(ctx); err != nil {
			e.recordError("poll_orders", err)
			if e.logger != nil {
				e.logger.LogError("order status poll failed", err)
			}
			interval = e.pollErrInterval
		}

		e.mu.Lock()
		if len(e.activeOrders) == 0 {
			e.pollRunning = false
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		timer.Reset(interval)
	}
}

// pollOnce refreshes every tracked order. Individual lookup failures
// are collected so one bad order never starves the rest.
func (e *Executor) pollOnce(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.activeOrders))
	for id := range e.activeOrders {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		order, err := e.gateway.GetOrder(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("order %s: %w", id, err)
			}
			continue
		}
		e.applyUpdate(order)
	}
	return firstErr
}

// applyUpdate merges a gateway-reported order state into the tracking
// table, dispatching callbacks on change and evicting terminal orders.
func (e *Executor) applyUpdate(order *types.Order) {
	e.mu.Lock()
	tracked, ok := e.activeOrders[order.OrderID]
	if !ok {
		e.mu.Unlock()
		return
	}

	changed := tracked.Status != order.Status || tracked.FilledQuantity != order.FilledQuantity
	if !changed {
		e.mu.Unlock()
		return
	}

	prevStatus := tracked.Status
	*tracked = *order
	if order.IsTerminal() {
		delete(e.activeOrders, order.OrderID)
	}
	e.mu.Unlock()

	e.statsMu.Lock()
	if order.Status == types.OrderStatusPartiallyFilled && prevStatus != types.OrderStatusPartiallyFilled {
		e.stats.PartialFills++
	}
	if order.IsTerminal() {
		e.stats.TotalFees += order.Fees
	}
	e.statsMu.Unlock()

	e.dispatch(order)
}

// dispatch invokes the callbacks watching this order with a copy of its
// state, discarding them once the order is terminal
func (e *Executor) dispatch(order *types.Order) {
	e.callbackMu.RLock()
	callbacks := make([]func(*types.Order), len(e.callbacks[order.OrderID]))
	copy(callbacks, e.callbacks[order.OrderID])
	e.callbackMu.RUnlock()

	for _, fn := range callbacks {
		copied := *order
		fn(&copied)
	}

	if order.IsTerminal() {
		e.callbackMu.Lock()
		delete(e.callbacks, order.OrderID)
		e.callbackMu.Unlock()
	}
}
