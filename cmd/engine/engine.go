package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantfold/execution-engine/internal/broker"
	"github.com/quantfold/execution-engine/internal/broker/bybit"
	"github.com/quantfold/execution-engine/internal/config"
	"github.com/quantfold/execution-engine/internal/executor"
	"github.com/quantfold/execution-engine/internal/logger"
	"github.com/quantfold/execution-engine/internal/monitoring"
	"github.com/quantfold/execution-engine/internal/risk"
	"github.com/quantfold/execution-engine/pkg/reporting"
	"github.com/quantfold/execution-engine/pkg/types"
)

// Engine wires the gateway, risk controller and executor together and
// keeps the session record used for the exit report.
type Engine struct {
	cfg        *config.Config
	gateway    broker.Gateway
	marketData broker.MarketData
	riskCtrl   *risk.Controller
	executor   *executor.Executor
	logger     *logger.Logger
	health     *monitoring.HealthChecker

	mu         sync.Mutex
	startedAt  time.Time
	orders     []types.Order
	violations []risk.RiskViolation
}

// NewEngine builds a fully wired engine from configuration
func NewEngine(cfg *config.Config, health *monitoring.HealthChecker) (*Engine, error) {
	gateway, marketData, err := buildGateway(cfg)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger("engine")
	if err != nil {
		return nil, fmt.Errorf("failed to create session logger: %w", err)
	}

	riskCtrl := risk.NewController(gateway, marketData, log, risk.ControllerConfig{
		Limits:             cfg.Risk.Limits,
		MonitorInterval:    cfg.Risk.MonitorInterval,
		ErrorInterval:      cfg.Risk.ErrorInterval,
		AutoRemediation:    cfg.Risk.AutoRemediation,
		QuoteFallbackPrice: cfg.Execution.QuoteFallbackPrice,
	})

	exec := executor.NewExecutor(gateway, marketData, riskCtrl, log, executor.Config{
		DefaultTimeInForce:   cfg.Execution.DefaultTimeInForce,
		QuoteFallbackPrice:   cfg.Execution.QuoteFallbackPrice,
		OrderPollInterval:    cfg.Execution.OrderPollInterval,
		OrderPollErrInterval: cfg.Execution.OrderPollErrInterval,
	})

	e := &Engine{
		cfg:        cfg,
		gateway:    gateway,
		marketData: marketData,
		riskCtrl:   riskCtrl,
		executor:   exec,
		logger:     log,
		health:     health,
		startedAt:  time.Now().UTC(),
	}

	riskCtrl.RegisterRiskCallback(e.onRiskViolation)

	return e, nil
}

// buildGateway selects the brokerage backend from configuration
func buildGateway(cfg *config.Config) (broker.Gateway, broker.MarketData, error) {
	switch cfg.Broker.Name {
	case "paper":
		pg := broker.NewPaperGateway(&broker.PaperConfig{
			FallbackPrice: cfg.Execution.QuoteFallbackPrice,
		})
		return pg, pg, nil

	case "bybit":
		if cfg.Broker.APIKey == "" || cfg.Broker.Secret == "" {
			return nil, nil, fmt.Errorf("bybit gateway requires BROKER_API_KEY and BROKER_SECRET")
		}
		gw := bybit.NewGateway(bybit.Config{
			APIKey:    cfg.Broker.APIKey,
			APISecret: cfg.Broker.Secret,
			Testnet:   cfg.Broker.Testnet,
			Demo:      cfg.Broker.Demo,
		})
		return gw, gw, nil

	default:
		return nil, nil, fmt.Errorf("unknown broker %q (expected paper or bybit)", cfg.Broker.Name)
	}
}

// Start verifies gateway connectivity and launches risk monitoring
func (e *Engine) Start(ctx context.Context) error {
	if _, err := e.gateway.GetAccountInfo(ctx); err != nil {
		e.health.SetGatewayConnected(false)
		return fmt.Errorf("gateway connectivity check failed: %w", err)
	}
	e.health.SetGatewayConnected(true)

	e.riskCtrl.Start(ctx)
	e.logger.Status("Engine started on gateway %s", e.gateway.GetName())
	return nil
}

// ExecuteOrder runs an order through the full pipeline, recording
// metrics along the way
func (e *Engine) ExecuteOrder(ctx context.Context, req *types.OrderRequest) (*executor.ExecutionResult, error) {
	result, err := e.executor.ExecuteOrder(ctx, req)
	if err != nil {
		monitoring.RecordError("execution")
		return nil, err
	}

	outcome := "rejected"
	notional := 0.0
	if result.Success {
		outcome = "accepted"
		e.health.RecordOrder()
		if result.Order != nil && result.Order.AvgFillPrice > 0 {
			notional = float64(result.Order.FilledQuantity) * result.Order.AvgFillPrice
		}
		if result.Order != nil {
			if result.Order.IsTerminal() {
				e.onOrderUpdate(result.Order)
			} else {
				e.executor.RegisterExecutionCallback(result.Order.OrderID, e.onOrderUpdate)
			}
		}
	}
	monitoring.RecordOrder(string(result.Strategy), outcome, req.Symbol, notional, result.Duration.Seconds())
	monitoring.SetActiveOrders(len(e.executor.GetActiveOrders()))
	e.health.SetActiveOrders(len(e.executor.GetActiveOrders()))

	return result, nil
}

// CancelOrder cancels an order through the executor
func (e *Engine) CancelOrder(ctx context.Context, orderID string) bool {
	return e.executor.CancelOrder(ctx, orderID)
}

// onRiskViolation records each violation for metrics and the session
// report
func (e *Engine) onRiskViolation(v risk.RiskViolation) {
	monitoring.RecordRiskViolation(string(v.Type), string(v.Severity))
	monitoring.SetTradingHalted(e.riskCtrl.IsHalted())
	e.health.SetTradingHalted(e.riskCtrl.IsHalted())

	e.mu.Lock()
	e.violations = append(e.violations, v)
	e.mu.Unlock()
}

// onOrderUpdate tracks order lifecycle updates for the session report
func (e *Engine) onOrderUpdate(order *types.Order) {
	active := len(e.executor.GetActiveOrders())
	monitoring.SetActiveOrders(active)
	e.health.SetActiveOrders(active)

	if !order.IsTerminal() {
		return
	}

	e.mu.Lock()
	e.orders = append(e.orders, *order)
	e.mu.Unlock()
}

// Shutdown stops the loops and writes the end-of-session report
func (e *Engine) Shutdown(ctx context.Context) *reporting.SessionReport {
	e.executor.Stop()
	e.riskCtrl.Stop()

	report := e.buildReport(ctx)

	if es := e.executor.GetErrorStatistics(); es.TotalErrors > 0 {
		for category, count := range es.ErrorsByCategory {
			e.logger.Status("Session errors: %s=%d", category, count)
		}
	}
	e.logger.Status("Engine stopped: %d orders, %d violations",
		report.Execution.TotalOrders, len(report.Violations))
	e.logger.Close()

	return report
}

func (e *Engine) buildReport(ctx context.Context) *reporting.SessionReport {
	e.mu.Lock()
	orders := make([]types.Order, len(e.orders))
	copy(orders, e.orders)
	violations := make([]risk.RiskViolation, len(e.violations))
	copy(violations, e.violations)
	e.mu.Unlock()

	report := &reporting.SessionReport{
		EngineName:  "execution-engine",
		GatewayName: e.gateway.GetName(),
		StartedAt:   e.startedAt,
		EndedAt:     time.Now().UTC(),
		Execution:   e.executor.GetExecutionStatistics(),
		Risk:        e.riskCtrl.GetRiskStatistics(),
		Orders:      orders,
		Violations:  violations,
	}

	if snapshot, err := broker.Snapshot(ctx, e.gateway); err == nil {
		report.FinalSnapshot = snapshot
	}

	return report
}
