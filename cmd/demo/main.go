// Demo runs the execution pipeline against the in-memory paper gateway:
// a few orders across strategies, a forced stop-loss scenario and the
// end-of-session report. Useful for a quick smoke check without broker
// credentials.
package main

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/quantfold/execution-engine/cmd/common"
	"github.com/quantfold/execution-engine/internal/broker"
	"github.com/quantfold/execution-engine/internal/executor"
	"github.com/quantfold/execution-engine/internal/logger"
	"github.com/quantfold/execution-engine/internal/risk"
	"github.com/quantfold/execution-engine/pkg/reporting"
	"github.com/quantfold/execution-engine/pkg/types"
)

func main() {
	flags := common.RegisterCommonFlags()
	flag.Parse()
	flags.Apply()

	if *flags.Version {
		common.PrintVersion("execution-engine-demo")
		return
	}

	common.Header("Execution Engine Demo")

	ctx := context.Background()
	startedAt := time.Now().UTC()

	pg := broker.NewPaperGateway(&broker.PaperConfig{InitialCapital: 250_000})
	pg.SetQuote(types.Quote{Symbol: "AAPL", Bid: 189.95, Ask: 190.05, AverageVolume: 50_000_000})
	pg.SetQuote(types.Quote{Symbol: "MSFT", Bid: 415.80, Ask: 416.20, AverageVolume: 20_000_000})
	pg.SetQuote(types.Quote{Symbol: "TINY", Bid: 9.90, Ask: 10.10, AverageVolume: 40_000})

	log, err := logger.NewLogger("demo")
	if err != nil {
		common.Error("Failed to create logger: %v", err)
		return
	}
	defer log.Close()

	limits := types.DefaultRiskLimits()
	riskCtrl := risk.NewController(pg, pg, log, risk.ControllerConfig{
		Limits:          limits,
		AutoRemediation: true,
	})
	exec := executor.NewExecutor(pg, pg, riskCtrl, log, executor.Config{
		OrderPollInterval: 500 * time.Millisecond,
	})

	var violations []risk.RiskViolation
	riskCtrl.RegisterRiskCallback(func(v risk.RiskViolation) {
		violations = append(violations, v)
		common.Warn("Risk violation: %s [%s] %s", v.Type, v.Severity, v.Message)
	})

	var completedMu sync.Mutex
	var completed []types.Order
	recordCompleted := func(o *types.Order) {
		if !o.IsTerminal() {
			return
		}
		completedMu.Lock()
		completed = append(completed, *o)
		completedMu.Unlock()
		common.Info("Order %s reached %s (filled %d @ %s)", o.OrderID, o.Status, o.FilledQuantity, common.FormatCurrency(o.AvgFillPrice))
	}

	console := reporting.NewConsoleReporter()
	console.PrintStartupInfo("demo", pg.GetName(), limits)

	requests := []*types.OrderRequest{
		{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 100, OrderType: types.OrderTypeMarket, Strategy: types.StrategyImmediate},
		{Symbol: "MSFT", Side: types.OrderSideBuy, Quantity: 50, OrderType: types.OrderTypeLimit, LimitPrice: 416.50, Strategy: types.StrategySmart},
		{Symbol: "TINY", Side: types.OrderSideBuy, Quantity: 8000, OrderType: types.OrderTypeLimit, LimitPrice: 10.10, Strategy: types.StrategySmart},
		{Symbol: "AAPL", Side: types.OrderSideBuy, Quantity: 5000, OrderType: types.OrderTypeLimit, LimitPrice: 190.00, Strategy: types.StrategyImmediate},
	}

	for _, req := range requests {
		result, err := exec.ExecuteOrder(ctx, req)
		if err != nil {
			common.Error("Order %s %s rejected: %v", req.Side, req.Symbol, err)
			continue
		}
		if !result.Success {
			common.Warn("Order %s %s failed: %s", req.Side, req.Symbol, result.Error)
			continue
		}
		common.Success("Order %s accepted via %s strategy", result.Order.OrderID, result.Strategy)
		for _, w := range result.Warnings {
			common.Info("  note: %s", w)
		}
		if result.Order.IsTerminal() {
			recordCompleted(result.Order)
		} else {
			exec.RegisterExecutionCallback(result.Order.OrderID, recordCompleted)
		}
	}

	// crash AAPL to trip the stop loss during monitoring
	pg.SetQuote(types.Quote{Symbol: "AAPL", Bid: 170.00, Ask: 170.10, AverageVolume: 50_000_000})
	if _, err := riskCtrl.MonitorPortfolioRisk(ctx); err != nil {
		common.Error("Monitoring cycle failed: %v", err)
	}

	// let the poll loop settle fills and remediation orders
	time.Sleep(2 * time.Second)
	exec.Stop()

	snapshot, _ := broker.Snapshot(ctx, pg)
	report := &reporting.SessionReport{
		EngineName:    "demo",
		GatewayName:   pg.GetName(),
		StartedAt:     startedAt,
		EndedAt:       time.Now().UTC(),
		Execution:     exec.GetExecutionStatistics(),
		Risk:          riskCtrl.GetRiskStatistics(),
		Orders:        completed,
		Violations:    violations,
		FinalSnapshot: snapshot,
	}
	console.PrintSessionSummary(report)
}
