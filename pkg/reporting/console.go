package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantfold/execution-engine/pkg/types"
)

// ConsoleReporter renders engine state and session summaries to stdout
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintStartupInfo prints the engine configuration at startup
func (r *ConsoleReporter) PrintStartupInfo(engineName, gatewayName string, limits types.RiskLimits) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("EXECUTION ENGINE")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🏷  Engine", engineName},
		{"🏪 Gateway", gatewayName},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"📏 Max Position Size", fmt.Sprintf("$%.2f", limits.MaxPositionSize)},
		{"📊 Max Concentration", fmt.Sprintf("%.1f%%", limits.MaxPortfolioConcentration*100)},
		{"📉 Max Daily Loss", fmt.Sprintf("$%.2f", limits.MaxDailyLoss)},
		{"📉 Max Drawdown", fmt.Sprintf("%.1f%%", limits.MaxDrawdown*100)},
		{"🛑 Stop Loss", fmt.Sprintf("%.1f%%", limits.StopLossPercentage*100)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 35, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintSessionSummary prints the end-of-session report
func (r *ConsoleReporter) PrintSessionSummary(report *SessionReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("SESSION SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"⏰ Duration", report.SessionDuration().Round(1e9).String()},
		{"🔄 Total Orders", report.Execution.TotalOrders},
		{"✅ Successful", report.Execution.SuccessfulOrders},
		{"❌ Failed", report.Execution.FailedOrders},
		{"🚫 Cancelled", report.Execution.CancelledOrders},
		{"📊 Success Rate", fmt.Sprintf("%.1f%%", report.Execution.SuccessRate()*100)},
		{"⚡ Avg Exec Time", report.Execution.AvgExecutionTime().String()},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"🛡  Orders Evaluated", report.Risk.OrdersEvaluated},
		{"🛡  Orders Blocked", report.Risk.OrdersBlocked},
		{"🛡  Orders Modified", report.Risk.OrdersModified},
		{"🛡  Block Rate", fmt.Sprintf("%.1f%%", report.Risk.BlockRate()*100)},
		{"🤖 Auto Actions", report.Risk.AutomaticActionsTaken},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 15, WidthMax: 25, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()

	if report.FinalSnapshot != nil {
		r.PrintPositions(report.FinalSnapshot)
	}
}

// PrintPositions prints the current portfolio state
func (r *ConsoleReporter) PrintPositions(snapshot *types.PortfolioSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("PORTFOLIO")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Symbol", "Qty", "Market Value", "Avg Cost", "Unrealized P&L", "Day P&L"})

	for i := range snapshot.Positions {
		pos := &snapshot.Positions[i]
		t.AppendRow(table.Row{
			pos.Symbol,
			pos.Quantity,
			fmt.Sprintf("$%.2f", pos.MarketValue),
			fmt.Sprintf("$%.2f", pos.AverageCost()),
			fmt.Sprintf("$%.2f", pos.UnrealizedPnL),
			fmt.Sprintf("$%.2f", pos.DayPnL),
		})
	}

	t.AppendFooter(table.Row{
		"TOTAL", "",
		fmt.Sprintf("$%.2f", snapshot.TotalValue),
		"",
		fmt.Sprintf("$%.2f", snapshot.TotalPnL),
		fmt.Sprintf("$%.2f", snapshot.DayPnL),
	})

	t.Render()
	fmt.Println()
}
