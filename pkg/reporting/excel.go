package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelReporter writes session reports to an Excel workbook
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// excelStyles holds the style IDs reused across sheets
type excelStyles struct {
	Header   int
	Currency int
	Percent  int
}

// WriteSessionXLSX writes the session report to an Excel file with
// Summary, Orders and Violations sheets
func (r *ExcelReporter) WriteSessionXLSX(report *SessionReport, path string) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const ordersSheet = "Orders"
	const violationsSheet = "Violations"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	fx.NewSheet(ordersSheet)
	fx.NewSheet(violationsSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, report, styles); err != nil {
		return err
	}
	if err := r.writeOrdersSheet(fx, ordersSheet, report, styles); err != nil {
		return err
	}
	if err := r.writeViolationsSheet(fx, violationsSheet, report, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.Header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Currency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7, // $ currency
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Percent, err = fx.NewStyle(&excelize.Style{
		NumFmt: 9, // percentage
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, report *SessionReport, styles excelStyles) error {
	rows := [][]interface{}{
		{"Engine", report.EngineName},
		{"Gateway", report.GatewayName},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05")},
		{"Ended", report.EndedAt.Format("2006-01-02 15:04:05")},
		{"Duration", report.SessionDuration().String()},
		{},
		{"Total Orders", report.Execution.TotalOrders},
		{"Successful Orders", report.Execution.SuccessfulOrders},
		{"Failed Orders", report.Execution.FailedOrders},
		{"Cancelled Orders", report.Execution.CancelledOrders},
		{"Success Rate", report.Execution.SuccessRate()},
		{"Avg Execution Time", report.Execution.AvgExecutionTime().String()},
		{},
		{"Orders Evaluated", report.Risk.OrdersEvaluated},
		{"Orders Blocked", report.Risk.OrdersBlocked},
		{"Orders Modified", report.Risk.OrdersModified},
		{"Block Rate", report.Risk.BlockRate()},
		{"Automatic Actions", report.Risk.AutomaticActionsTaken},
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	// percent format on the rate rows
	fx.SetCellStyle(sheet, "B11", "B11", styles.Percent)
	fx.SetCellStyle(sheet, "B17", "B17", styles.Percent)

	fx.SetColWidth(sheet, "A", "A", 22)
	fx.SetColWidth(sheet, "B", "B", 24)
	return nil
}

func (r *ExcelReporter) writeOrdersSheet(fx *excelize.File, sheet string, report *SessionReport, styles excelStyles) error {
	headers := []interface{}{"Order ID", "Symbol", "Side", "Type", "Quantity", "Filled", "Avg Fill Price", "Limit Price", "Status", "Created", "Updated"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	fx.SetCellStyle(sheet, "A1", "K1", styles.Header)

	for i := range report.Orders {
		o := &report.Orders[i]
		row := []interface{}{
			o.OrderID,
			o.Symbol,
			string(o.Side),
			string(o.OrderType),
			o.Quantity,
			o.FilledQuantity,
			o.AvgFillPrice,
			o.LimitPrice,
			string(o.Status),
			o.CreatedAt.Format("2006-01-02 15:04:05"),
			o.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if n := len(report.Orders); n > 0 {
		fx.SetCellStyle(sheet, "G2", fmt.Sprintf("H%d", n+1), styles.Currency)
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "K", 14)
	return nil
}

func (r *ExcelReporter) writeViolationsSheet(fx *excelize.File, sheet string, report *SessionReport, styles excelStyles) error {
	headers := []interface{}{"Time", "Type", "Severity", "Symbol", "Observed", "Limit", "Action", "Message"}
	if err := fx.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	fx.SetCellStyle(sheet, "A1", "H1", styles.Header)

	for i := range report.Violations {
		v := &report.Violations[i]
		row := []interface{}{
			v.Timestamp.Format("2006-01-02 15:04:05"),
			string(v.Type),
			string(v.Severity),
			v.Symbol,
			v.ObservedValue,
			v.LimitValue,
			string(v.RecommendedAction),
			v.Message,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "G", 16)
	fx.SetColWidth(sheet, "H", "H", 60)
	return nil
}
