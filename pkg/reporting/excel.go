package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
)

// ExcelReporter exports the session trade log and metrics as a workbook
type ExcelReporter struct{}

// NewExcelReporter creates an Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// excelStyles holds the workbook style IDs
type excelStyles struct {
	Header   int
	Currency int
	Percent  int
}

// WriteSessionXLSX writes the session report to an .xlsx workbook with
// Trades, Metrics and Alerts sheets
func (r *ExcelReporter) WriteSessionXLSX(report *SessionReport, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const metricsSheet = "Metrics"
	const alertsSheet = "Alerts"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	fx.NewSheet(metricsSheet)
	fx.NewSheet(alertsSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, report, styles); err != nil {
		return err
	}
	if err := r.writeMetricsSheet(fx, metricsSheet, report, styles); err != nil {
		return err
	}
	if err := r.writeAlertsSheet(fx, alertsSheet, report, styles); err != nil {
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
		NumFmt: 7,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Percent, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, report *SessionReport, styles excelStyles) error {
	headers := []string{"Time", "Symbol", "Side", "Strategy", "Notional", "PnL", "Status", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", mustColumnName(len(headers))+"1", styles.Header); err != nil {
		return err
	}

	for i, trade := range report.Trades {
		row := i + 2
		status := "executed"
		if !trade.Success {
			status = "failed"
		}
		values := []interface{}{
			trade.Timestamp.Format("2006-01-02 15:04:05"),
			trade.Symbol,
			trade.Side,
			trade.Strategy,
			trade.Notional,
			trade.PnL,
			status,
			trade.Reason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		fx.SetCellStyle(sheet, fmt.Sprintf("E%d", row), fmt.Sprintf("F%d", row), styles.Currency)
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "D", 14)
	fx.SetColWidth(sheet, "H", "H", 45)
	return nil
}

func (r *ExcelReporter) writeMetricsSheet(fx *excelize.File, sheet string, report *SessionReport, styles excelStyles) error {
	m := report.Metrics

	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Session", report.SessionID, 0},
		{"Duration", report.Duration().String(), 0},
		{"End Reason", report.EndReason, 0},
		{"Initial Balance", report.InitialBalance, styles.Currency},
		{"Final Equity", report.Snapshot.Equity, styles.Currency},
		{"Realized PnL", m.RealizedPnL, styles.Currency},
		{"Total Return", report.TotalReturnPercent() / 100, styles.Percent},
		{"Total Trades", m.TotalTrades, 0},
		{"Failed Trades", m.FailedTrades, 0},
		{"Win Rate", m.WinRate, styles.Percent},
		{"Trades Per Hour", m.TradesPerHour, 0},
		{"Max Drawdown", m.MaxDrawdown, styles.Percent},
		{"Final Drawdown", m.CurrentDrawdown, styles.Percent},
		{"VaR 95%", m.ValueAtRisk95, styles.Percent},
	}

	if err := fx.SetCellValue(sheet, "A1", "Metric"); err != nil {
		return err
	}
	fx.SetCellValue(sheet, "B1", "Value")
	fx.SetCellStyle(sheet, "A1", "B1", styles.Header)

	for i, row := range rows {
		fx.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), row.label)
		fx.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), row.value)
		if row.style != 0 {
			fx.SetCellStyle(sheet, fmt.Sprintf("B%d", i+2), fmt.Sprintf("B%d", i+2), row.style)
		}
	}

	// Per-strategy attribution below the summary block
	base := len(rows) + 3
	fx.SetCellValue(sheet, fmt.Sprintf("A%d", base), "Strategy")
	fx.SetCellValue(sheet, fmt.Sprintf("B%d", base), "Realized PnL")
	fx.SetCellStyle(sheet, fmt.Sprintf("A%d", base), fmt.Sprintf("B%d", base), styles.Header)

	names := make([]string, 0, len(m.StrategyPnL))
	for name := range m.StrategyPnL {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		fx.SetCellValue(sheet, fmt.Sprintf("A%d", base+i+1), name)
		fx.SetCellValue(sheet, fmt.Sprintf("B%d", base+i+1), m.StrategyPnL[name])
		fx.SetCellStyle(sheet, fmt.Sprintf("B%d", base+i+1), fmt.Sprintf("B%d", base+i+1), styles.Currency)
	}

	fx.SetColWidth(sheet, "A", "A", 22)
	fx.SetColWidth(sheet, "B", "B", 24)
	return nil
}

func (r *ExcelReporter) writeAlertsSheet(fx *excelize.File, sheet string, report *SessionReport, styles excelStyles) error {
	headers := []string{"Time", "Level", "Category", "Message", "Acknowledged"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	fx.SetCellStyle(sheet, "A1", "E1", styles.Header)

	for i, a := range report.Alerts {
		row := i + 2
		values := []interface{}{
			a.Timestamp.Format("2006-01-02 15:04:05"),
			string(a.Level),
			a.Category,
			a.Message,
			a.Acknowledged,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "D", "D", 60)
	return nil
}

func mustColumnName(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}
