package reporting

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleReporter renders session output as rounded tables on stdout
type ConsoleReporter struct{}

// NewConsoleReporter creates a console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintStartupInfo prints the session parameters before trading begins
func (r *ConsoleReporter) PrintStartupInfo(sessionID string, symbols []string, initialBalance float64, tickInterval, duration string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADER INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🆔 Session", sessionID},
		{"📊 Symbols", strings.Join(symbols, ", ")},
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", initialBalance)},
		{"⏰ Tick Interval", tickInterval},
		{"⏳ Session Duration", duration},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintSessionSummary prints the end-of-session result tables
func (r *ConsoleReporter) PrintSessionSummary(report *SessionReport) {
	r.printPerformanceTable(report)
	r.printStrategyTable(report)
	r.printPositionsTable(report)
	r.printAlertsTable(report)
}

func (r *ConsoleReporter) printPerformanceTable(report *SessionReport) {
	m := report.Metrics

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("SESSION SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🆔 Session", report.SessionID},
		{"⏳ Duration", report.Duration().Round(time.Second).String()},
		{"🏁 End Reason", report.EndReason},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", report.InitialBalance)},
		{"💰 Final Equity", fmt.Sprintf("$%.2f", report.Snapshot.Equity)},
		{"📈 Total Return", fmt.Sprintf("%.2f%%", report.TotalReturnPercent())},
		{"💵 Realized PnL", fmt.Sprintf("$%.2f", m.RealizedPnL)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔄 Total Trades", fmt.Sprintf("%d (%d failed)", m.TotalTrades, m.FailedTrades)},
		{"✅ Win Rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"⚡ Trades/Hour", fmt.Sprintf("%.2f", m.TradesPerHour)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)},
		{"📉 Final Drawdown", fmt.Sprintf("%.2f%%", m.CurrentDrawdown*100)},
		{"⚠️ VaR 95%", fmt.Sprintf("%.2f%%", m.ValueAtRisk95*100)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

func (r *ConsoleReporter) printStrategyTable(report *SessionReport) {
	if len(report.Metrics.StrategyPnL) == 0 {
		return
	}

	names := make([]string, 0, len(report.Metrics.StrategyPnL))
	for name := range report.Metrics.StrategyPnL {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("STRATEGY ATTRIBUTION")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Strategy", "Realized PnL"})

	for _, name := range names {
		t.AppendRow(table.Row{name, fmt.Sprintf("$%.2f", report.Metrics.StrategyPnL[name])})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

func (r *ConsoleReporter) printPositionsTable(report *SessionReport) {
	if len(report.Snapshot.Positions) == 0 {
		return
	}

	symbols := make([]string, 0, len(report.Snapshot.Positions))
	for symbol := range report.Snapshot.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Quantity", "Avg Cost"})

	for _, symbol := range symbols {
		pos := report.Snapshot.Positions[symbol]
		t.AppendRow(table.Row{symbol, fmt.Sprintf("%.6f", pos.Quantity), fmt.Sprintf("$%.2f", pos.AverageCost)})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

func (r *ConsoleReporter) printAlertsTable(report *SessionReport) {
	if len(report.Alerts) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("ALERTS RAISED")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Level", "Category", "Message", "Ack"})

	for _, a := range report.Alerts {
		ack := ""
		if a.Acknowledged {
			ack = "✅"
		}
		t.AppendRow(table.Row{
			a.Timestamp.Format("15:04:05"),
			string(a.Level),
			a.Category,
			a.Message,
			ack,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60},
	})

	t.Render()
	fmt.Println()
}
