package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"quantlab/internal/backtest"
)

const summaryPlaces = 4

// Row 是汇总表中的一行。
type Row struct {
	Strategy    string
	Trades      int
	FinalEquity float64
	Metrics     backtest.Metrics
}

// Rows 将回测报告转换为汇总表行，保持输入顺序。
func Rows(reports []backtest.Report) []Row {
	rows := make([]Row, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, Row{
			Strategy:    r.Strategy,
			Trades:      r.Result.Trades,
			FinalEquity: r.Result.FinalEquity,
			Metrics:     r.Metrics,
		})
	}
	return rows
}

// FormatValue 以 4 位小数定点格式输出，NaN 输出 "NaN"，无穷输出 "+Inf"/"-Inf"。
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return decimal.NewFromFloat(v).StringFixed(summaryPlaces)
}

// WriteSummary 输出对齐的绩效汇总表。
func WriteSummary(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	if _, err := fmt.Fprintln(tw, "strategy\ttrades\tfinal_equity\tcumulative_return\tmax_drawdown\tannual_return\tannual_volatility\tsharpe\twin_rate\t"); err != nil {
		return fmt.Errorf("report: 写入表头失败: %w", err)
	}

	for _, row := range rows {
		m := row.Metrics
		if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Strategy,
			row.Trades,
			FormatValue(row.FinalEquity),
			FormatValue(m.CumulativeReturn),
			FormatValue(m.MaxDrawdown),
			FormatValue(m.AnnualReturn),
			FormatValue(m.AnnualVolatility),
			FormatValue(m.Sharpe),
			FormatValue(m.WinRate),
		); err != nil {
			return fmt.Errorf("report: 写入汇总行失败: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("report: 输出汇总表失败: %w", err)
	}
	return nil
}
