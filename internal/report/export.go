package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"quantlab/internal/frame"
)

// Record 为 Parquet 导出的固定行结构。
type Record struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close     float64 `parquet:"close"`
	Signal    float64 `parquet:"signal"`
	Returns   float64 `parquet:"returns"`
	Equity    float64 `parquet:"equity"`
}

// WriteCSV 导出完整数据表：时间戳、OHLCV 以及全部派生列（按追加顺序）。
func WriteCSV(w io.Writer, f *frame.Frame) error {
	series := f.Series()
	names := f.Columns()

	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i], _ = f.Column(name)
	}

	cw := csv.NewWriter(w)
	header := append([]string{"timestamp", "open", "high", "low", "close", "volume"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: 写入 CSV 表头失败: %w", err)
	}

	record := make([]string, len(header))
	for i := 0; i < f.Len(); i++ {
		record[0] = series.Timestamps[i].UTC().Format(time.RFC3339)
		record[1] = formatFloat(series.Open[i])
		record[2] = formatFloat(series.High[i])
		record[3] = formatFloat(series.Low[i])
		record[4] = formatFloat(series.Close[i])
		record[5] = formatFloat(series.Volume[i])
		for j, col := range columns {
			record[6+j] = formatFloat(col[i])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: 写入 CSV 行失败: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: 输出 CSV 失败: %w", err)
	}
	return nil
}

// WriteCSVFile 将数据表写入 path，必要时创建目录。
func WriteCSVFile(path string, f *frame.Frame) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: 创建目录失败: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: 创建 CSV 文件失败: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("report: 关闭 CSV 文件失败: %w", closeErr)
		}
	}()
	return WriteCSV(file, f)
}

// Records 抽取 timestamp/close/signal/returns/equity 五列，要求数据表已完成回测。
func Records(f *frame.Frame) ([]Record, error) {
	signal, err := f.MustColumn(frame.ColumnSignal)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	returns, err := f.MustColumn(frame.ColumnReturns)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	equity, err := f.MustColumn(frame.ColumnEquity)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	timestamps := f.Timestamps()
	closes := f.Close()
	records := make([]Record, f.Len())
	for i := range records {
		records[i] = Record{
			Timestamp: timestamps[i].UnixMilli(),
			Close:     closes[i],
			Signal:    signal[i],
			Returns:   returns[i],
			Equity:    equity[i],
		}
	}
	return records, nil
}

// WriteParquetFile 将核心列写为 Parquet 文件。
func WriteParquetFile(path string, f *frame.Frame) error {
	records, err := Records(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: 创建目录失败: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("report: 写入 Parquet 失败: %w", err)
	}
	return nil
}

// FileName 生成导出文件名，例如 BTC-USDT_15m_sma.csv。
func FileName(symbol, timeframe, strategy, ext string) string {
	safe := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		switch r {
		case '/', ':', '\\', ' ':
			safe = append(safe, '-')
		default:
			safe = append(safe, r)
		}
	}
	return fmt.Sprintf("%s_%s_%s.%s", string(safe), timeframe, strategy, ext)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
