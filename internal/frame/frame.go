// Package frame 提供不可变的K线表：K线列加若干命名的派生列。
package frame

import (
	"errors"
	"fmt"
	"time"

	"quantlab/internal/market"
)

const (
	// ColumnSignal 为信号列，取值 {-1,0,1}。
	ColumnSignal = "signal"
	// ColumnReturns 为扣费后的策略收益列。
	ColumnReturns = "returns"
	// ColumnEquity 为净值曲线列。
	ColumnEquity = "equity"
)

// ErrMissingColumn 表示所需列不存在。
var ErrMissingColumn = errors.New("frame: 缺少列")

// Frame 为只读K线表。所有修改操作都返回新实例。
type Frame struct {
	series  market.Series
	columns map[string][]float64
	order   []string
}

// New 基于K线序列构建 Frame，序列会被复制。
func New(series market.Series) *Frame {
	return &Frame{
		series:  series.Clone(),
		columns: make(map[string][]float64),
	}
}

// FromBars 校验K线后构建 Frame。
func FromBars(bars []market.Bar) (*Frame, error) {
	series := market.NewSeries(bars)
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return New(series), nil
}

// Len 返回行数。
func (f *Frame) Len() int {
	return f.series.Len()
}

// Series 返回K线列的副本。
func (f *Frame) Series() market.Series {
	return f.series.Clone()
}

// Close 返回收盘价副本。
func (f *Frame) Close() []float64 {
	return append([]float64(nil), f.series.Close...)
}

// High 返回最高价副本。
func (f *Frame) High() []float64 {
	return append([]float64(nil), f.series.High...)
}

// Low 返回最低价副本。
func (f *Frame) Low() []float64 {
	return append([]float64(nil), f.series.Low...)
}

// Timestamps 返回时间戳副本。
func (f *Frame) Timestamps() []time.Time {
	return append([]time.Time(nil), f.series.Timestamps...)
}

// With 追加或替换一列，返回新 Frame；原 Frame 不受影响。
func (f *Frame) With(name string, values []float64) (*Frame, error) {
	if name == "" {
		return nil, errors.New("frame: 列名不能为空")
	}
	if len(values) != f.Len() {
		return nil, fmt.Errorf("frame: 列 %q 长度 %d 与行数 %d 不一致", name, len(values), f.Len())
	}

	out := &Frame{
		series:  f.series,
		columns: make(map[string][]float64, len(f.columns)+1),
		order:   make([]string, 0, len(f.order)+1),
	}
	for k, v := range f.columns {
		out.columns[k] = v
	}
	out.order = append(out.order, f.order...)
	if _, exists := f.columns[name]; !exists {
		out.order = append(out.order, name)
	}
	out.columns[name] = append([]float64(nil), values...)
	return out, nil
}

// WithColumns 按顺序依次追加多列。
func (f *Frame) WithColumns(names []string, values ...[]float64) (*Frame, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("frame: 列名数量 %d 与列数量 %d 不一致", len(names), len(values))
	}
	out := f
	for i, name := range names {
		next, err := out.With(name, values[i])
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Column 返回指定列的副本。
func (f *Frame) Column(name string) ([]float64, bool) {
	values, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), values...), true
}

// MustColumn 与 Column 相同，但缺失时返回 ErrMissingColumn。
func (f *Frame) MustColumn(name string) ([]float64, error) {
	values, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	return values, nil
}

// Has 判断列是否存在。
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Columns 按追加顺序返回派生列名。
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}
