// Package strategy 将K线表转换为 {-1,0,+1} 的目标仓位信号，并附带中间指标列。
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"quantlab/internal/frame"
)

// ErrUnknownStrategy 表示注册表中不存在该策略。
var ErrUnknownStrategy = errors.New("strategy: 未知策略")

// Strategy 为信号生成器。Generate 不修改输入，返回追加了指标列与 signal 列的新表。
type Strategy interface {
	Name() string
	Generate(f *frame.Frame) (*frame.Frame, error)
}

// Registry 按名称管理策略。
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register 以 Name() 为键注册策略，同名覆盖。
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get 按名称查找策略。
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// List 返回排序后的策略名。
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults 返回注册了全部默认参数策略的注册表。
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(DefaultSMACross())
	r.Register(DefaultEMACross())
	r.Register(DefaultRSIReversion())
	r.Register(DefaultMACDCross())
	r.Register(DefaultBollingerReversion())
	r.Register(DefaultDonchianBreakout())
	return r
}

// signals 先将全部信号置 0，再依次覆盖 long(+1) 与 short(-1)。
// 条件均为严格不等式，NaN 比较恒为 false，故预热段保持 0。
func signals(n int, long, short func(i int) bool) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if long(i) {
			out[i] = 1
		}
		if short(i) {
			out[i] = -1
		}
	}
	return out
}

// attach 追加指标列与 signal 列。
func attach(f *frame.Frame, names []string, columns [][]float64, signal []float64) (*frame.Frame, error) {
	names = append(names, frame.ColumnSignal)
	columns = append(columns, signal)
	return f.WithColumns(names, columns...)
}
