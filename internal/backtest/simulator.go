package backtest

import (
	"fmt"
	"math"

	"quantlab/internal/frame"
)

// Result 为一次向量化回测的输出。Frame 为输入表追加 returns 与 equity 两列。
type Result struct {
	Frame        *frame.Frame
	Positions    []float64
	GrossReturns []float64
	Returns      []float64
	Equity       []float64
	Trades       int
	FinalEquity  float64
}

// Positions 将信号滞后一根得到持仓：position[i]=signal[i-1]，position[0]=0。
// 只做多模式下负值截断为 0。NaN 信号视为空仓。
func Positions(signal []float64, mode PositionMode) []float64 {
	positions := make([]float64, len(signal))
	for i := 1; i < len(signal); i++ {
		p := signal[i-1]
		if math.IsNaN(p) {
			p = 0
		}
		if mode == LongOnly && p < 0 {
			p = 0
		}
		positions[i] = p
	}
	return positions
}

// PriceReturns 计算相邻收盘价的涨跌幅，首根为 0。
func PriceReturns(closes []float64) []float64 {
	returns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}
	return returns
}

// Simulate 执行向量化回测。输入表缺少 signal 列时返回错误。
// 成本为 |Δposition|×fee_rate；SlippageBps 不参与计算。
func Simulate(f *frame.Frame, cfg Config) (Result, error) {
	if f == nil {
		return Result{}, fmt.Errorf("backtest: 输入表不能为空")
	}
	signal, err := f.MustColumn(frame.ColumnSignal)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	n := f.Len()
	positions := Positions(signal, cfg.PositionMode)
	priceReturns := PriceReturns(f.Close())

	gross := make([]float64, n)
	net := make([]float64, n)
	equity := make([]float64, n)
	trades := 0
	growth := 1.0
	prev := 0.0

	for i := 0; i < n; i++ {
		gross[i] = positions[i] * priceReturns[i]

		change := math.Abs(positions[i] - prev)
		if change > 0 {
			trades++
		}
		net[i] = gross[i] - change*cfg.FeeRate

		growth *= 1 + net[i]
		equity[i] = growth * cfg.InitialEquity
		prev = positions[i]
	}

	out, err := f.WithColumns([]string{frame.ColumnReturns, frame.ColumnEquity}, net, equity)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	final := cfg.InitialEquity
	if n > 0 {
		final = equity[n-1]
	}

	return Result{
		Frame:        out,
		Positions:    positions,
		GrossReturns: gross,
		Returns:      net,
		Equity:       equity,
		Trades:       trades,
		FinalEquity:  final,
	}, nil
}
