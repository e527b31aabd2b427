package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultBarsPerYear 对应 15 分钟K线：96 根/天 × 365 天。
const DefaultBarsPerYear = 96 * 365

// Metrics 记录回测绩效指标。无法定义的指标为 NaN。
type Metrics struct {
	CumulativeReturn float64 `json:"cumulative_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	Sharpe           float64 `json:"sharpe"`
	WinRate          float64 `json:"win_rate"`
}

// BarsPerYear 按K线周期推算每年K线数量（365 天）。
func BarsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		return math.NaN()
	}
	return float64(365*24*time.Hour) / float64(interval)
}

// Summarize 由净值曲线与收益序列计算绩效。波动率为样本标准差，barsPerYear 非正时年化指标为 NaN。
func Summarize(equity []float64, returns []float64, barsPerYear float64) Metrics {
	nan := math.NaN()
	m := Metrics{
		CumulativeReturn: nan,
		MaxDrawdown:      nan,
		AnnualReturn:     nan,
		AnnualVolatility: nan,
		Sharpe:           nan,
		WinRate:          nan,
	}

	if len(equity) > 0 {
		m.CumulativeReturn = equity[len(equity)-1]/equity[0] - 1
		m.MaxDrawdown = computeDrawdown(equity)
	}

	if len(returns) > 0 {
		if barsPerYear > 0 {
			mean, std := stat.Mean(returns, nil), math.NaN()
			if len(returns) > 1 {
				std = stat.StdDev(returns, nil)
			}
			m.AnnualReturn = math.Pow(1+mean, barsPerYear) - 1
			m.AnnualVolatility = std * math.Sqrt(barsPerYear)
			if m.AnnualVolatility > 0 {
				m.Sharpe = m.AnnualReturn / m.AnnualVolatility
			}
		}
		m.WinRate = computeWinRate(returns)
	}

	return m
}

// computeDrawdown 返回 min(equity/running_max - 1)，不大于 0。
func computeDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := v/peak - 1
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// computeWinRate 只统计严格为正/负的K线，零收益不计入分母。
func computeWinRate(returns []float64) float64 {
	var wins, losses int
	for _, r := range returns {
		switch {
		case r > 0:
			wins++
		case r < 0:
			losses++
		}
	}
	if wins+losses == 0 {
		return math.NaN()
	}
	return float64(wins) / float64(wins+losses)
}
