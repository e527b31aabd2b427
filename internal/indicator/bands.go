package indicator

import (
	"fmt"
	"math"
)

// BollingerResult 保存布林带三条线。
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger 以 window 根均值为中轨，上下轨偏移 nStd 倍总体标准差。
func Bollinger(closes []float64, window int, nStd float64) (BollingerResult, error) {
	if nStd < 0 || math.IsNaN(nStd) {
		return BollingerResult{}, fmt.Errorf("bollinger: n_std 不能为负: %v", nStd)
	}
	mid, err := RollingMean(closes, window)
	if err != nil {
		return BollingerResult{}, fmt.Errorf("bollinger: %w", err)
	}
	std, err := RollingStd(closes, window)
	if err != nil {
		return BollingerResult{}, fmt.Errorf("bollinger: %w", err)
	}

	upper := make([]float64, len(closes))
	lower := make([]float64, len(closes))
	for i := range closes {
		upper[i] = mid[i] + nStd*std[i]
		lower[i] = mid[i] - nStd*std[i]
	}
	return BollingerResult{Middle: mid, Upper: upper, Lower: lower}, nil
}

// ChannelResult 保存唐奇安通道。
type ChannelResult struct {
	High []float64
	Low  []float64
}

// Donchian 计算 window 根最高价的最大值与最低价的最小值。
func Donchian(highs, lows []float64, window int) (ChannelResult, error) {
	if len(highs) != len(lows) {
		return ChannelResult{}, fmt.Errorf("donchian: high/low 长度不一致 %d != %d", len(highs), len(lows))
	}
	upper, err := RollingMax(highs, window)
	if err != nil {
		return ChannelResult{}, fmt.Errorf("donchian: %w", err)
	}
	lower, err := RollingMin(lows, window)
	if err != nil {
		return ChannelResult{}, fmt.Errorf("donchian: %w", err)
	}
	return ChannelResult{High: upper, Low: lower}, nil
}
