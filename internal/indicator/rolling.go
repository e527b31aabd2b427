package indicator

import (
	"errors"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidWindow 表示窗口参数非法。
var ErrInvalidWindow = errors.New("indicator: 窗口必须为正整数")

func checkWindow(window int) error {
	if window <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	return nil
}

// NaNs 返回长度为 n、全部为 NaN 的序列。
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rolling 调用 talib 的极值窗口函数，并把预热段（i < window-1）替换为 NaN。
// talib 在输入短于窗口时会越界，这里提前返回全 NaN。
func rolling(values []float64, window int, single func([]float64) []float64, fn func([]float64, int) []float64) ([]float64, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	out := NaNs(len(values))
	if len(values) < window {
		return out, nil
	}
	if window == 1 {
		return single(values), nil
	}

	computed := fn(values, window)
	copy(out[window-1:], computed[window-1:])
	return out, nil
}

func identity(values []float64) []float64 {
	return append([]float64(nil), values...)
}

// trailing 对每个完整的尾随窗口单独求值，预热段为 NaN。
func trailing(values []float64, window int, fn func([]float64) float64) ([]float64, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	out := NaNs(len(values))
	for i := window - 1; i < len(values); i++ {
		out[i] = fn(values[i-window+1 : i+1])
	}
	return out, nil
}

// constant 判断窗口内取值是否完全相同。
func constant(w []float64) bool {
	for _, v := range w[1:] {
		if v != w[0] {
			return false
		}
	}
	return true
}

// RollingMean 计算尾随 window 根的算术平均。窗口内取值相同时精确返回该值。
func RollingMean(values []float64, window int) ([]float64, error) {
	return trailing(values, window, func(w []float64) float64 {
		if constant(w) {
			return w[0]
		}
		return stat.Mean(w, nil)
	})
}

// RollingMax 计算尾随 window 根的最大值。
func RollingMax(values []float64, window int) ([]float64, error) {
	return rolling(values, window, identity, talib.Max)
}

// RollingMin 计算尾随 window 根的最小值。
func RollingMin(values []float64, window int) ([]float64, error) {
	return rolling(values, window, identity, talib.Min)
}

// RollingStd 计算尾随 window 根的总体标准差（ddof=0）。窗口内取值相同时为 0。
func RollingStd(values []float64, window int) ([]float64, error) {
	return trailing(values, window, func(w []float64) float64 {
		if constant(w) {
			return 0
		}
		return math.Sqrt(stat.PopVariance(w, nil))
	})
}
