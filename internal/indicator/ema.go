package indicator

import (
	"fmt"
	"math"
)

// EMA 计算指数移动平均：ema[0]=x[0]，α=2/(span+1)，无预热缺口。
func EMA(values []float64, span int) ([]float64, error) {
	if err := checkWindow(span); err != nil {
		return nil, err
	}
	return ewm(values, 2/float64(span+1), 1), nil
}

// ewm 为非调整递推的指数平滑。前导 NaN 被跳过，第一个有效值作为种子；
// 有效观测数不足 minPeriods 时输出 NaN。中间出现的 NaN 沿用上一平滑值。
// 递推写成 prev+α(v-prev)，常数输入下结果逐位不变。
func ewm(values []float64, alpha float64, minPeriods int) []float64 {
	out := NaNs(len(values))
	seeded := false
	count := 0
	prev := 0.0

	for i, v := range values {
		if math.IsNaN(v) {
			if seeded && count >= minPeriods {
				out[i] = prev
			}
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev += alpha * (v - prev)
		}
		count++
		if count >= minPeriods {
			out[i] = prev
		}
	}
	return out
}

// MACDResult 保存 MACD 三条线。
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD 计算 macd=ema_fast-ema_slow 与其信号线。
// 快慢线分别在满 fast、slow 根观测前视为未定义，信号线在 macd 满 sign 个有效值前未定义。
func MACD(closes []float64, fast, slow, sign int) (MACDResult, error) {
	for _, w := range []int{fast, slow, sign} {
		if err := checkWindow(w); err != nil {
			return MACDResult{}, fmt.Errorf("macd: %w", err)
		}
	}

	emaFast := ewm(closes, 2/float64(fast+1), fast)
	emaSlow := ewm(closes, 2/float64(slow+1), slow)

	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	signal := ewm(macd, 2/float64(sign+1), sign)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}

	return MACDResult{MACD: macd, Signal: signal, Histogram: hist}, nil
}
