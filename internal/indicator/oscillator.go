package indicator

// RSI 计算 Wilder 相对强弱指数，取值 [0,100]。
// 前 window 根为 NaN；种子为前 window 个涨跌幅的简单平均，之后按 (avg*(w-1)+x)/w 平滑。
// 平均跌幅为 0 时返回 100，涨跌均为 0 时返回 50。
func RSI(closes []float64, window int) ([]float64, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	out := NaNs(len(closes))
	if len(closes) <= window {
		return out, nil
	}

	w := float64(window)
	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= w
	avgLoss /= w
	out[window] = rsiValue(avgGain, avgLoss)

	for i := window + 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		avgGain = (avgGain*(w-1) + gain) / w
		avgLoss = (avgLoss*(w-1) + loss) / w
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
