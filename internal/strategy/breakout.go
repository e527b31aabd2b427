package strategy

import (
	"fmt"
	"math"

	"quantlab/internal/frame"
	"quantlab/internal/indicator"
)

// DonchianBreakout 收盘突破前一根的通道上沿做多，跌破前一根的通道下沿做空。
// 通道取到 i-1 为止，避免当根高低点参与自身的突破判断。
type DonchianBreakout struct {
	Channel int
}

// DefaultDonchianBreakout 返回 20 根通道。
func DefaultDonchianBreakout() DonchianBreakout {
	return DonchianBreakout{Channel: 20}
}

func (s DonchianBreakout) Name() string { return "breakout" }

// Validate 校验通道长度。
func (s DonchianBreakout) Validate() error {
	if s.Channel <= 0 {
		return fmt.Errorf("strategy: 参数无效: breakout.channel 必须大于0")
	}
	return nil
}

func (s DonchianBreakout) Generate(f *frame.Frame) (*frame.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	closes := f.Close()
	channel, err := indicator.Donchian(f.High(), f.Low(), s.Channel)
	if err != nil {
		return nil, err
	}

	prevHigh := indicator.Shift(channel.High, 1, math.NaN())
	prevLow := indicator.Shift(channel.Low, 1, math.NaN())
	signal := signals(len(closes),
		func(i int) bool { return closes[i] > prevHigh[i] },
		func(i int) bool { return closes[i] < prevLow[i] },
	)
	return attach(f,
		[]string{"donchian_high", "donchian_low"},
		[][]float64{channel.High, channel.Low},
		signal,
	)
}
