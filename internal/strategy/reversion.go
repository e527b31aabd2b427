package strategy

import (
	"fmt"

	"go.uber.org/multierr"

	"quantlab/internal/frame"
	"quantlab/internal/indicator"
)

// RSIReversion RSI 低于下阈值做多（超卖），高于上阈值做空（超买）。
type RSIReversion struct {
	Period int
	Low    float64
	High   float64
}

// DefaultRSIReversion 返回 14/30/70 参数。
func DefaultRSIReversion() RSIReversion {
	return RSIReversion{Period: 14, Low: 30, High: 70}
}

func (s RSIReversion) Name() string { return "rsi" }

// Validate 校验周期与阈值。
func (s RSIReversion) Validate() error {
	var err error
	if s.Period <= 0 {
		err = multierr.Append(err, fmt.Errorf("rsi.period 必须大于0"))
	}
	if s.Low < 0 || s.High > 100 {
		err = multierr.Append(err, fmt.Errorf("rsi 阈值必须位于[0,100]"))
	}
	if s.Low >= s.High {
		err = multierr.Append(err, fmt.Errorf("rsi.low 必须小于 rsi.high"))
	}
	if err != nil {
		return fmt.Errorf("strategy: 参数无效: %w", err)
	}
	return nil
}

func (s RSIReversion) Generate(f *frame.Frame) (*frame.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rsi, err := indicator.RSI(f.Close(), s.Period)
	if err != nil {
		return nil, err
	}

	signal := signals(len(rsi),
		func(i int) bool { return rsi[i] < s.Low },
		func(i int) bool { return rsi[i] > s.High },
	)
	return attach(f, []string{"rsi"}, [][]float64{rsi}, signal)
}

// BollingerReversion 收盘跌破下轨做多，突破上轨做空。
type BollingerReversion struct {
	Window int
	NStd   float64
}

// DefaultBollingerReversion 返回 20/2.0 参数。
func DefaultBollingerReversion() BollingerReversion {
	return BollingerReversion{Window: 20, NStd: 2.0}
}

func (s BollingerReversion) Name() string { return "bbands" }

// Validate 校验窗口与倍数。
func (s BollingerReversion) Validate() error {
	var err error
	if s.Window <= 0 {
		err = multierr.Append(err, fmt.Errorf("bbands.window 必须大于0"))
	}
	if s.NStd <= 0 {
		err = multierr.Append(err, fmt.Errorf("bbands.n_std 必须大于0"))
	}
	if err != nil {
		return fmt.Errorf("strategy: 参数无效: %w", err)
	}
	return nil
}

func (s BollingerReversion) Generate(f *frame.Frame) (*frame.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	closes := f.Close()
	bands, err := indicator.Bollinger(closes, s.Window, s.NStd)
	if err != nil {
		return nil, err
	}

	signal := signals(len(closes),
		func(i int) bool { return closes[i] < bands.Lower[i] },
		func(i int) bool { return closes[i] > bands.Upper[i] },
	)
	return attach(f,
		[]string{"bb_mid", "bb_high", "bb_low"},
		[][]float64{bands.Middle, bands.Upper, bands.Lower},
		signal,
	)
}
