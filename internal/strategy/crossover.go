package strategy

import (
	"fmt"

	"go.uber.org/multierr"

	"quantlab/internal/frame"
	"quantlab/internal/indicator"
)

// SMACross 短均线高于长均线做多，低于做空。
type SMACross struct {
	Short int
	Long  int
}

// DefaultSMACross 返回 20/50 参数。
func DefaultSMACross() SMACross {
	return SMACross{Short: 20, Long: 50}
}

func (s SMACross) Name() string { return "sma" }

// Validate 校验窗口参数。
func (s SMACross) Validate() error {
	return validateCross("sma", s.Short, s.Long)
}

func (s SMACross) Generate(f *frame.Frame) (*frame.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	closes := f.Close()
	short, err := indicator.RollingMean(closes, s.Short)
	if err != nil {
		return nil, err
	}
	long, err := indicator.RollingMean(closes, s.Long)
	if err != nil {
		return nil, err
	}

	signal := crossSignals(short, long)
	return attach(f, []string{"sma_short", "sma_long"}, [][]float64{short, long}, signal)
}

// EMACross 短 EMA 高于长 EMA 做多，低于做空。
type EMACross struct {
	Short int
	Long  int
}

// DefaultEMACross 返回 20/50 参数。
func DefaultEMACross() EMACross {
	return EMACross{Short: 20, Long: 50}
}

func (s EMACross) Name() string { return "ema" }

// Validate 校验窗口参数。
func (s EMACross) Validate() error {
	return validateCross("ema", s.Short, s.Long)
}

func (s EMACross) Generate(f *frame.Frame) (*frame.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	closes := f.Close()
	short, err := indicator.EMA(closes, s.Short)
	if err != nil {
		return nil, err
	}
	long, err := indicator.EMA(closes, s.Long)
	if err != nil {
		return nil, err
	}

	signal := crossSignals(short, long)
	return attach(f, []string{"ema_short", "ema_long"}, [][]float64{short, long}, signal)
}

// MACDCross macd 高于信号线做多，低于做空。
type MACDCross struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACDCross 返回 12/26/9 参数。
func DefaultMACDCross() MACDCross {
	return MACDCross{Fast: 12, Slow: 26, Signal: 9}
}

func (s MACDCross) Name() string { return "macd" }

// Validate 校验窗口参数。
func (s MACDCross) Validate() error {
	var err error
	if s.Fast <= 0 {
		err = multierr.Append(err, fmt.Errorf("macd.fast 必须大于0"))
	}
	if s.Slow <= 0 {
		err = multierr.Append(err, fmt.Errorf("macd.slow 必须大于0"))
	}
	if s.Signal <= 0 {
		err = multierr.Append(err, fmt.Errorf("macd.signal 必须大于0"))
	}
	if err != nil {
		return fmt.Errorf("strategy: 参数无效: %w", err)
	}
	return nil
}

func (s MACDCross) Generate(f *frame.Frame) (*frame.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	res, err := indicator.MACD(f.Close(), s.Fast, s.Slow, s.Signal)
	if err != nil {
		return nil, err
	}

	signal := crossSignals(res.MACD, res.Signal)
	return attach(f,
		[]string{"macd", "macd_signal", "macd_hist"},
		[][]float64{res.MACD, res.Signal, res.Histogram},
		signal,
	)
}

func crossSignals(fast, slow []float64) []float64 {
	return signals(len(fast),
		func(i int) bool { return fast[i] > slow[i] },
		func(i int) bool { return fast[i] < slow[i] },
	)
}

func validateCross(name string, short, long int) error {
	var err error
	if short <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.short 必须大于0", name))
	}
	if long <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.long 必须大于0", name))
	}
	if err != nil {
		return fmt.Errorf("strategy: 参数无效: %w", err)
	}
	return nil
}
