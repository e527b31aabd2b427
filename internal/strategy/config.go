package strategy

import (
	"go.uber.org/multierr"

	"quantlab/internal/config"
)

type validated interface {
	Strategy
	Validate() error
}

// FromConfig 按配置参数构建注册表。参数无效的策略不会注册，错误合并返回。
func FromConfig(cfg config.StrategiesConfig) (*Registry, error) {
	candidates := []validated{
		SMACross{Short: cfg.SMA.Short, Long: cfg.SMA.Long},
		EMACross{Short: cfg.EMA.Short, Long: cfg.EMA.Long},
		RSIReversion{Period: cfg.RSI.Period, Low: cfg.RSI.Low, High: cfg.RSI.High},
		MACDCross{Fast: cfg.MACD.Fast, Slow: cfg.MACD.Slow, Signal: cfg.MACD.Signal},
		BollingerReversion{Window: cfg.BBands.Window, NStd: cfg.BBands.NStd},
		DonchianBreakout{Channel: cfg.Breakout.Channel},
	}

	var err error
	r := NewRegistry()
	for _, s := range candidates {
		if vErr := s.Validate(); vErr != nil {
			err = multierr.Append(err, vErr)
			continue
		}
		r.Register(s)
	}
	return r, err
}
