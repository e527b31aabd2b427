package backtest

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// PositionMode 决定是否允许做空。
type PositionMode string

const (
	// LongOnly 空头意图视为空仓。
	LongOnly PositionMode = "long_only"
	// LongShort 允许 ±1 仓位。
	LongShort PositionMode = "long_short"
)

const defaultInitialEquity = 10000

// Config 定义回测参数，按值传递，运行期间不可变。
type Config struct {
	FeeRate       float64      // 每单位仓位变化收取的费率
	SlippageBps   float64      // 仅记录，不参与计算
	PositionMode  PositionMode // 仓位模式
	InitialEquity float64      // 初始净值
}

// DefaultConfig 返回 4bps 费率、只做多、初始净值 10000 的配置。
func DefaultConfig() Config {
	return Config{
		FeeRate:       0.0004,
		PositionMode:  LongOnly,
		InitialEquity: defaultInitialEquity,
	}
}

// ParsePositionMode 解析仓位模式字符串。
func ParsePositionMode(s string) (PositionMode, error) {
	switch PositionMode(s) {
	case LongOnly, LongShort:
		return PositionMode(s), nil
	case "":
		return LongOnly, nil
	default:
		return "", fmt.Errorf("backtest: 未知仓位模式 %q", s)
	}
}

func (c Config) normalize() Config {
	cfg := c
	if cfg.InitialEquity == 0 {
		cfg.InitialEquity = defaultInitialEquity
	}
	if cfg.PositionMode == "" {
		cfg.PositionMode = LongOnly
	}
	return cfg
}

// Validate 校验费率、仓位模式与初始净值。
func (c Config) Validate() error {
	var err error
	if c.FeeRate < 0 || math.IsNaN(c.FeeRate) {
		err = multierr.Append(err, errors.New("fee_rate 不能为负"))
	}
	if c.SlippageBps < 0 || math.IsNaN(c.SlippageBps) {
		err = multierr.Append(err, errors.New("slippage_bps 不能为负"))
	}
	if _, modeErr := ParsePositionMode(string(c.PositionMode)); modeErr != nil {
		err = multierr.Append(err, modeErr)
	}
	if c.InitialEquity <= 0 || math.IsNaN(c.InitialEquity) {
		err = multierr.Append(err, errors.New("initial_equity 必须大于0"))
	}
	if err != nil {
		return fmt.Errorf("backtest: 配置无效: %w", err)
	}
	return nil
}
