package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了回测运行所需的全部配置项。
type Config struct {
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Output     OutputConfig     `mapstructure:"output"`
}

// ExchangeConfig 描述行情来源与下载区间。
type ExchangeConfig struct {
	Name         string      `mapstructure:"name"`
	Symbol       string      `mapstructure:"symbol"`
	Timeframe    string      `mapstructure:"timeframe"`
	Years        int         `mapstructure:"years"`
	Since        time.Time   `mapstructure:"since"`
	Until        time.Time   `mapstructure:"until"`
	LimitPerCall int         `mapstructure:"limit_per_call"`
	Timeout      int         `mapstructure:"timeout_ms"`
	Retry        RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BacktestConfig 控制成本与仓位模式。BarsPerYear 为 0 时按周期推算。
type BacktestConfig struct {
	FeeRate       float64 `mapstructure:"fee_rate"`
	SlippageBps   float64 `mapstructure:"slippage_bps"`
	PositionMode  string  `mapstructure:"position_mode"`
	InitialEquity float64 `mapstructure:"initial_equity"`
	BarsPerYear   float64 `mapstructure:"bars_per_year"`
}

// StrategiesConfig 为各策略参数。
type StrategiesConfig struct {
	SMA      CrossConfig     `mapstructure:"sma"`
	EMA      CrossConfig     `mapstructure:"ema"`
	RSI      RSIConfig       `mapstructure:"rsi"`
	MACD     MACDConfig      `mapstructure:"macd"`
	BBands   BollingerConfig `mapstructure:"bbands"`
	Breakout BreakoutConfig  `mapstructure:"breakout"`
}

// CrossConfig 为均线交叉参数。
type CrossConfig struct {
	Short int `mapstructure:"short"`
	Long  int `mapstructure:"long"`
}

// RSIConfig 为 RSI 均值回归参数。
type RSIConfig struct {
	Period int     `mapstructure:"period"`
	Low    float64 `mapstructure:"low"`
	High   float64 `mapstructure:"high"`
}

// MACDConfig 为 MACD 参数。
type MACDConfig struct {
	Fast   int `mapstructure:"fast"`
	Slow   int `mapstructure:"slow"`
	Signal int `mapstructure:"signal"`
}

// BollingerConfig 为布林带参数。
type BollingerConfig struct {
	Window int     `mapstructure:"window"`
	NStd   float64 `mapstructure:"n_std"`
}

// BreakoutConfig 为唐奇安通道参数。
type BreakoutConfig struct {
	Channel int `mapstructure:"channel"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// OutputConfig 控制结果导出目录，为空表示不导出。
type OutputConfig struct {
	CSVDir     string `mapstructure:"csv_dir"`
	ParquetDir string `mapstructure:"parquet_dir"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Symbol == "" {
		err = multierr.Append(err, errors.New("exchange.symbol 不能为空"))
	}
	if c.Exchange.Timeframe == "" {
		err = multierr.Append(err, errors.New("exchange.timeframe 不能为空"))
	}
	if c.Exchange.Years <= 0 && c.Exchange.Since.IsZero() {
		err = multierr.Append(err, errors.New("exchange.years 必须大于0，或设置 exchange.since"))
	}
	if !c.Exchange.Since.IsZero() && !c.Exchange.Until.IsZero() && !c.Exchange.Since.Before(c.Exchange.Until) {
		err = multierr.Append(err, errors.New("exchange.since 必须早于 exchange.until"))
	}
	if c.Exchange.LimitPerCall <= 0 {
		err = multierr.Append(err, errors.New("exchange.limit_per_call 必须大于0"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Backtest.FeeRate < 0 {
		err = multierr.Append(err, errors.New("backtest.fee_rate 不能为负"))
	}
	if c.Backtest.SlippageBps < 0 {
		err = multierr.Append(err, errors.New("backtest.slippage_bps 不能为负"))
	}
	if c.Backtest.PositionMode != "long_only" && c.Backtest.PositionMode != "long_short" {
		err = multierr.Append(err, fmt.Errorf("backtest.position_mode 必须为 long_only 或 long_short，当前 %q", c.Backtest.PositionMode))
	}
	if c.Backtest.InitialEquity <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_equity 必须大于0"))
	}
	if c.Backtest.BarsPerYear < 0 {
		err = multierr.Append(err, errors.New("backtest.bars_per_year 不能为负"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
