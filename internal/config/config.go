package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "quantlab"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 未显式指定路径且默认文件不存在时，仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
			// 使用默认值
		case errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.symbol", "BTC/USDT")
	v.SetDefault("exchange.timeframe", "15m")
	v.SetDefault("exchange.years", 3)
	v.SetDefault("exchange.limit_per_call", 1000)
	v.SetDefault("exchange.timeout_ms", 30000)
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "1s")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("backtest.fee_rate", 0.0004)
	v.SetDefault("backtest.slippage_bps", 0.0)
	v.SetDefault("backtest.position_mode", "long_only")
	v.SetDefault("backtest.initial_equity", 10000.0)
	v.SetDefault("backtest.bars_per_year", 0.0)

	v.SetDefault("strategies.sma.short", 20)
	v.SetDefault("strategies.sma.long", 50)
	v.SetDefault("strategies.ema.short", 20)
	v.SetDefault("strategies.ema.long", 50)
	v.SetDefault("strategies.rsi.period", 14)
	v.SetDefault("strategies.rsi.low", 30.0)
	v.SetDefault("strategies.rsi.high", 70.0)
	v.SetDefault("strategies.macd.fast", 12)
	v.SetDefault("strategies.macd.slow", 26)
	v.SetDefault("strategies.macd.signal", 9)
	v.SetDefault("strategies.bbands.window", 20)
	v.SetDefault("strategies.bbands.n_std", 2.0)
	v.SetDefault("strategies.breakout.channel", 20)

	v.SetDefault("database.path", "data/quantlab.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stderr"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("output.csv_dir", "")
	v.SetDefault("output.parquet_dir", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
