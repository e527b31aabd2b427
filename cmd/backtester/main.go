package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"quantlab/internal/app"
	"quantlab/internal/config"
	"quantlab/internal/exchange"
	"quantlab/internal/log"
	"quantlab/internal/report"
	"quantlab/internal/store"
)

func main() {
	var (
		configPath   string
		symbol       string
		timeframe    string
		years        int
		strategyName string
		positionMode string
		fee          float64
		all          bool
		refresh      bool
		csvDir       string
		parquetDir   string
		serveAddr    string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&symbol, "symbol", "", "交易对，例如 BTC/USDT")
	flag.StringVar(&timeframe, "timeframe", "", "K线周期，例如 15m")
	flag.IntVar(&years, "years", 0, "回溯年数")
	flag.StringVar(&strategyName, "strategy", "sma", "策略名称: sma, ema, rsi, macd, bbands, breakout")
	flag.StringVar(&positionMode, "position-mode", "", "仓位模式: long_only 或 long_short")
	flag.Float64Var(&fee, "fee", -1, "单边费率，例如 0.0004")
	flag.BoolVar(&all, "all", false, "回测全部策略并按 sharpe 排序")
	flag.BoolVar(&refresh, "refresh", false, "忽略缓存重新下载K线")
	flag.StringVar(&csvDir, "csv", "", "CSV 导出目录")
	flag.StringVar(&parquetDir, "parquet", "", "Parquet 导出目录")
	flag.StringVar(&serveAddr, "serve", "", "回测完成后在该地址提供 /runs 查询接口，例如 :8080")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if symbol != "" {
		cfg.Exchange.Symbol = symbol
	}
	if timeframe != "" {
		cfg.Exchange.Timeframe = timeframe
	}
	if years > 0 {
		cfg.Exchange.Years = years
	}
	if positionMode != "" {
		cfg.Backtest.PositionMode = positionMode
	}
	if fee >= 0 {
		cfg.Backtest.FeeRate = fee
	}
	if csvDir != "" {
		cfg.Output.CSVDir = csvDir
	}
	if parquetDir != "" {
		cfg.Output.ParquetDir = parquetDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "参数无效: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	client, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		logger.Error("初始化行情客户端失败", zap.Error(err))
		os.Exit(1)
	}

	backtester := app.New(cfg, logger, sqliteStore, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports, err := backtester.Run(ctx, app.Options{
		Strategy: strategyName,
		All:      all,
		Refresh:  refresh,
	})
	if err != nil {
		logger.Error("回测失败", zap.Error(err))
		os.Exit(1)
	}

	if err := report.WriteSummary(os.Stdout, report.Rows(reports)); err != nil {
		logger.Error("输出汇总失败", zap.Error(err))
		os.Exit(1)
	}

	if serveAddr != "" {
		if err := backtester.Serve(ctx, serveAddr); err != nil {
			logger.Error("回测记录接口异常", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("回测已完成")
}
