package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"quantlab/internal/backtest"
	"quantlab/internal/config"
	"quantlab/internal/frame"
	"quantlab/internal/market"
	"quantlab/internal/report"
	"quantlab/internal/store"
	"quantlab/internal/strategy"
)

// BarSource 提供历史K线下载能力，由 exchange.Client 实现。
type BarSource interface {
	FetchRange(ctx context.Context, since, until time.Time) ([]market.Bar, error)
}

// Options 描述一次回测调用。
type Options struct {
	Strategy string // 单策略名称，All 为 true 时忽略
	All      bool
	Refresh  bool // 跳过缓存，强制从交易所下载
}

// App 聚合核心依赖并驱动一次回测。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	source BarSource
	now    func() time.Time
}

// New 创建 App 实例。store 可为空，此时不缓存K线也不记录回测结果。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store, source BarSource) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		source: source,
		now:    time.Now,
	}
}

// Run 加载K线、执行回测、持久化并导出结果，返回按 sharpe 排序的报告。
func (a *App) Run(ctx context.Context, opts Options) ([]backtest.Report, error) {
	interval, err := market.TimeframeDuration(a.cfg.Exchange.Timeframe)
	if err != nil {
		return nil, err
	}

	registry, err := strategy.FromConfig(a.cfg.Strategies)
	if err != nil {
		return nil, err
	}

	engine, err := a.newEngine(interval, registry)
	if err != nil {
		return nil, err
	}

	bars, err := a.loadBars(ctx, interval, opts.Refresh)
	if err != nil {
		return nil, err
	}

	table, err := frame.FromBars(bars)
	if err != nil {
		return nil, err
	}

	a.logger.Info("开始回测",
		zap.String("symbol", a.cfg.Exchange.Symbol),
		zap.String("timeframe", a.cfg.Exchange.Timeframe),
		zap.Int("bars", table.Len()),
		zap.Time("from", bars[0].Timestamp),
		zap.Time("to", bars[len(bars)-1].Timestamp),
	)

	var reports []backtest.Report
	if opts.All || opts.Strategy == "" {
		reports, err = engine.RunAll(ctx, table)
		if err != nil {
			return nil, err
		}
	} else {
		r, runErr := engine.Run(ctx, opts.Strategy, table)
		if runErr != nil {
			return nil, runErr
		}
		reports = []backtest.Report{r}
	}

	if err := a.persist(ctx, engine.Config(), table.Len(), reports); err != nil {
		return nil, err
	}
	if err := a.export(reports); err != nil {
		return nil, err
	}

	return reports, nil
}

func (a *App) newEngine(interval time.Duration, registry *strategy.Registry) (*backtest.Engine, error) {
	mode, err := backtest.ParsePositionMode(a.cfg.Backtest.PositionMode)
	if err != nil {
		return nil, err
	}

	barsPerYear := a.cfg.Backtest.BarsPerYear
	if barsPerYear <= 0 {
		barsPerYear = backtest.BarsPerYear(interval)
	}

	return backtest.NewEngine(backtest.Config{
		FeeRate:       a.cfg.Backtest.FeeRate,
		SlippageBps:   a.cfg.Backtest.SlippageBps,
		PositionMode:  mode,
		InitialEquity: a.cfg.Backtest.InitialEquity,
	}, barsPerYear, registry, a.logger)
}

func (a *App) persist(ctx context.Context, cfg backtest.Config, bars int, reports []backtest.Report) error {
	if a.store == nil {
		return nil
	}

	now := a.now()
	for _, r := range reports {
		if _, err := a.store.SaveRun(ctx, store.RunRecord{
			CreatedAt:    now,
			Strategy:     r.Strategy,
			Symbol:       a.cfg.Exchange.Symbol,
			Timeframe:    a.cfg.Exchange.Timeframe,
			PositionMode: string(cfg.PositionMode),
			FeeRate:      cfg.FeeRate,
			Bars:         bars,
			Trades:       r.Result.Trades,
			FinalEquity:  r.Result.FinalEquity,
			Metrics:      r.Metrics,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) export(reports []backtest.Report) error {
	out := a.cfg.Output
	if out.CSVDir == "" && out.ParquetDir == "" {
		return nil
	}

	var errs error
	for _, r := range reports {
		if out.CSVDir != "" {
			path := filepath.Join(out.CSVDir, report.FileName(a.cfg.Exchange.Symbol, a.cfg.Exchange.Timeframe, r.Strategy, "csv"))
			if err := report.WriteCSVFile(path, r.Result.Frame); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			a.logger.Info("已导出 CSV", zap.String("strategy", r.Strategy), zap.String("path", path))
		}
		if out.ParquetDir != "" {
			path := filepath.Join(out.ParquetDir, report.FileName(a.cfg.Exchange.Symbol, a.cfg.Exchange.Timeframe, r.Strategy, "parquet"))
			if err := report.WriteParquetFile(path, r.Result.Frame); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			a.logger.Info("已导出 Parquet", zap.String("strategy", r.Strategy), zap.String("path", path))
		}
	}
	if errs != nil {
		return fmt.Errorf("导出回测结果失败: %w", errs)
	}
	return nil
}
