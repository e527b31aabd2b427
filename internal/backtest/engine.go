package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quantlab/internal/frame"
	"quantlab/internal/strategy"
)

// Report 为单个策略的回测结果与绩效。
type Report struct {
	Strategy string
	Metrics  Metrics
	Result   Result
}

// Engine 串联信号生成、向量化回测与绩效汇总。
type Engine struct {
	cfg         Config
	barsPerYear float64
	registry    *strategy.Registry
	logger      *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, barsPerYear float64, registry *strategy.Registry, logger *zap.Logger) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("backtest: strategy registry 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SlippageBps != 0 {
		logger.Warn("slippage_bps 已配置但不参与收益计算",
			zap.Float64("slippage_bps", cfg.SlippageBps),
		)
	}

	return &Engine{
		cfg:         cfg,
		barsPerYear: barsPerYear,
		registry:    registry,
		logger:      logger,
	}, nil
}

// Config 返回归一化后的配置。
func (e *Engine) Config() Config {
	return e.cfg
}

// Run 对单个策略执行完整回测流程。
func (e *Engine) Run(ctx context.Context, name string, bars *frame.Frame) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	s, err := e.registry.Get(name)
	if err != nil {
		return Report{}, err
	}

	withSignal, err := s.Generate(bars)
	if err != nil {
		return Report{}, fmt.Errorf("backtest: 策略 %s 生成信号失败: %w", name, err)
	}

	result, err := Simulate(withSignal, e.cfg)
	if err != nil {
		return Report{}, fmt.Errorf("backtest: 策略 %s 回测失败: %w", name, err)
	}

	metrics := Summarize(result.Equity, result.Returns, e.barsPerYear)

	e.logger.Debug("策略回测完成",
		zap.String("strategy", name),
		zap.Int("bars", bars.Len()),
		zap.Int("trades", result.Trades),
		zap.Float64("final_equity", result.FinalEquity),
		zap.Float64("sharpe", metrics.Sharpe),
	)

	return Report{Strategy: name, Metrics: metrics, Result: result}, nil
}

// RunAll 并发回测注册表中的全部策略，按 sharpe 降序返回，NaN 排在最后。
// 各策略只读共享同一张输入表。
func (e *Engine) RunAll(ctx context.Context, bars *frame.Frame) ([]Report, error) {
	names := e.registry.List()
	reports := make([]Report, len(names))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		group.Go(func() error {
			report, err := e.Run(groupCtx, name, bars)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	RankBySharpe(reports)

	e.logger.Info("全部策略回测完成",
		zap.Int("strategies", len(reports)),
		zap.String("best", bestName(reports)),
	)
	return reports, nil
}

// RankBySharpe 按 sharpe 降序稳定排序，NaN 置后，同值按名称排序。
func RankBySharpe(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i].Metrics.Sharpe, reports[j].Metrics.Sharpe
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return reports[i].Strategy < reports[j].Strategy
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case a != b:
			return a > b
		default:
			return reports[i].Strategy < reports[j].Strategy
		}
	})
}

func bestName(reports []Report) string {
	if len(reports) == 0 {
		return ""
	}
	return reports[0].Strategy
}
