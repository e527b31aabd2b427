package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"quantlab/internal/config"
	"quantlab/internal/market"
)

const defaultLimitPerCall = 1000

// pageFunc 拉取自 since（毫秒）起最多 limit 根K线。
type pageFunc func(since int64, limit int64) ([]ccxt.OHLCV, error)

// Client 负责从交易所分页下载历史K线并实现重试机制。
type Client struct {
	cfg       config.ExchangeConfig
	logger    *zap.Logger
	symbol    string
	timeframe string
	interval  time.Duration

	fetchPage   pageFunc
	loadMarkets func() error
	marketsOK   bool
}

// NewClient 按 exchange.name 构造 ccxt 客户端，目前支持 binance 与 binanceusdm。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.Timeout > 0 {
		userConfig["timeout"] = cfg.Timeout
	}

	symbol, timeframe := cfg.Symbol, cfg.Timeframe
	var (
		fetch pageFunc
		load  func() error
	)

	switch strings.ToLower(cfg.Name) {
	case "binance":
		ex := ccxt.NewBinance(userConfig)
		fetch = func(since int64, limit int64) ([]ccxt.OHLCV, error) {
			return ex.FetchOHLCV(symbol,
				ccxt.WithFetchOHLCVTimeframe(timeframe),
				ccxt.WithFetchOHLCVSince(since),
				ccxt.WithFetchOHLCVLimit(limit),
			)
		}
		load = func() error {
			_, err := ex.LoadMarkets()
			return err
		}
	case "binanceusdm":
		userConfig["options"] = map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		}
		ex := ccxt.NewBinanceusdm(userConfig)
		fetch = func(since int64, limit int64) ([]ccxt.OHLCV, error) {
			return ex.FetchOHLCV(symbol,
				ccxt.WithFetchOHLCVTimeframe(timeframe),
				ccxt.WithFetchOHLCVSince(since),
				ccxt.WithFetchOHLCVLimit(limit),
			)
		}
		load = func() error {
			_, err := ex.LoadMarkets()
			return err
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedExchange, cfg.Name)
	}

	return newClient(cfg, fetch, load, logger)
}

func newClient(cfg config.ExchangeConfig, fetch pageFunc, load func() error, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetch == nil {
		return nil, errors.New("exchange: fetch 函数不能为空")
	}
	if load == nil {
		load = func() error { return nil }
	}

	interval, err := market.TimeframeDuration(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	if cfg.LimitPerCall <= 0 {
		cfg.LimitPerCall = defaultLimitPerCall
	}

	return &Client{
		cfg:         cfg,
		logger:      logger,
		symbol:      cfg.Symbol,
		timeframe:   cfg.Timeframe,
		interval:    interval,
		fetchPage:   fetch,
		loadMarkets: load,
	}, nil
}

func (c *Client) fetch(ctx context.Context, since int64) ([]market.Bar, error) {
	var raw []ccxt.OHLCV

	err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", c.timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		result, err := c.fetchPage(since, int64(c.cfg.LimitPerCall))
		if err != nil {
			return err
		}

		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, len(raw))
	for _, item := range raw {
		bars = append(bars, market.Bar{
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}
	return bars, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	if c.marketsOK {
		return nil
	}

	if err := c.callWithRetry(ctx, "load_markets", c.loadMarkets); err != nil {
		return err
	}

	c.marketsOK = true
	c.logger.Info("已完成市场元数据加载", zap.String("symbol", c.symbol))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classify(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := min(delay, maxDelay)

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = min(delay*2, maxDelay)
	}
}
