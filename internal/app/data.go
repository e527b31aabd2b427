package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantlab/internal/market"
)

// window 计算下载区间：until 缺省为当前时间按周期取整，since 缺省为 until 向前 years 年。
func (a *App) window(interval time.Duration) (time.Time, time.Time) {
	until := a.cfg.Exchange.Until
	if until.IsZero() {
		until = a.now().UTC().Truncate(interval)
	}
	since := a.cfg.Exchange.Since
	if since.IsZero() {
		since = until.AddDate(-a.cfg.Exchange.Years, 0, 0)
	}
	return since.UTC(), until.UTC()
}

// loadBars 优先读取缓存，缓存未覆盖区间时从交易所下载并回写缓存。
func (a *App) loadBars(ctx context.Context, interval time.Duration, refresh bool) ([]market.Bar, error) {
	since, until := a.window(interval)
	symbol, timeframe := a.cfg.Exchange.Symbol, a.cfg.Exchange.Timeframe

	if a.store != nil && !refresh {
		cached, err := a.store.LoadBars(ctx, symbol, timeframe, since, until)
		if err != nil {
			return nil, err
		}
		if covers(cached, since, until, interval) {
			a.logger.Info("使用缓存K线",
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe),
				zap.Int("bars", len(cached)),
			)
			return cached, nil
		}
		if len(cached) > 0 {
			a.logger.Info("缓存K线未覆盖请求区间，重新下载",
				zap.String("symbol", symbol),
				zap.Int("cached", len(cached)),
			)
		}
	}

	if a.source == nil {
		return nil, errors.New("未配置行情来源，且缓存不可用")
	}

	bars, err := a.source.FetchRange(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("下载K线失败: %w", err)
	}
	bars = market.Window(bars, since, until)
	if len(bars) == 0 {
		return nil, fmt.Errorf("区间 [%s, %s) 内没有K线", since.Format(time.RFC3339), until.Format(time.RFC3339))
	}

	if a.store != nil {
		if err := a.store.SaveBars(ctx, symbol, timeframe, bars); err != nil {
			a.logger.Warn("写入K线缓存失败", zap.Error(err))
		}
	}

	return bars, nil
}

// covers 判断缓存首尾是否贴近请求区间，允许首尾各缺一个周期。
func covers(bars []market.Bar, since, until time.Time, interval time.Duration) bool {
	if len(bars) == 0 {
		return false
	}
	first := bars[0].Timestamp
	last := bars[len(bars)-1].Timestamp
	return !first.After(since.Add(interval)) && !last.Before(until.Add(-2*interval))
}
