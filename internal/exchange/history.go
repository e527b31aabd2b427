package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"quantlab/internal/market"
)

// FetchRange 自 since 起按 limit_per_call 分页下载，游标推进到上一页最后一根之后一个周期，
// 遇到空页或游标越过 until 时停止。结果按时间去重、升序排列并截取到 [since, until)。
func (c *Client) FetchRange(ctx context.Context, since, until time.Time) ([]market.Bar, error) {
	if !since.Before(until) {
		return nil, fmt.Errorf("exchange: since %s 必须早于 until %s", since.Format(time.RFC3339), until.Format(time.RFC3339))
	}

	step := c.interval.Milliseconds()
	cursor := since.UnixMilli()
	end := until.UnixMilli()

	var (
		all   []market.Bar
		pages int
	)

	for {
		page, err := c.fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		pages++
		all = append(all, page...)

		next := page[len(page)-1].Timestamp.UnixMilli() + step
		if next <= cursor {
			c.logger.Warn("分页游标未前进，停止下载",
				zap.String("symbol", c.symbol),
				zap.Int64("cursor", cursor),
			)
			break
		}
		cursor = next

		c.logger.Debug("下载K线分页完成",
			zap.String("symbol", c.symbol),
			zap.String("timeframe", c.timeframe),
			zap.Int("page", pages),
			zap.Int("bars", len(page)),
			zap.Time("cursor", time.UnixMilli(cursor).UTC()),
		)

		if cursor >= end {
			break
		}
	}

	bars := market.Window(Dedupe(all), since, until)
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	c.logger.Info("历史K线下载完成",
		zap.String("symbol", c.symbol),
		zap.String("timeframe", c.timeframe),
		zap.Int("pages", pages),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

// Dedupe 按时间戳去重（保留首次出现）并升序排序。
func Dedupe(bars []market.Bar) []market.Bar {
	seen := make(map[int64]struct{}, len(bars))
	out := make([]market.Bar, 0, len(bars))
	for _, bar := range bars {
		key := bar.Timestamp.UnixMilli()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, bar)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
