package store

import (
	"context"
	"fmt"
	"time"

	"quantlab/internal/market"
)

// SaveBars 以 (symbol, timeframe, ts) 为主键写入K线，已存在的记录被覆盖。
func (s *Store) SaveBars(ctx context.Context, symbol, timeframe string, bars []market.Bar) (err error) {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: 预编译K线写入语句失败: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err = stmt.ExecContext(ctx,
			symbol, timeframe, bar.Timestamp.UnixMilli(),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		); err != nil {
			return fmt.Errorf("store: 写入K线失败: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交事务失败: %w", err)
	}
	return nil
}

// LoadBars 读取 [from, to) 区间内的K线，按时间升序返回。零值 to 表示不设上限。
func (s *Store) LoadBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]market.Bar, error) {
	upper := int64(1<<63 - 1)
	if !to.IsZero() {
		upper = to.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM bars
		 WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts < ?
		 ORDER BY ts ASC`,
		symbol, timeframe, from.UnixMilli(), upper,
	)
	if err != nil {
		return nil, fmt.Errorf("store: 查询K线失败: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var (
			ts  int64
			bar market.Bar
		)
		if err := rows.Scan(&ts, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("store: 读取K线失败: %w", err)
		}
		bar.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历K线失败: %w", err)
	}
	return bars, nil
}
