package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"quantlab/internal/backtest"
)

// 定长格式保证按字符串排序即按时间排序。
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord 为一次策略回测的持久化摘要。
type RunRecord struct {
	ID           int64
	CreatedAt    time.Time
	Strategy     string
	Symbol       string
	Timeframe    string
	PositionMode string
	FeeRate      float64
	Bars         int
	Trades       int
	FinalEquity  float64
	Metrics      backtest.Metrics
}

// SaveRun 写入一条回测记录并返回自增 ID。NaN 指标存为 NULL。
func (s *Store) SaveRun(ctx context.Context, run RunRecord) (int64, error) {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO backtest_runs (created_at, strategy, symbol, timeframe, position_mode, fee_rate, bars, trades,
			final_equity, cumulative_return, max_drawdown, annual_return, annual_volatility, sharpe, win_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt.UTC().Format(createdAtLayout),
		run.Strategy, run.Symbol, run.Timeframe, run.PositionMode, run.FeeRate, run.Bars, run.Trades,
		nullable(run.FinalEquity),
		nullable(run.Metrics.CumulativeReturn),
		nullable(run.Metrics.MaxDrawdown),
		nullable(run.Metrics.AnnualReturn),
		nullable(run.Metrics.AnnualVolatility),
		nullable(run.Metrics.Sharpe),
		nullable(run.Metrics.WinRate),
	)
	if err != nil {
		return 0, fmt.Errorf("store: 写入回测记录失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: 获取回测记录 ID 失败: %w", err)
	}
	return id, nil
}

// ListRuns 按时间倒序返回最近的回测记录，strategy 为空时返回全部策略。
func (s *Store) ListRuns(ctx context.Context, strategy string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, created_at, strategy, symbol, timeframe, position_mode, fee_rate, bars, trades,
			final_equity, cumulative_return, max_drawdown, annual_return, annual_volatility, sharpe, win_rate
		 FROM backtest_runs`
	args := []any{}
	if strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, strategy)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: 查询回测记录失败: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run       RunRecord
			createdAt string
			values    [7]sql.NullFloat64
		)
		if err := rows.Scan(
			&run.ID, &createdAt, &run.Strategy, &run.Symbol, &run.Timeframe, &run.PositionMode,
			&run.FeeRate, &run.Bars, &run.Trades,
			&values[0], &values[1], &values[2], &values[3], &values[4], &values[5], &values[6],
		); err != nil {
			return nil, fmt.Errorf("store: 读取回测记录失败: %w", err)
		}

		ts, err := time.Parse(createdAtLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: 解析回测时间失败: %w", err)
		}
		run.CreatedAt = ts
		run.FinalEquity = fromNullable(values[0])
		run.Metrics = backtest.Metrics{
			CumulativeReturn: fromNullable(values[1]),
			MaxDrawdown:      fromNullable(values[2]),
			AnnualReturn:     fromNullable(values[3]),
			AnnualVolatility: fromNullable(values[4]),
			Sharpe:           fromNullable(values[5]),
			WinRate:          fromNullable(values[6]),
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历回测记录失败: %w", err)
	}
	return runs, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
