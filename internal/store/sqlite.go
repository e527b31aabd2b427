package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"quantlab/internal/config"
)

// Store 封装 SQLite 连接，缓存K线并记录回测结果。
type Store struct {
	db *sql.DB
}

// NewSQLite 根据配置初始化 SQLite 存储并建表。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	if cfg.InMemory {
		// 每个 :memory: 连接都是独立数据库
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

		if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
		}
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite 同步级别失败: %w", err)
	}

	s := &Store{db: conn}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			ts INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (symbol, timeframe, ts)
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			position_mode TEXT NOT NULL,
			fee_rate REAL NOT NULL,
			bars INTEGER NOT NULL,
			trades INTEGER NOT NULL,
			final_equity REAL,
			cumulative_return REAL,
			max_drawdown REAL,
			annual_return REAL,
			annual_volatility REAL,
			sharpe REAL,
			win_rate REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_strategy ON backtest_runs(strategy);`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: 初始化表结构失败: %w", err)
		}
	}
	return nil
}

// DB 返回底层 *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}
