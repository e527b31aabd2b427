package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"quantlab/internal/store"
)

// runView 为 /runs 接口的 JSON 结构，NaN 指标输出为 null。
type runView struct {
	ID               int64    `json:"id"`
	CreatedAt        string   `json:"created_at"`
	Strategy         string   `json:"strategy"`
	Symbol           string   `json:"symbol"`
	Timeframe        string   `json:"timeframe"`
	PositionMode     string   `json:"position_mode"`
	FeeRate          float64  `json:"fee_rate"`
	Bars             int      `json:"bars"`
	Trades           int      `json:"trades"`
	FinalEquity      *float64 `json:"final_equity"`
	CumulativeReturn *float64 `json:"cumulative_return"`
	MaxDrawdown      *float64 `json:"max_drawdown"`
	AnnualReturn     *float64 `json:"annual_return"`
	AnnualVolatility *float64 `json:"annual_volatility"`
	Sharpe           *float64 `json:"sharpe"`
	WinRate          *float64 `json:"win_rate"`
}

func newRunView(r store.RunRecord) runView {
	return runView{
		ID:               r.ID,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
		Strategy:         r.Strategy,
		Symbol:           r.Symbol,
		Timeframe:        r.Timeframe,
		PositionMode:     r.PositionMode,
		FeeRate:          r.FeeRate,
		Bars:             r.Bars,
		Trades:           r.Trades,
		FinalEquity:      finite(r.FinalEquity),
		CumulativeReturn: finite(r.Metrics.CumulativeReturn),
		MaxDrawdown:      finite(r.Metrics.MaxDrawdown),
		AnnualReturn:     finite(r.Metrics.AnnualReturn),
		AnnualVolatility: finite(r.Metrics.AnnualVolatility),
		Sharpe:           finite(r.Metrics.Sharpe),
		WinRate:          finite(r.Metrics.WinRate),
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func runsHandler(s *store.Store, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 200
		if qs := q.Get("limit"); qs != "" {
			if v, err := strconv.Atoi(qs); err == nil && v > 0 {
				if v > 1000 {
					v = 1000
				}
				limit = v
			}
		}

		name := strings.ToLower(strings.TrimSpace(q.Get("strategy")))

		runs, err := s.ListRuns(r.Context(), name, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			logger.Warn("写入回测记录响应失败", zap.Error(err))
		}
	})
	return mux
}

// Serve 在 addr 上提供回测历史查询接口，ctx 结束时关闭。
func (a *App) Serve(ctx context.Context, addr string) error {
	if a.store == nil {
		return errors.New("未初始化数据库，无法提供回测记录接口")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           runsHandler(a.store, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("关闭回测记录接口失败", zap.Error(err))
		}
	}()

	a.logger.Info("回测记录接口已启动", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
