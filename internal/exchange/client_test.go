package exchange

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"quantlab/internal/config"
	"quantlab/internal/market"
)

type fakePages struct {
	interval time.Duration
	until    int64
	limit    int64
	calls    []int64
	failures int
	failWith error
}

func (f *fakePages) fetch(since int64, limit int64) ([]ccxt.OHLCV, error) {
	f.calls = append(f.calls, since)
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}

	step := f.interval.Milliseconds()
	var out []ccxt.OHLCV
	for ts := since; ts < f.until && int64(len(out)) < limit; ts += step {
		price := float64(ts/step%100) + 100
		out = append(out, ccxt.OHLCV{
			Timestamp: ts,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
		})
	}
	return out, nil
}

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		Name:         "binance",
		Symbol:       "BTC/USDT",
		Timeframe:    "15m",
		LimitPerCall: 4,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}
}

func TestFetchRangePaginates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := start.Add(10 * 15 * time.Minute)

	pages := &fakePages{interval: 15 * time.Minute, until: until.UnixMilli()}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	bars, err := client.FetchRange(context.Background(), start, until)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(bars) != 10 {
		t.Fatalf("expected 10 bars, got %d", len(bars))
	}
	if len(pages.calls) != 3 {
		t.Fatalf("expected 3 page requests, got %d", len(pages.calls))
	}
	if want := start.Add(4 * 15 * time.Minute).UnixMilli(); pages.calls[1] != want {
		t.Fatalf("second cursor = %d, want %d", pages.calls[1], want)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Fatalf("bars not ascending at %d", i)
		}
	}
	if bars[0].Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps")
	}
}

func TestFetchRangeTrimsPastUntil(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := start.Add(10 * 15 * time.Minute)

	// 交易所最后一页会返回 until 之后的K线
	pages := &fakePages{interval: 15 * time.Minute, until: start.Add(12 * 15 * time.Minute).UnixMilli()}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	bars, err := client.FetchRange(context.Background(), start, until)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(bars) != 10 {
		t.Fatalf("expected 10 bars inside [since, until), got %d", len(bars))
	}
	if last := bars[len(bars)-1].Timestamp; !last.Before(until) {
		t.Fatalf("last bar %v not before until %v", last, until)
	}
}

func TestFetchRangeNoData(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pages := &fakePages{interval: 15 * time.Minute, until: start.UnixMilli()}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	_, err = client.FetchRange(context.Background(), start, start.Add(time.Hour))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchRangeRejectsInvertedRange(t *testing.T) {
	pages := &fakePages{interval: 15 * time.Minute}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	now := time.Now()
	if _, err := client.FetchRange(context.Background(), now, now.Add(-time.Hour)); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if len(pages.calls) != 0 {
		t.Fatalf("no request expected, got %d", len(pages.calls))
	}
}

func TestFetchRetriesNetworkError(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := start.Add(2 * 15 * time.Minute)
	pages := &fakePages{
		interval: 15 * time.Minute,
		until:    until.UnixMilli(),
		failures: 2,
		failWith: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	bars, err := client.FetchRange(context.Background(), start, until)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if len(pages.calls) != 3 {
		t.Fatalf("expected 2 failed + 1 successful request, got %d", len(pages.calls))
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	pages := &fakePages{
		interval: 15 * time.Minute,
		failures: 10,
		failWith: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("timeout")},
	}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := client.FetchRange(context.Background(), start, start.Add(time.Hour)); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if len(pages.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(pages.calls))
	}
}

func TestFetchDoesNotRetryPermanentError(t *testing.T) {
	pages := &fakePages{
		interval: 15 * time.Minute,
		failures: 1,
		failWith: errors.New("bad symbol"),
	}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := client.FetchRange(context.Background(), start, start.Add(time.Hour)); err == nil {
		t.Fatalf("expected error")
	}
	if len(pages.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(pages.calls))
	}
}

func TestLoadMarketsOnce(t *testing.T) {
	loads := 0
	load := func() error {
		loads++
		return nil
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := start.Add(10 * 15 * time.Minute)
	pages := &fakePages{interval: 15 * time.Minute, until: until.UnixMilli()}
	client, err := newClient(testExchangeConfig(), pages.fetch, load, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	if _, err := client.FetchRange(context.Background(), start, until); err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if loads != 1 {
		t.Fatalf("expected markets loaded once, got %d", loads)
	}
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	pages := &fakePages{interval: 15 * time.Minute}
	client, err := newClient(testExchangeConfig(), pages.fetch, nil, nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := client.FetchRange(ctx, start, start.Add(time.Hour)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewClientUnsupportedExchange(t *testing.T) {
	cfg := testExchangeConfig()
	cfg.Name = "kraken"
	if _, err := NewClient(cfg, nil); !errors.Is(err, ErrUnsupportedExchange) {
		t.Fatalf("expected ErrUnsupportedExchange, got %v", err)
	}
}

func TestNewClientInvalidTimeframe(t *testing.T) {
	cfg := testExchangeConfig()
	cfg.Timeframe = "7x"
	pages := &fakePages{interval: 15 * time.Minute}
	if _, err := newClient(cfg, pages.fetch, nil, nil); err == nil {
		t.Fatalf("expected error for invalid timeframe")
	}
}

func TestDedupe(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bar := func(offset int, close float64) market.Bar {
		return market.Bar{Timestamp: base.Add(time.Duration(offset) * time.Minute), Close: close}
	}

	out := Dedupe([]market.Bar{bar(2, 3), bar(0, 1), bar(1, 2), bar(0, 9)})
	if len(out) != 3 {
		t.Fatalf("expected 3 unique bars, got %d", len(out))
	}
	for i, want := range []float64{1, 2, 3} {
		if out[i].Close != want {
			t.Fatalf("bar %d close = %v, want %v", i, out[i].Close, want)
		}
	}
}

func TestClassify(t *testing.T) {
	maint, retry := classify(&ccxt.Error{Type: ccxt.OnMaintenanceErrType, Message: "system upgrade"})
	if !errors.Is(maint, ErrMaintenance) || retry {
		t.Fatalf("maintenance: err=%v retry=%v", maint, retry)
	}

	if _, retry := classify(&ccxt.Error{Type: ccxt.RateLimitExceededErrType}); !retry {
		t.Fatalf("rate limit should be retried")
	}
	if _, retry := classify(context.DeadlineExceeded); retry {
		t.Fatalf("deadline exceeded should not be retried")
	}
	if _, retry := classify(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}); !retry {
		t.Fatalf("network error should be retried")
	}
}
