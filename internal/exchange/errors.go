package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态。
	ErrMaintenance = errors.New("exchange: 交易所维护中")
	// ErrNoData 表示请求区间内没有任何K线。
	ErrNoData = errors.New("exchange: 区间内没有K线数据，请更换时间范围或交易对")
	// ErrUnsupportedExchange 表示未接入该交易所。
	ErrUnsupportedExchange = errors.New("exchange: 不支持的交易所")
)

// classify 归一化下载错误并判断是否值得重试。维护状态包装为 ErrMaintenance 且不重试。
func classify(err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		if message := strings.TrimSpace(ccxtErr.Message); message != "" {
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		}
		return ErrMaintenance, false
	}

	return err, IsRetryable(err)
}

// IsRetryable 判断K线下载错误是否属于网络抖动或限频，可等待后重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ccxtErr *ccxt.Error
	if !errors.As(err, &ccxtErr) {
		var netErr net.Error
		return errors.As(err, &netErr)
	}

	switch ccxtErr.Type {
	case ccxt.RateLimitExceededErrType, ccxt.DDoSProtectionErrType:
		return true
	case ccxt.NetworkErrorErrType, ccxt.RequestTimeoutErrType, ccxt.ExchangeNotAvailableErrType:
		return true
	case ccxt.BadResponseErrType, ccxt.NullResponseErrType:
		return true
	}
	return false
}
