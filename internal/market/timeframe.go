package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeframeDuration 解析 ccxt 风格的周期字符串，如 1m、15m、1h、4h、1d、1w。
func TimeframeDuration(timeframe string) (time.Duration, error) {
	tf := strings.TrimSpace(timeframe)
	if len(tf) < 2 {
		return 0, fmt.Errorf("market: 无法解析周期 %q", timeframe)
	}

	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("market: 无法解析周期 %q", timeframe)
	}

	var base time.Duration
	switch unit {
	case 's':
		base = time.Second
	case 'm':
		base = time.Minute
	case 'h':
		base = time.Hour
	case 'd':
		base = 24 * time.Hour
	case 'w':
		base = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("market: 不支持的周期单位 %q", timeframe)
	}

	return time.Duration(n) * base, nil
}
