package market

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptySeries 表示K线序列为空。
	ErrEmptySeries = errors.New("market: K线序列为空")
	// ErrUnorderedSeries 表示时间戳未严格递增。
	ErrUnorderedSeries = errors.New("market: K线时间戳必须严格递增")
)

// Bar 代表单根K线。
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series 将K线数据拆分为便于指标计算的列。
type Series struct {
	Timestamps []time.Time
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
}

// NewSeries 从K线创建 Series，保持输入顺序。
func NewSeries(bars []Bar) Series {
	length := len(bars)
	series := Series{
		Timestamps: make([]time.Time, length),
		Open:       make([]float64, length),
		High:       make([]float64, length),
		Low:        make([]float64, length),
		Close:      make([]float64, length),
		Volume:     make([]float64, length),
	}

	for i := 0; i < length; i++ {
		bar := bars[i]
		series.Timestamps[i] = bar.Timestamp.UTC()
		series.Open[i] = bar.Open
		series.High[i] = bar.High
		series.Low[i] = bar.Low
		series.Close[i] = bar.Close
		series.Volume[i] = bar.Volume
	}

	return series
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Close)
}

// Clone 返回深拷贝。
func (s Series) Clone() Series {
	return Series{
		Timestamps: append([]time.Time(nil), s.Timestamps...),
		Open:       append([]float64(nil), s.Open...),
		High:       append([]float64(nil), s.High...),
		Low:        append([]float64(nil), s.Low...),
		Close:      append([]float64(nil), s.Close...),
		Volume:     append([]float64(nil), s.Volume...),
	}
}

// Validate 校验序列非空、各列等长且时间戳严格递增。缺口不做校验。
func (s Series) Validate() error {
	n := s.Len()
	if n == 0 {
		return ErrEmptySeries
	}
	if len(s.Timestamps) != n || len(s.Open) != n || len(s.High) != n || len(s.Low) != n || len(s.Volume) != n {
		return fmt.Errorf("market: 列长度不一致 (close=%d timestamps=%d)", n, len(s.Timestamps))
	}
	for i := 1; i < n; i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return fmt.Errorf("%w: 第 %d 根 %s 不晚于 %s", ErrUnorderedSeries, i,
				s.Timestamps[i].Format(time.RFC3339), s.Timestamps[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

// Window 返回落在 [since, until) 内的K线，输入需已按时间升序。
func Window(bars []Bar, since, until time.Time) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, bar := range bars {
		if bar.Timestamp.Before(since) || !bar.Timestamp.Before(until) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
