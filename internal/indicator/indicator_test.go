package indicator

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("%s[%d] = %v, want NaN", name, i, got[i])
			}
			continue
		}
		if !almostEqual(got[i], want[i]) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

var nan = math.NaN()

func TestRollingWindows(t *testing.T) {
	values := []float64{1, 3, 2, 6, 5, 4}

	mean, err := RollingMean(values, 3)
	if err != nil {
		t.Fatalf("RollingMean error: %v", err)
	}
	assertSeries(t, "mean", mean, []float64{nan, nan, 2, 11.0 / 3, 13.0 / 3, 5})

	maxs, _ := RollingMax(values, 3)
	assertSeries(t, "max", maxs, []float64{nan, nan, 3, 6, 6, 6})

	mins, _ := RollingMin(values, 3)
	assertSeries(t, "min", mins, []float64{nan, nan, 1, 2, 2, 4})

	std, _ := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	assertSeries(t, "std", std, []float64{nan, nan, nan, nan, nan, nan, nan, 2})
}

func TestRollingWindowOne(t *testing.T) {
	values := []float64{4, 5, 6}
	mean, _ := RollingMean(values, 1)
	assertSeries(t, "mean", mean, values)
	maxs, _ := RollingMax(values, 1)
	assertSeries(t, "max", maxs, values)
	std, _ := RollingStd(values, 1)
	assertSeries(t, "std", std, []float64{0, 0, 0})
}

func TestRollingShortInputIsUndefined(t *testing.T) {
	mean, err := RollingMean([]float64{1, 2}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSeries(t, "mean", mean, []float64{nan, nan})
}

func TestInvalidWindow(t *testing.T) {
	if _, err := RollingMean([]float64{1}, 0); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := EMA([]float64{1}, -1); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := MACD([]float64{1}, 12, 0, 9); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestEMARecursion(t *testing.T) {
	values := []float64{10, 11, 12, 13}
	got, err := EMA(values, 3)
	if err != nil {
		t.Fatalf("EMA error: %v", err)
	}
	alpha := 0.5
	want := make([]float64, len(values))
	want[0] = values[0]
	for i := 1; i < len(values); i++ {
		want[i] = alpha*values[i] + (1-alpha)*want[i-1]
	}
	assertSeries(t, "ema", got, want)
}

func TestRSIWilder(t *testing.T) {
	got, err := RSI([]float64{1, 2, 1, 2, 3}, 2)
	if err != nil {
		t.Fatalf("RSI error: %v", err)
	}
	assertSeries(t, "rsi", got, []float64{nan, nan, 50, 75, 87.5})
}

func TestRSIEdgeCases(t *testing.T) {
	up, _ := RSI([]float64{1, 2, 3, 4, 5}, 3)
	assertSeries(t, "rsi-up", up, []float64{nan, nan, nan, 100, 100})

	down, _ := RSI([]float64{5, 4, 3, 2, 1}, 3)
	assertSeries(t, "rsi-down", down, []float64{nan, nan, nan, 0, 0})

	flat, _ := RSI([]float64{7, 7, 7, 7}, 2)
	assertSeries(t, "rsi-flat", flat, []float64{nan, nan, 50, 50})

	short, _ := RSI([]float64{1, 2}, 2)
	assertSeries(t, "rsi-short", short, []float64{nan, nan})
}

func TestMACDWarmup(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%7) - float64(i%3)
	}
	res, err := MACD(closes, 3, 6, 4)
	if err != nil {
		t.Fatalf("MACD error: %v", err)
	}

	for i := range closes {
		macdDefined := !math.IsNaN(res.MACD[i])
		signalDefined := !math.IsNaN(res.Signal[i])
		if macdDefined != (i >= 5) {
			t.Errorf("macd[%d] defined=%v", i, macdDefined)
		}
		if signalDefined != (i >= 8) {
			t.Errorf("signal[%d] defined=%v", i, signalDefined)
		}
	}

	fast, _ := EMA(closes, 3)
	slow, _ := EMA(closes, 6)
	if !almostEqual(res.MACD[10], fast[10]-slow[10]) {
		t.Errorf("macd[10] = %v, want %v", res.MACD[10], fast[10]-slow[10])
	}
	if !almostEqual(res.Histogram[20], res.MACD[20]-res.Signal[20]) {
		t.Errorf("histogram mismatch at 20")
	}
}

func TestBollingerConstantPrice(t *testing.T) {
	closes := []float64{5, 5, 5, 5}
	res, err := Bollinger(closes, 2, 2)
	if err != nil {
		t.Fatalf("Bollinger error: %v", err)
	}
	assertSeries(t, "mid", res.Middle, []float64{nan, 5, 5, 5})
	assertSeries(t, "upper", res.Upper, []float64{nan, 5, 5, 5})
	assertSeries(t, "lower", res.Lower, []float64{nan, 5, 5, 5})

	if _, err := Bollinger(closes, 2, -1); err == nil {
		t.Errorf("expected error for negative n_std")
	}
}

func TestRollingNonRoundConstant(t *testing.T) {
	values := make([]float64, 500)
	for i := range values {
		values[i] = 0.1
	}
	mean, err := RollingMean(values, 20)
	if err != nil {
		t.Fatalf("RollingMean error: %v", err)
	}
	std, err := RollingStd(values, 20)
	if err != nil {
		t.Fatalf("RollingStd error: %v", err)
	}
	for i := 19; i < len(values); i++ {
		if mean[i] != 0.1 || std[i] != 0 {
			t.Fatalf("index %d: mean=%v std=%v, want exactly 0.1 and 0", i, mean[i], std[i])
		}
	}
}

func TestRollingStdLowMagnitude(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = 2.0005e-5 + 5e-9
		if i%2 == 1 {
			values[i] = 2.0005e-5 - 5e-9
		}
	}
	std, err := RollingStd(values, 20)
	if err != nil {
		t.Fatalf("RollingStd error: %v", err)
	}
	for i := 19; i < len(values); i++ {
		if math.Abs(std[i]-5e-9)/5e-9 > 1e-6 {
			t.Fatalf("std[%d] = %v, want 5e-9", i, std[i])
		}
	}
}

func TestBollingerBands(t *testing.T) {
	res, err := Bollinger([]float64{1, 3}, 2, 2)
	if err != nil {
		t.Fatalf("Bollinger error: %v", err)
	}
	// mean 2, population std 1
	assertSeries(t, "upper", res.Upper, []float64{nan, 4})
	assertSeries(t, "lower", res.Lower, []float64{nan, 0})
}

func TestDonchian(t *testing.T) {
	highs := []float64{2, 4, 3, 5}
	lows := []float64{1, 2, 0.5, 3}
	res, err := Donchian(highs, lows, 2)
	if err != nil {
		t.Fatalf("Donchian error: %v", err)
	}
	assertSeries(t, "high", res.High, []float64{nan, 4, 4, 5})
	assertSeries(t, "low", res.Low, []float64{nan, 1, 0.5, 0.5})

	if _, err := Donchian(highs, lows[:2], 2); err == nil {
		t.Errorf("expected length mismatch error")
	}
}

func TestShift(t *testing.T) {
	assertSeries(t, "shift", Shift([]float64{1, 2, 3}, 1, nan), []float64{nan, 1, 2})
}
