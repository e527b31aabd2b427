package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"quantlab/internal/config"
	"quantlab/internal/frame"
	"quantlab/internal/market"
)

func closeFrame(t *testing.T, closes ...float64) *frame.Frame {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Timestamp: start.Add(time.Duration(i) * 15 * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	f, err := frame.FromBars(bars)
	if err != nil {
		t.Fatalf("FromBars returned error: %v", err)
	}
	return f
}

func signalOf(t *testing.T, f *frame.Frame) []float64 {
	t.Helper()
	sig, ok := f.Column(frame.ColumnSignal)
	if !ok {
		t.Fatalf("signal column missing, columns=%v", f.Columns())
	}
	return sig
}

func assertSignals(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("signal length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("signal[%d] = %v, want %v (all=%v)", i, got[i], want[i], got)
		}
	}
}

func TestSMACrossFlipsWhenShortMeanExceedsLong(t *testing.T) {
	f := closeFrame(t, 1, 2, 3, 4, 5, 6)
	out, err := SMACross{Short: 2, Long: 3}.Generate(f)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	assertSignals(t, signalOf(t, out), []float64{0, 0, 1, 1, 1, 1})

	long, _ := out.Column("sma_long")
	if !math.IsNaN(long[1]) || long[2] != 2 {
		t.Errorf("unexpected sma_long %v", long)
	}
	if f.Has(frame.ColumnSignal) {
		t.Errorf("Generate mutated its input")
	}
}

func TestSMACrossShortSignal(t *testing.T) {
	out, err := SMACross{Short: 2, Long: 3}.Generate(closeFrame(t, 6, 5, 4, 3))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	assertSignals(t, signalOf(t, out), []float64{0, 0, -1, -1})
}

func TestEMACross(t *testing.T) {
	out, err := EMACross{Short: 2, Long: 4}.Generate(closeFrame(t, 1, 1, 2, 3, 2, 1, 1))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	sig := signalOf(t, out)
	short, _ := out.Column("ema_short")
	long, _ := out.Column("ema_long")
	for i := range sig {
		want := 0.0
		if short[i] > long[i] {
			want = 1
		} else if short[i] < long[i] {
			want = -1
		}
		if sig[i] != want {
			t.Errorf("signal[%d] = %v, want %v", i, sig[i], want)
		}
	}
	// 首根 EMA 相等
	if sig[0] != 0 {
		t.Errorf("first bar should be flat, got %v", sig[0])
	}
}

func TestRSIReversion(t *testing.T) {
	out, err := RSIReversion{Period: 2, Low: 30, High: 70}.Generate(closeFrame(t, 5, 4, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	// rsi: NaN NaN 0 50 75 87.5
	assertSignals(t, signalOf(t, out), []float64{0, 0, 1, 0, -1, -1})
}

func TestBollingerReversion(t *testing.T) {
	out, err := BollingerReversion{Window: 3, NStd: 1}.Generate(closeFrame(t, 10, 10, 10, 20, 10, 0))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	sig := signalOf(t, out)
	high, _ := out.Column("bb_high")
	low, _ := out.Column("bb_low")
	if sig[3] != -1 {
		t.Errorf("expected short above upper band at 3, close=20 upper=%v", high[3])
	}
	if sig[5] != 1 {
		t.Errorf("expected long below lower band at 5, close=0 lower=%v", low[5])
	}
	if sig[0] != 0 || sig[1] != 0 {
		t.Errorf("warm-up bars must be flat: %v", sig)
	}
}

func TestDonchianBreakoutUsesPriorChannel(t *testing.T) {
	out, err := DonchianBreakout{Channel: 2}.Generate(closeFrame(t, 1, 1, 1, 2, 2, 3, 0.5))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	// high channel: NaN 1 1 2 2 3 3 -> prior: NaN NaN 1 1 2 2 3
	// low channel:  NaN 1 1 1 2 2 0.5 -> prior: NaN NaN 1 1 1 2 2
	assertSignals(t, signalOf(t, out), []float64{0, 0, 0, 1, 0, 1, -1})

	high, _ := out.Column("donchian_high")
	if high[3] != 2 {
		t.Errorf("channel should include the current bar, got %v", high[3])
	}
}

func TestMACDCrossWarmupIsFlat(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out, err := DefaultMACDCross().Generate(closeFrame(t, closes...))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	sig := signalOf(t, out)
	signalLine, _ := out.Column("macd_signal")
	for i := range sig {
		if math.IsNaN(signalLine[i]) && sig[i] != 0 {
			t.Errorf("bar %d has undefined indicator but signal %v", i, sig[i])
		}
	}
	if !out.Has("macd_hist") {
		t.Errorf("expected macd_hist column")
	}
}

func TestConstantPriceYieldsNoSignal(t *testing.T) {
	r := Defaults()
	for _, price := range []float64{42, 0.1, 0.3, 0.07, 1.1, 3.3, 7.7, 30123.45, 61234.567} {
		closes := make([]float64, 300)
		for i := range closes {
			closes[i] = price
		}
		f := closeFrame(t, closes...)
		for _, name := range r.List() {
			s, err := r.Get(name)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", name, err)
			}
			out, err := s.Generate(f)
			if err != nil {
				t.Fatalf("%s: Generate returned error: %v", name, err)
			}
			nonzero := 0
			for _, v := range signalOf(t, out) {
				if v != 0 {
					nonzero++
				}
			}
			if nonzero != 0 {
				t.Errorf("%s: %d nonzero signals at constant price %v", name, nonzero, price)
			}
		}
	}
}

func TestBollingerReversionLowPriceBandsKeepWidth(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 2.0005e-5 + 5e-9
		if i%2 == 1 {
			closes[i] = 2.0005e-5 - 5e-9
		}
	}
	out, err := DefaultBollingerReversion().Generate(closeFrame(t, closes...))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	mid, _ := out.Column("bb_mid")
	high, _ := out.Column("bb_high")
	if width := high[len(high)-1] - mid[len(mid)-1]; math.Abs(width-1e-8) > 1e-12 {
		t.Fatalf("upper band width = %v, want 1e-8", width)
	}
	for i, v := range signalOf(t, out) {
		if v != 0 {
			t.Fatalf("signal[%d] = %v, closes stay inside the bands", i, v)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := Defaults()
	want := []string{"bbands", "breakout", "ema", "macd", "rsi", "sma"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := r.Get("nonexistent"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestInvalidParameters(t *testing.T) {
	f := closeFrame(t, 1, 2, 3)
	cases := []Strategy{
		SMACross{Short: 0, Long: 3},
		EMACross{Short: 2, Long: -1},
		RSIReversion{Period: 14, Low: 70, High: 30},
		MACDCross{Fast: 0, Slow: 0, Signal: 0},
		BollingerReversion{Window: 20, NStd: 0},
		DonchianBreakout{Channel: 0},
	}
	for _, s := range cases {
		if _, err := s.Generate(f); err == nil {
			t.Errorf("%s: expected validation error for %+v", s.Name(), s)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.StrategiesConfig{
		SMA:      config.CrossConfig{Short: 5, Long: 10},
		EMA:      config.CrossConfig{Short: 5, Long: 10},
		RSI:      config.RSIConfig{Period: 14, Low: 30, High: 70},
		MACD:     config.MACDConfig{Fast: 12, Slow: 26, Signal: 9},
		BBands:   config.BollingerConfig{Window: 20, NStd: 2},
		Breakout: config.BreakoutConfig{Channel: 0},
	}
	r, err := FromConfig(cfg)
	if err == nil {
		t.Fatalf("expected error for invalid breakout channel")
	}
	if len(r.List()) != 5 {
		t.Fatalf("expected 5 valid strategies, got %v", r.List())
	}
	s, err := r.Get("sma")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sma := s.(SMACross); sma.Short != 5 || sma.Long != 10 {
		t.Errorf("unexpected sma params %+v", sma)
	}
}
