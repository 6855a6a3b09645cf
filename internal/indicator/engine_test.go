package indicator

import (
	"math"
	"testing"
	"time"

	"algotrader/internal/model"
)

func makeCandle(high, low, close float64, volume int64) model.Candle {
	return model.Candle{
		TS:     time.Now().UTC(),
		Open:   close,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

func TestEMA_FirstUpdateSeedsWithClose(t *testing.T) {
	e := NewEMA(21)
	e.Update(22150.55)
	if e.Value() != 22150.55 {
		t.Errorf("expected first EMA = close (22150.55), got %.4f", e.Value())
	}
}

func TestEMA_Recurrence(t *testing.T) {
	e := NewEMA(21)
	e.Update(100)
	e.Update(110)

	k := 2.0 / 22.0
	want := 110*k + 100*(1-k)
	if math.Abs(e.Value()-want) > 1e-9 {
		t.Errorf("expected EMA %.6f, got %.6f", want, e.Value())
	}

	e.Update(95)
	want = 95*k + want*(1-k)
	if math.Abs(e.Value()-want) > 1e-9 {
		t.Errorf("expected EMA %.6f after third update, got %.6f", want, e.Value())
	}
}

func TestEMA_PeriodsUseDistinctMultipliers(t *testing.T) {
	e21 := NewEMA(21)
	e34 := NewEMA(34)
	for _, c := range []float64{100, 120, 90, 130} {
		e21.Update(c)
		e34.Update(c)
	}
	if e21.Value() == e34.Value() {
		t.Error("EMA21 and EMA34 should diverge on a non-constant series")
	}
}

func TestVWAP_TwoCandleSequence(t *testing.T) {
	v := NewVWAP()
	v.Update(10, 8, 9, 100)
	got := v.Update(12, 10, 11, 50)

	// (9·100 + 11·50) / 150 = 9.6667
	want := (9.0*100 + 11.0*50) / 150
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected vwap %.4f, got %.4f", want, got)
	}
	if model.Round2(got) != 9.67 {
		t.Errorf("expected rounded vwap 9.67, got %.2f", model.Round2(got))
	}
}

func TestVWAP_ZeroVolumeFallsBackToClose(t *testing.T) {
	v := NewVWAP()
	got := v.Update(105, 95, 101.5, 0)
	if got != 101.5 {
		t.Errorf("expected vwap = close on zero cumulative volume, got %.2f", got)
	}
}

func TestEngine_DecoratesCandle(t *testing.T) {
	eng := NewEngine()

	c := eng.Update(makeCandle(10, 8, 9, 100))
	if c.EMA21 != 9 || c.EMA34 != 9 {
		t.Errorf("first candle: expected ema21=ema34=close=9, got %.2f / %.2f", c.EMA21, c.EMA34)
	}
	if c.VWAP != 9 {
		t.Errorf("first candle: expected vwap=9, got %.2f", c.VWAP)
	}

	c = eng.Update(makeCandle(12, 10, 11, 50))
	if c.VWAP != 9.67 {
		t.Errorf("second candle: expected vwap=9.67, got %.2f", c.VWAP)
	}
	k21 := 2.0 / 22.0
	want21 := model.Round2(11*k21 + 9*(1-k21))
	if c.EMA21 != want21 {
		t.Errorf("second candle: expected ema21=%.2f, got %.2f", want21, c.EMA21)
	}
}

func TestEngine_ResetClearsSession(t *testing.T) {
	eng := NewEngine()
	eng.Update(makeCandle(10, 8, 9, 100))
	eng.Reset()

	c := eng.Update(makeCandle(20, 18, 19, 10))
	if c.EMA21 != 19 {
		t.Errorf("after reset first candle should seed ema21=19, got %.2f", c.EMA21)
	}
	if c.VWAP != 19 {
		t.Errorf("after reset vwap should restart, got %.2f", c.VWAP)
	}
}
