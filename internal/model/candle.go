package model

import (
	"encoding/json"
	"math"
	"time"
)

// Candle represents a single 5-minute OHLC candle for the traded index.
// Prices are rupee floats rounded to 2 decimals. After the indicator engine
// has decorated it, EMA21/EMA34/VWAP carry the session indicator values.
type Candle struct {
	TS     time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`

	// Indicator decoration (set once, then immutable)
	EMA21 float64 `json:"ema21,omitempty"`
	EMA34 float64 `json:"ema34,omitempty"`
	VWAP  float64 `json:"vwap,omitempty"`
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool {
	return c.Close > c.Open
}

// Body returns the absolute open-close span.
func (c *Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// UpperShadow returns the wick above the body.
func (c *Candle) UpperShadow() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerShadow returns the wick below the body.
func (c *Candle) LowerShadow() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Round2 rounds a price to 2 decimal places. All derived prices in the
// pipeline (indicators, stops, PnL) are stored at this precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
