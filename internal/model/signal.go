package model

import "time"

// SignalCandle is the currently armed breakout level: the high/low of the
// candle at the second EMA-crossover event. At most one exists at a time.
type SignalCandle struct {
	SignalHigh float64   `json:"signal_high"`
	SignalLow  float64   `json:"signal_low"`
	CandleTime time.Time `json:"candle_time"`
}

// Signal is a derived entry proposal built when price breaks above the armed
// signal high. BuyPrice is signal_high+2; InitialSL is risk-bounded.
type Signal struct {
	Type            string    `json:"type"` // CE_BUY
	SignalHigh      float64   `json:"signal_high"`
	SignalLow       float64   `json:"signal_low"`
	BuyPrice        float64   `json:"buy_price"`
	InitialSL       float64   `json:"initial_sl"`
	SLDistance      float64   `json:"sl_distance"`
	VWAP            float64   `json:"vwap"`
	EMA21           float64   `json:"ema21"`
	EMA34           float64   `json:"ema34"`
	TriggerCandleTS time.Time `json:"trigger_candle_time"`
	SignalCandleTS  time.Time `json:"signal_candle_time"`
}
