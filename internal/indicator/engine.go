// Package indicator provides incremental technical indicator state over
// candle data: EMA(21), EMA(34) and session-cumulative VWAP.
//
// The Engine is pure arithmetic over engine-local running state; it never
// fails and performs no I/O. Designed for single-goroutine usage, no locks.
package indicator

import "algotrader/internal/model"

// Engine decorates incoming candles with EMA21, EMA34 and VWAP values.
type Engine struct {
	ema21 *EMA
	ema34 *EMA
	vwap  *VWAP
}

// NewEngine creates an indicator engine with the strategy's fixed periods.
func NewEngine() *Engine {
	return &Engine{
		ema21: NewEMA(21),
		ema34: NewEMA(34),
		vwap:  NewVWAP(),
	}
}

// Update advances all indicator state with the candle and returns the same
// candle decorated with 2-decimal-rounded values.
func (e *Engine) Update(c model.Candle) model.Candle {
	e.ema21.Update(c.Close)
	e.ema34.Update(c.Close)
	e.vwap.Update(c.High, c.Low, c.Close, c.Volume)

	c.EMA21 = model.Round2(e.ema21.Value())
	c.EMA34 = model.Round2(e.ema34.Value())
	c.VWAP = model.Round2(e.vwap.Value())
	return c
}

// VWAP returns the current session VWAP (rounded), for tick snapshots.
func (e *Engine) VWAP() float64 {
	return model.Round2(e.vwap.Value())
}

// Reset clears all indicator state. Used on session restart.
func (e *Engine) Reset() {
	e.ema21.Reset()
	e.ema34.Reset()
	e.vwap.Reset()
}
