package indicator

// EMA calculates an Exponential Moving Average.
// O(1) per update, no window storage needed.
//
// The first observed close seeds the average directly; every later update
// applies ema = close·k + ema·(1−k) with k = 2/(period+1).
type EMA struct {
	period     int
	multiplier float64
	current    float64
	seeded     bool
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds a new closing price and recalculates.
func (e *EMA) Update(close float64) {
	if !e.seeded {
		e.current = close
		e.seeded = true
		return
	}
	e.current = close*e.multiplier + e.current*(1-e.multiplier)
}

// Value returns the current average. Returns 0 before the first update.
func (e *EMA) Value() float64 { return e.current }

// Period returns the smoothing period.
func (e *EMA) Period() int { return e.period }

// Reset clears the EMA state for session restart.
func (e *EMA) Reset() {
	e.current = 0
	e.seeded = false
}
