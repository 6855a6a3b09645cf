package indicator

// VWAP maintains the session-cumulative volume-weighted average price.
// Typical price = (high+low+close)/3 weighted by candle volume over the
// entire session, not a rolling window.
type VWAP struct {
	cumVol   float64
	cumTPVol float64
	last     float64
}

// NewVWAP creates a fresh session VWAP accumulator.
func NewVWAP() *VWAP {
	return &VWAP{}
}

// Update feeds one candle's high/low/close/volume and returns the new VWAP.
// Falls back to the close when cumulative volume is zero.
func (v *VWAP) Update(high, low, close float64, volume int64) float64 {
	tp := (high + low + close) / 3
	v.cumVol += float64(volume)
	v.cumTPVol += tp * float64(volume)
	if v.cumVol > 0 {
		v.last = v.cumTPVol / v.cumVol
	} else {
		v.last = close
	}
	return v.last
}

// Value returns the current session VWAP.
func (v *VWAP) Value() float64 { return v.last }

// Reset clears accumulated sums for session restart.
func (v *VWAP) Reset() {
	v.cumVol = 0
	v.cumTPVol = 0
	v.last = 0
}
