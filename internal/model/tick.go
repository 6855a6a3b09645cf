package model

// Tick is an ephemeral quote snapshot: the last traded price plus the
// session VWAP at that moment. Ticks are consumed per cycle and not stored.
type Tick struct {
	LTP  float64 `json:"ltp"`
	VWAP float64 `json:"vwap"`
}
