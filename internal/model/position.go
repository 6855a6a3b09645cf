package model

import "time"

// Mode selects simulated vs real order execution.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeLive  Mode = "LIVE"
)

// Position is the single open trade. Exactly one may exist at a time.
// CurrentSL is the only mutable field and never decreases.
type Position struct {
	TradeID    int64     `json:"trade_id"` // session-monotonic
	JournalID  int64     `json:"-"`        // trade journal row id
	Symbol     string    `json:"symbol"`
	Mode       Mode      `json:"mode"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   int64     `json:"quantity"`
	InitialSL  float64   `json:"initial_sl"`
	CurrentSL  float64   `json:"current_sl"`
	SignalHigh float64   `json:"signal_high"`
	SignalLow  float64   `json:"signal_low"`
	EntryTime  time.Time `json:"time_of_entry"`
}

// Risk returns the initial risk unit R = entry − initial stop.
func (p *Position) Risk() float64 {
	return p.EntryPrice - p.InitialSL
}
