package model

import "time"

// ExitReason enumerates why a position was closed. Evaluation order in the
// exit evaluator is significant; these are the emitted reason strings.
type ExitReason string

const (
	ExitSLHit        ExitReason = "SL_HIT"
	ExitShootingStar ExitReason = "SHOOTING_STAR_EXIT"
	ExitSwingLow     ExitReason = "SWING_LOW_EXIT"
	ExitVWAP         ExitReason = "VWAP_EXIT"
	ExitTimeAll      ExitReason = "TIME_EXIT_3_10"
	ExitTimePreClose ExitReason = "TIME_EXIT_2_55_BREACH"
	ExitManual       ExitReason = "MANUAL"
)

// ExitRecord is the realized outcome of a closed position.
// PnL = (exit_price − entry_price) × quantity, both rounded to 2 decimals.
type ExitRecord struct {
	TradeID   int64      `json:"trade_id"`
	ExitPrice float64    `json:"exit_price"`
	ExitTime  time.Time  `json:"time_of_exit"`
	Reason    ExitReason `json:"reason"`
	PnL       float64    `json:"pnl"`
}
