package strategy

import (
	"time"

	"algotrader/internal/markethours"
	"algotrader/internal/model"
	"algotrader/internal/session"
)

// Shooting-star shape thresholds: long upper wick, negligible lower wick.
const (
	shootingStarUpperRatio = 3.0
	shootingStarLowerRatio = 0.2
	swingLowWindow         = 3
)

// ExitEvaluator checks the exit rules for an open position in strict
// priority order; the first matching rule wins and the rest are skipped for
// the cycle. It remembers the previous candle and any detected shooting-star
// candle across cycles.
type ExitEvaluator struct {
	prevCandle   *model.Candle
	shootingStar *model.Candle
}

// NewExitEvaluator creates a fresh evaluator.
func NewExitEvaluator() *ExitEvaluator {
	return &ExitEvaluator{}
}

// Reset clears remembered candles (session restart).
func (e *ExitEvaluator) Reset() {
	e.prevCandle = nil
	e.shootingStar = nil
}

// Check evaluates all exit rules. history is the session candle buffer
// (time-ascending) and now is the wall clock for the timed rules. Returns
// the empty reason when no rule matches; only then is the current candle
// recorded for the next cycle's shooting-star check.
func (e *ExitEvaluator) Check(pos *model.Position, candle model.Candle, tick model.Tick, history []model.Candle, now time.Time, set session.Settings) model.ExitReason {
	ltp := tick.LTP

	// A. Stop-loss hit.
	if ltp <= pos.CurrentSL {
		return model.ExitSLHit
	}

	// B. Shooting-star reversal: remember the pattern candle, exit when the
	// current candle's low breaks below its low.
	if e.prevCandle != nil {
		if IsShootingStar(*e.prevCandle) {
			e.shootingStar = e.prevCandle
		}
		if e.shootingStar != nil && candle.Low < e.shootingStar.Low {
			return model.ExitShootingStar
		}
	}

	// C. Swing-low break over the last three candles.
	if low, ok := swingLow(history); ok && ltp < low {
		return model.ExitSwingLow
	}

	// D. VWAP exit, with a carve-out for a strong green candle reclaiming
	// VWAP above the original signal level.
	if set.VWAPExitEnabled && tick.VWAP > 0 && ltp < tick.VWAP {
		if !(candle.Bullish() && ltp > pos.SignalHigh) {
			return model.ExitVWAP
		}
	}

	// E. Timed exits.
	if exitAll, err := markethours.ParseHHMM(set.ExitAllTime); err == nil {
		if markethours.Minute(now) >= exitAll {
			return model.ExitTimeAll
		}
	}
	if preExit, err := markethours.ParseHHMM(set.PreExitCandleTime); err == nil {
		if markethours.Minute(now) >= preExit {
			if c := candleAt(history, preExit); c != nil && ltp < c.Low {
				return model.ExitTimePreClose
			}
		}
	}

	c := candle
	e.prevCandle = &c
	return ""
}

// IsShootingStar reports whether the candle forms a shooting-star pattern:
// upper shadow at least 3× the body, lower shadow at most 0.2× the body.
// A zero-body candle never qualifies.
func IsShootingStar(c model.Candle) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.UpperShadow() >= shootingStarUpperRatio*body &&
		c.LowerShadow() <= shootingStarLowerRatio*body
}

// swingLow returns the middle low of the last three candles when it is a
// strict local minimum.
func swingLow(history []model.Candle) (float64, bool) {
	if len(history) < swingLowWindow {
		return 0, false
	}
	last := history[len(history)-swingLowWindow:]
	mid := last[1].Low
	if mid < last[0].Low && mid < last[2].Low {
		return mid, true
	}
	return 0, false
}
