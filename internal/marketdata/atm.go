// Package marketdata supplies NIFTY candles and ticks to the trading loop,
// either simulated (demo mode) or from the M.Stock API.
package marketdata

import (
	"fmt"
	"math"
	"time"
)

const strikeStep = 50

// ATMStrike rounds a spot price to the nearest option strike.
func ATMStrike(price float64) int {
	return int(math.Round(price/strikeStep)) * strikeStep
}

// ExpiryLabel names the contract week to trade. On Monday and Tuesday the
// current week's expiry is too close to carry, so next week's contract is
// preferred when enabled.
func ExpiryLabel(now time.Time, nextWeekOnMonTue bool) string {
	wd := now.Weekday()
	if nextWeekOnMonTue && (wd == time.Monday || wd == time.Tuesday) {
		return "next week"
	}
	return "this week"
}

// ATMSymbols returns the display symbols for the at-the-money CE and PE.
func ATMSymbols(price float64, now time.Time, nextWeekOnMonTue bool) (ce, pe string) {
	strike := ATMStrike(price)
	label := ExpiryLabel(now, nextWeekOnMonTue)
	ce = fmt.Sprintf("NIFTY %d CE (%s)", strike, label)
	pe = fmt.Sprintf("NIFTY %d PE (%s)", strike, label)
	return ce, pe
}
