// Package strategy implements the breakout trading rules: the two-stage
// EMA-crossover signal detector, the risk-multiple trailing-stop ladder and
// the prioritized exit evaluator.
//
// Components are fed one decorated candle at a time and return results; the
// driver loop applies all session mutation. Rule evaluation order is
// significant throughout; reordering changes trading behavior.
package strategy

import (
	"log"

	"algotrader/internal/markethours"
	"algotrader/internal/model"
	"algotrader/internal/session"
)

// TriggerOffset is the breakout margin above the signal high.
const TriggerOffset = 2.0

// slBuffer sits just below the signal low when placing the initial stop.
const slBuffer = 1.0

// Result carries the detector's outcome for one candle. The driver applies
// SignalCandle to session state first; Signal (if any) is the accepted entry
// proposal.
type Result struct {
	// Signal is a triggered, risk-accepted entry proposal. Nil when no
	// trigger fired or the proposal was rejected by the risk cap.
	Signal *model.Signal

	// SignalCandle is a newly armed or replacement breakout level.
	// Nil means the armed level is unchanged.
	SignalCandle *model.SignalCandle

	// Rejected is set when a trigger fired but the stop distance exceeded
	// the risk cap.
	Rejected bool
}

// Detector is the breakout signal state machine. It keeps the crossover
// bookkeeping (prev above-both flag, crossover event log); the armed signal
// candle itself lives in session state and is passed in each call.
type Detector struct {
	prevAboveBoth bool
	crossovers    []model.Candle
}

// NewDetector creates an idle detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Reset clears crossover history and the above-both flag (session restart).
func (d *Detector) Reset() {
	d.prevAboveBoth = false
	d.crossovers = nil
}

// Crossovers returns the number of crossover events seen this session.
func (d *Detector) Crossovers() int {
	return len(d.crossovers)
}

// Check processes one decorated candle.
//
// armed is the currently armed signal candle (nil in the Idle state) and
// positionOpen suppresses replacement and trigger while a trade is live.
// Outside the entry window nothing is evaluated and no state is touched.
func (d *Detector) Check(c model.Candle, armed *model.SignalCandle, positionOpen bool, set session.Settings) Result {
	start, err := markethours.ParseHHMM(set.EntryStart)
	if err != nil {
		start = markethours.MustHHMM("09:25")
	}
	end, err := markethours.ParseHHMM(set.EntryEnd)
	if err != nil {
		end = markethours.MustHHMM("15:00")
	}
	if !markethours.Within(c.TS, start, end) {
		return Result{}
	}

	// Crossover event: close moves from at/below either EMA to above both.
	aboveBoth := c.Close > c.EMA21 && c.Close > c.EMA34
	if aboveBoth && !d.prevAboveBoth {
		d.crossovers = append(d.crossovers, c)
		log.Printf("[signal] crossover #%d at close=%.2f (ema21=%.2f ema34=%.2f)",
			len(d.crossovers), c.Close, c.EMA21, c.EMA34)
	}
	d.prevAboveBoth = aboveBoth

	// Arming requires the second crossover of the session; the candidate is
	// always the most recent crossover candle.
	if len(d.crossovers) < 2 {
		return Result{}
	}
	candidate := d.crossovers[len(d.crossovers)-1]

	// VWAP filter: only consider breakout levels sitting above session VWAP.
	if set.VWAPSignalFilter && candidate.High <= c.VWAP {
		return Result{}
	}

	if armed == nil {
		return Result{SignalCandle: &model.SignalCandle{
			SignalHigh: candidate.High,
			SignalLow:  candidate.Low,
			CandleTime: candidate.TS,
		}}
	}

	// Replacement: pre-position only, and only toward a strictly lower high.
	if !positionOpen && candidate.High < armed.SignalHigh {
		log.Printf("[signal] replacing armed level %.2f with lower high %.2f",
			armed.SignalHigh, candidate.High)
		return Result{SignalCandle: &model.SignalCandle{
			SignalHigh: candidate.High,
			SignalLow:  candidate.Low,
			CandleTime: candidate.TS,
		}}
	}

	// Trigger: close broke above the armed high by the offset.
	if !positionOpen && c.Close >= armed.SignalHigh+TriggerOffset {
		sig := buildSignal(armed, c, set)
		return Result{Signal: sig, Rejected: sig == nil}
	}

	return Result{}
}

// buildSignal derives the entry proposal from the armed level and the
// triggering candle. Returns nil when the stop distance exceeds the risk cap.
func buildSignal(armed *model.SignalCandle, trigger model.Candle, set session.Settings) *model.Signal {
	buyPrice := armed.SignalHigh + TriggerOffset

	// Two stop candidates: just under the signal low, or the points cap
	// below entry, whichever is closer to price.
	slCandidate := armed.SignalLow - slBuffer
	slCapped := buyPrice - set.MaxSLPoints
	initialSL := slCandidate
	if slCapped > initialSL {
		initialSL = slCapped
	}

	slDistance := buyPrice - initialSL
	if slDistance > set.MaxSLPoints {
		log.Printf("[signal] rejected: sl_distance %.2f exceeds cap %.2f", slDistance, set.MaxSLPoints)
		return nil
	}

	return &model.Signal{
		Type:            "CE_BUY",
		SignalHigh:      armed.SignalHigh,
		SignalLow:       armed.SignalLow,
		BuyPrice:        model.Round2(buyPrice),
		InitialSL:       model.Round2(initialSL),
		SLDistance:      model.Round2(slDistance),
		VWAP:            model.Round2(trigger.VWAP),
		EMA21:           trigger.EMA21,
		EMA34:           trigger.EMA34,
		TriggerCandleTS: trigger.TS,
		SignalCandleTS:  armed.CandleTime,
	}
}

// candleAt is a shared helper: the first candle (scanning newest-first)
// whose IST time matches the given minute of day.
func candleAt(history []model.Candle, at markethours.MinuteOfDay) *model.Candle {
	for i := len(history) - 1; i >= 0; i-- {
		if markethours.Minute(history[i].TS) == at {
			c := history[i]
			return &c
		}
	}
	return nil
}
