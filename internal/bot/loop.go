// Package bot runs the trading loop: one goroutine polling the market feed
// every few seconds and driving signal detection, entries, the trailing stop
// and exits. The loop is the single writer of trading state; the control API
// only flips status, mode and settings.
package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"algotrader/internal/execution"
	"algotrader/internal/indicator"
	"algotrader/internal/marketdata"
	"algotrader/internal/markethours"
	"algotrader/internal/metrics"
	"algotrader/internal/model"
	"algotrader/internal/session"
	"algotrader/internal/strategy"
)

// DefaultInterval is the poll cadence of the trading loop.
const DefaultInterval = 5 * time.Second

// Loop owns the per-session strategy machinery and drives one cycle per tick.
type Loop struct {
	state  *session.State
	feed   model.MarketFeed
	exec   *execution.Engine
	store  model.TradeStore
	events model.EventSink
	met    *metrics.Metrics
	health *metrics.HealthStatus

	ind   *indicator.Engine
	det   *strategy.Detector
	exits *strategy.ExitEvaluator

	// GateMarketHours makes RUNNING cycles idle outside NSE trading hours.
	// Set for the live feed; the demo simulator serves bars around the clock.
	GateMarketHours bool

	interval     time.Duration
	seeded       bool
	lastCandleTS time.Time
	lastStatus   session.Status
	closedLogged bool
}

// New wires a trading loop. met and health may be nil (tests).
func New(state *session.State, feed model.MarketFeed, exec *execution.Engine, store model.TradeStore, events model.EventSink, met *metrics.Metrics, health *metrics.HealthStatus) *Loop {
	return &Loop{
		state:      state,
		feed:       feed,
		exec:       exec,
		store:      store,
		events:     events,
		met:        met,
		health:     health,
		ind:        indicator.NewEngine(),
		det:        strategy.NewDetector(),
		exits:      strategy.NewExitEvaluator(),
		interval:   DefaultInterval,
		lastStatus: session.StatusStopped,
	}
}

// Run blocks until ctx is cancelled, executing one cycle per interval.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	log.Printf("[loop] started, interval=%s", l.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[loop] stopped")
			return
		case <-ticker.C:
			l.Cycle(ctx, time.Now().In(markethours.IST))
		}
	}
}

// Cycle executes one poll-and-act iteration. A panic anywhere in the cycle
// is recovered and surfaced as an error event so one bad tick cannot kill
// the loop.
func (l *Loop) Cycle(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[loop] cycle panic recovered: %v", r)
			if l.met != nil {
				l.met.CycleErrorsTotal.Inc()
			}
			l.publish(model.NewEvent(model.EventError, map[string]any{
				"message": fmt.Sprint(r),
			}))
		}
	}()

	status := l.state.Status()
	if l.met != nil {
		l.met.SetBotState(string(status))
	}
	switch status {
	case session.StatusStopped:
		if l.lastStatus != session.StatusStopped {
			l.resetTrading()
		}
		l.lastStatus = status
		return
	case session.StatusPaused:
		l.lastStatus = status
		return
	}
	l.lastStatus = status

	if l.GateMarketHours && !markethours.IsMarketOpen(now) {
		if !l.closedLogged {
			log.Printf("[loop] %s, idling until the session opens", markethours.StatusString(now))
			l.closedLogged = true
		}
		return
	}
	l.closedLogged = false

	start := time.Now()
	if !l.seeded {
		if err := l.seed(ctx); err != nil {
			log.Printf("[loop] feed init failed: %v", err)
			if l.health != nil {
				l.health.SetFeedOK(false)
			}
			l.publish(model.NewEvent(model.EventError, map[string]any{
				"message": "market feed init: " + err.Error(),
			}))
			return
		}
	}

	set := l.state.Settings()
	l.pollTick(ctx, now, set)
	candle, newBar := l.pollCandle(ctx)

	tick := model.Tick{
		LTP:  l.state.LastPrice(),
		VWAP: l.ind.VWAP(),
	}

	if newBar {
		l.detect(ctx, *candle, tick, now, set)
	}
	l.managePosition(tick, now, set)

	l.publish(model.NewEvent(model.EventStateUpdate, l.state.Snapshot()))

	if l.met != nil {
		l.met.CyclesTotal.Inc()
		l.met.CycleDur.Observe(time.Since(start).Seconds())
		l.met.NiftyPrice.Set(tick.LTP)
	}
	if l.health != nil {
		l.health.SetFeedOK(true)
		l.health.SetLastCycleTime(now)
	}
}

// seed initializes the feed and replays any backfill history through the
// indicator engine so EMAs and VWAP are warm before the first live bar.
func (l *Loop) seed(ctx context.Context) error {
	if err := l.feed.Initialize(ctx); err != nil {
		return err
	}
	if bf, ok := l.feed.(model.Backfiller); ok {
		hist := bf.Backfill()
		for _, c := range hist {
			dec := l.ind.Update(c)
			l.state.AppendCandle(dec)
			l.lastCandleTS = c.TS
		}
		log.Printf("[loop] seeded %d candles from backfill", len(hist))
	}
	l.seeded = true
	return nil
}

func (l *Loop) pollTick(ctx context.Context, now time.Time, set session.Settings) {
	tk, err := l.feed.LatestTick(ctx)
	if err != nil {
		log.Printf("[loop] tick fetch failed: %v", err)
		return
	}
	if tk == nil {
		return
	}
	l.state.SetLastPrice(tk.LTP)
	ce, pe := marketdata.ATMSymbols(tk.LTP, now, set.MondayTuesdayNextWeek)
	l.state.SetATM(ce, pe)
}

// pollCandle fetches the latest bar and, when its timestamp advances past
// the last processed one, decorates and appends it. The feed may repeat the
// same closed bar for many polls.
func (l *Loop) pollCandle(ctx context.Context) (*model.Candle, bool) {
	c, err := l.feed.LatestCandle(ctx)
	if err != nil {
		log.Printf("[loop] candle fetch failed: %v", err)
		return nil, false
	}
	if c == nil || !c.TS.After(l.lastCandleTS) {
		return nil, false
	}
	dec := l.ind.Update(*c)
	l.state.AppendCandle(dec)
	l.lastCandleTS = c.TS
	return &dec, true
}

// detect runs the breakout state machine on a freshly closed bar and opens
// a position when a trigger survives the risk cap.
func (l *Loop) detect(ctx context.Context, candle model.Candle, tick model.Tick, now time.Time, set session.Settings) {
	res := l.det.Check(candle, l.state.SignalCandle(), l.state.Position() != nil, set)

	if res.SignalCandle != nil {
		l.state.SetSignalCandle(res.SignalCandle)
		log.Printf("[loop] armed signal candle high=%.2f low=%.2f",
			res.SignalCandle.SignalHigh, res.SignalCandle.SignalLow)
		if l.met != nil {
			l.met.SignalsArmed.Inc()
		}
	}

	if res.Rejected && l.met != nil {
		l.met.SignalsRejected.Inc()
	}
	if res.Signal == nil {
		return
	}
	l.state.SetSignal(res.Signal)
	l.publish(model.NewEvent(model.EventSignal, res.Signal))
	if l.met != nil {
		l.met.SignalsTriggered.Inc()
	}

	symbol, _ := l.state.ATM()
	if symbol == "" {
		symbol = "NIFTY ATM CE"
	}
	pos, err := l.exec.TryEntry(ctx, res.Signal, l.state.Position(), symbol, l.state.Mode(), set, now)
	if err != nil {
		log.Printf("[loop] entry failed: %v", err)
		l.publish(model.NewEvent(model.EventError, map[string]any{
			"message": "entry failed: " + err.Error(),
		}))
		return
	}
	if pos == nil {
		return
	}

	if id, err := l.store.SaveEntry(pos); err != nil {
		log.Printf("[loop] journal entry failed: %v", err)
	} else {
		pos.JournalID = id
	}
	l.state.SetPosition(pos)
	l.state.SetSignalCandle(nil) // entry consumes the armed level
	l.exits.Reset()
	l.publish(model.NewEvent(model.EventEntry, pos))
	if l.met != nil {
		l.met.EntriesTotal.WithLabelValues(string(pos.Mode)).Inc()
		l.met.OpenPosition.Set(1)
	}
}

// managePosition ratchets the trailing stop and evaluates the exit rules
// against the open position, if any.
func (l *Loop) managePosition(tick model.Tick, now time.Time, set session.Settings) {
	pos := l.state.Position()
	if pos == nil {
		return
	}

	if l.state.ConsumeManualExit() {
		l.closePosition(pos, model.ExitManual, tick.LTP, set, now)
		return
	}

	if newSL, ok := strategy.TrailingStop(pos, tick.LTP); ok {
		oldSL := pos.CurrentSL
		if l.state.RaiseStopLoss(newSL) {
			pos.CurrentSL = newSL // local copy; exit rules must see the raised stop
			log.Printf("[loop] trailing stop %.2f -> %.2f (trade %d)", oldSL, newSL, pos.TradeID)
			l.publish(model.NewEvent(model.EventSLUpdate, map[string]any{
				"trade_id": pos.TradeID,
				"old_sl":   oldSL,
				"new_sl":   newSL,
			}))
			if l.met != nil {
				l.met.SLUpdates.Inc()
			}
		}
	}

	last := l.state.LastCandle()
	if last == nil {
		return
	}
	reason := l.exits.Check(pos, *last, tick, l.state.Candles(0), now, set)
	if reason == "" {
		return
	}
	l.closePosition(pos, reason, tick.LTP, set, now)
}

// closePosition executes the exit, journals it and clears trade state.
func (l *Loop) closePosition(pos *model.Position, reason model.ExitReason, ltp float64, set session.Settings, now time.Time) {
	rec := l.exec.ExecuteExit(pos, reason, ltp, set, now)
	if err := l.store.CloseTrade(pos.JournalID, rec); err != nil {
		log.Printf("[loop] journal close failed: %v", err)
	}
	l.state.ClearTrade()
	l.exits.Reset()
	l.publish(model.NewEvent(model.EventExit, rec))
	if l.met != nil {
		l.met.ExitsTotal.WithLabelValues(string(reason)).Inc()
		l.met.OpenPosition.Set(0)
		l.met.LastPnL.Set(rec.PnL)
	}
}

// resetTrading clears per-session strategy state when the bot is stopped.
// Candle history and indicators keep accumulating so a restart mid-day does
// not distort EMAs or VWAP.
func (l *Loop) resetTrading() {
	l.state.ResetTrading()
	l.det.Reset()
	l.exits.Reset()
	log.Println("[loop] trading state reset")
}

func (l *Loop) publish(ev model.Event) {
	if l.events != nil {
		l.events.Publish(ev)
	}
}
