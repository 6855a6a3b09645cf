package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"algotrader/internal/model"
)

const dispatchQueue = 64

// Dispatcher turns bot events into alerts and delivers them through the
// configured notifiers. It implements model.EventSink; delivery runs on its
// own goroutine so a slow Telegram call never blocks the trading loop, and
// a failure in one backend does not stop the others.
type Dispatcher struct {
	notifiers []Notifier
	queue     chan model.Event

	// OnDrop is called when a full queue forces an event to be dropped.
	OnDrop func()
}

// NewDispatcher creates a dispatcher over the given backends. Call Run to
// start delivery.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		queue:     make(chan model.Event, dispatchQueue),
	}
}

// Publish enqueues an alert-worthy event. Non-alert event types are ignored
// and a full queue drops the event rather than blocking.
func (d *Dispatcher) Publish(ev model.Event) {
	switch ev.Type {
	case model.EventSignal, model.EventEntry, model.EventExit, model.EventSLUpdate, model.EventError:
	default:
		return
	}
	select {
	case d.queue <- ev:
	default:
		log.Printf("[notify] queue full, dropping %s event", ev.Type)
		if d.OnDrop != nil {
			d.OnDrop()
		}
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			alert := formatAlert(ev)
			for _, n := range d.notifiers {
				sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := n.Send(sendCtx, alert); err != nil {
					log.Printf("[notify] delivery failed: %v", err)
				}
				cancel()
			}
		}
	}
}

// formatAlert renders a trading event as a human-readable alert.
func formatAlert(ev model.Event) Alert {
	switch ev.Type {
	case model.EventSignal:
		var sig model.Signal
		if err := json.Unmarshal(ev.Data, &sig); err == nil {
			return Alert{
				Level: AlertInfo,
				Title: "Breakout Signal",
				Message: fmt.Sprintf("%s buy %.2f, SL %.2f (risk %.2f)",
					sig.Type, sig.BuyPrice, sig.InitialSL, sig.SLDistance),
			}
		}
	case model.EventEntry:
		var pos model.Position
		if err := json.Unmarshal(ev.Data, &pos); err == nil {
			return Alert{
				Level: AlertInfo,
				Title: "Trade Entry",
				Message: fmt.Sprintf("%s %s qty %d @ %.2f, SL %.2f",
					pos.Mode, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.InitialSL),
			}
		}
	case model.EventExit:
		var rec model.ExitRecord
		if err := json.Unmarshal(ev.Data, &rec); err == nil {
			level := AlertInfo
			if rec.PnL < 0 {
				level = AlertWarning
			}
			return Alert{
				Level: level,
				Title: "Trade Exit",
				Message: fmt.Sprintf("%s @ %.2f, PnL %.2f",
					rec.Reason, rec.ExitPrice, rec.PnL),
			}
		}
	case model.EventSLUpdate:
		var upd struct {
			TradeID int64   `json:"trade_id"`
			OldSL   float64 `json:"old_sl"`
			NewSL   float64 `json:"new_sl"`
		}
		if err := json.Unmarshal(ev.Data, &upd); err == nil {
			return Alert{
				Level:   AlertInfo,
				Title:   "Stop Raised",
				Message: fmt.Sprintf("trade %d: %.2f -> %.2f", upd.TradeID, upd.OldSL, upd.NewSL),
			}
		}
	case model.EventError:
		var e struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(ev.Data, &e); err == nil {
			return Alert{Level: AlertCritical, Title: "Bot Error", Message: e.Message}
		}
	}
	return Alert{Level: AlertInfo, Title: string(ev.Type), Message: string(ev.Data)}
}
