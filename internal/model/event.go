package model

import (
	"encoding/json"
	"time"
)

// EventType identifies a bot event pushed to subscribers after each cycle.
type EventType string

const (
	EventSignal         EventType = "signal"
	EventEntry          EventType = "entry"
	EventSLUpdate       EventType = "sl_update"
	EventExit           EventType = "exit"
	EventStateUpdate    EventType = "state_update"
	EventBotStatus      EventType = "bot_status"
	EventModeChange     EventType = "mode_change"
	EventSettingsUpdate EventType = "settings_update"
	EventError          EventType = "error"
)

// Event is the envelope broadcast to WebSocket clients, notifiers and the
// Redis mirror. Data is pre-marshaled so fan-out never re-encodes per sink.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	TS   time.Time       `json:"ts"`
}

// NewEvent builds an event, marshaling data. Marshal failures degrade to an
// empty payload rather than dropping the event.
func NewEvent(t EventType, data any) Event {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	return Event{Type: t, Data: raw, TS: time.Now().UTC()}
}

// JSON returns the JSON-encoded event envelope.
func (e Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
