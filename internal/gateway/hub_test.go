package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"algotrader/internal/model"
	"algotrader/internal/session"
)

func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_InitAndBroadcast(t *testing.T) {
	state := session.New()
	state.SetStatus(session.StatusRunning)
	h := NewHub(state)
	conn := dialTestHub(t, h)

	// First frame is the init snapshot.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read init: %v", err)
	}
	var init struct {
		Type string `json:"type"`
		Data struct {
			BotStatus string `json:"bot_status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(firstFrame(msg), &init); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if init.Type != "init" || init.Data.BotStatus != "RUNNING" {
		t.Errorf("unexpected init frame: %s", msg)
	}

	// Published events reach the client.
	h.Publish(model.NewEvent(model.EventBotStatus, map[string]string{"status": "RUNNING"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var ev model.Event
	if err := json.Unmarshal(firstFrame(msg), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != model.EventBotStatus {
		t.Errorf("event type = %q, want bot_status", ev.Type)
	}

	if h.ClientCount() != 1 {
		t.Errorf("client count = %d, want 1", h.ClientCount())
	}
}

func TestHub_RemoveClientIsIdempotent(t *testing.T) {
	state := session.New()
	h := NewHub(state)
	conn := dialTestHub(t, h)

	// Wait for registration.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.ClientCount() != 1 {
		t.Fatalf("client never registered")
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Errorf("client count = %d after disconnect", h.ClientCount())
	}

	// A second publish after removal must not panic.
	h.Publish(model.NewEvent(model.EventStateUpdate, nil))
}

// firstFrame splits a coalesced multi-message frame.
func firstFrame(msg []byte) []byte {
	if i := strings.IndexByte(string(msg), '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
