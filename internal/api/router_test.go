package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"algotrader/internal/execution"
	"algotrader/internal/model"
	"algotrader/internal/session"
)

type captureSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (c *captureSink) Publish(ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) last() (model.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return model.Event{}, false
	}
	return c.events[len(c.events)-1], true
}

func newTestServer(t *testing.T) (*httptest.Server, *session.State, *execution.Journal, *captureSink) {
	t.Helper()
	j, err := execution.NewJournal(":memory:")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	st := session.New()
	sink := &captureSink{}
	srv := httptest.NewServer(NewServer(st, j, nil, sink).Router())
	t.Cleanup(srv.Close)
	return srv, st, j, sink
}

func doReq(t *testing.T, method, url string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestBotControl(t *testing.T) {
	srv, st, _, sink := newTestServer(t)

	resp, body := doReq(t, http.MethodPost, srv.URL+"/api/bot/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, body %s", resp.StatusCode, body)
	}
	if st.Status() != session.StatusRunning {
		t.Errorf("status after start = %s, want RUNNING", st.Status())
	}
	ev, ok := sink.last()
	if !ok || ev.Type != model.EventBotStatus {
		t.Errorf("expected bot_status event, got %+v", ev)
	}

	resp, _ = doReq(t, http.MethodPost, srv.URL+"/api/bot/pause", nil)
	if resp.StatusCode != http.StatusOK || st.Status() != session.StatusPaused {
		t.Errorf("pause: status code %d, state %s", resp.StatusCode, st.Status())
	}

	resp, _ = doReq(t, http.MethodPost, srv.URL+"/api/bot/stop", nil)
	if resp.StatusCode != http.StatusOK || st.Status() != session.StatusStopped {
		t.Errorf("stop: status code %d, state %s", resp.StatusCode, st.Status())
	}

	// control routes are POST-only
	resp, _ = doReq(t, http.MethodGet, srv.URL+"/api/bot/start", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET start status = %d, want 405", resp.StatusCode)
	}
}

func TestManualCloseEndpoint(t *testing.T) {
	srv, st, _, _ := newTestServer(t)

	resp, _ := doReq(t, http.MethodPost, srv.URL+"/api/position/close", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("close without position status = %d, want 404", resp.StatusCode)
	}

	st.SetPosition(&model.Position{TradeID: 1, EntryPrice: 107, CurrentSL: 99})
	resp, body := doReq(t, http.MethodPost, srv.URL+"/api/position/close", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d, body %s", resp.StatusCode, body)
	}
	if !st.ConsumeManualExit() {
		t.Error("close request did not set the manual-exit flag")
	}

	resp, _ = doReq(t, http.MethodGet, srv.URL+"/api/position/close", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET close status = %d, want 405", resp.StatusCode)
	}
}

func TestModeEndpoint(t *testing.T) {
	srv, st, _, sink := newTestServer(t)

	resp, _ := doReq(t, http.MethodPost, srv.URL+"/api/bot/mode/LIVE", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mode LIVE status = %d", resp.StatusCode)
	}
	if st.Mode() != model.ModeLive {
		t.Errorf("mode = %s, want LIVE", st.Mode())
	}
	if ev, ok := sink.last(); !ok || ev.Type != model.EventModeChange {
		t.Errorf("expected mode_change event, got %+v", ev)
	}

	resp, _ = doReq(t, http.MethodPost, srv.URL+"/api/bot/mode/SWING", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid mode status = %d, want 400", resp.StatusCode)
	}
	if st.Mode() != model.ModeLive {
		t.Errorf("mode mutated by rejected request: %s", st.Mode())
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, st, _, sink := newTestServer(t)

	resp, body := doReq(t, http.MethodGet, srv.URL+"/api/settings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET settings status = %d", resp.StatusCode)
	}
	var got session.Settings
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if got.Quantity != 130 {
		t.Errorf("default quantity = %d, want 130", got.Quantity)
	}

	resp, body = doReq(t, http.MethodPut, srv.URL+"/api/settings",
		[]byte(`{"quantity":75,"vwap_exit_enabled":false}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT settings status = %d, body %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode updated settings: %v", err)
	}
	if got.Quantity != 75 || got.VWAPExitEnabled {
		t.Errorf("patch not applied: %+v", got)
	}
	if st.Settings().Quantity != 75 {
		t.Errorf("state quantity = %d, want 75", st.Settings().Quantity)
	}
	if ev, ok := sink.last(); !ok || ev.Type != model.EventSettingsUpdate {
		t.Errorf("expected settings_update event, got %+v", ev)
	}

	resp, _ = doReq(t, http.MethodPut, srv.URL+"/api/settings",
		[]byte(`{"lot_size":50}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", resp.StatusCode)
	}
}

func TestTradeLifecycle(t *testing.T) {
	srv, _, j, _ := newTestServer(t)

	id, err := j.SaveEntry(&model.Position{
		TradeID:    1,
		Symbol:     "NIFTY 22100 CE (this week)",
		Mode:       model.ModePaper,
		EntryPrice: 105,
		Quantity:   130,
		InitialSL:  100,
		CurrentSL:  100,
		SignalHigh: 103,
		SignalLow:  101,
		EntryTime:  time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed trade: %v", err)
	}

	resp, body := doReq(t, http.MethodGet, srv.URL+"/api/trades", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET trades status = %d", resp.StatusCode)
	}
	var rows []execution.TradeRow
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode trades: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("trades = %+v, want one row with id %d", rows, id)
	}

	resp, body = doReq(t, http.MethodPut,
		fmt.Sprintf("%s/api/trades/%d", srv.URL, id),
		[]byte(`{"exit_price":111,"reason_of_exit":"VWAP_EXIT","time_of_exit":"2026-08-28T11:00:00Z"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT trade status = %d, body %s", resp.StatusCode, body)
	}
	var row execution.TradeRow
	if err := json.Unmarshal(body, &row); err != nil {
		t.Fatalf("decode updated trade: %v", err)
	}
	if row.PnL == nil || *row.PnL != 780 {
		t.Errorf("pnl = %v, want 780", row.PnL)
	}

	resp, body = doReq(t, http.MethodDelete,
		fmt.Sprintf("%s/api/trades/%d", srv.URL, id), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE trade status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"deleted"`) {
		t.Errorf("delete body = %s", body)
	}

	resp, _ = doReq(t, http.MethodDelete,
		fmt.Sprintf("%s/api/trades/%d", srv.URL, id), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doReq(t, http.MethodPut, srv.URL+"/api/trades/999",
		[]byte(`{"exit_price":111}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("update unknown trade status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doReq(t, http.MethodGet, srv.URL+"/api/trades/abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}
}

func TestCSVExport(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, body := doReq(t, http.MethodGet, srv.URL+"/api/trades/export/csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=trades_") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(string(body), "id,symbol,mode") {
		t.Errorf("csv header = %q", firstLine(string(body)))
	}
}

func TestMarketEndpoints(t *testing.T) {
	srv, st, _, _ := newTestServer(t)

	st.SetLastPrice(22150.5)
	for i := 0; i < 3; i++ {
		st.AppendCandle(model.Candle{
			TS:   time.Date(2026, 8, 28, 9, 15+5*i, 0, 0, time.UTC),
			Open: 22100, High: 22120, Low: 22090, Close: 22110,
		})
	}

	resp, body := doReq(t, http.MethodGet, srv.URL+"/api/market/nifty", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("nifty status = %d", resp.StatusCode)
	}
	var nifty struct {
		LTP          float64 `json:"ltp"`
		MarketStatus string  `json:"market_status"`
	}
	if err := json.Unmarshal(body, &nifty); err != nil {
		t.Fatalf("decode nifty: %v", err)
	}
	if nifty.LTP != 22150.5 {
		t.Errorf("ltp = %v, want 22150.5", nifty.LTP)
	}
	if nifty.MarketStatus != "Market Open" && nifty.MarketStatus != "Market Closed" {
		t.Errorf("market_status = %q", nifty.MarketStatus)
	}

	resp, body = doReq(t, http.MethodGet, srv.URL+"/api/market/candles?limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("candles status = %d", resp.StatusCode)
	}
	var candles []model.Candle
	if err := json.Unmarshal(body, &candles); err != nil {
		t.Fatalf("decode candles: %v", err)
	}
	if len(candles) != 2 {
		t.Errorf("candles len = %d, want 2", len(candles))
	}
}

func TestPNLEndpointsEmptyJournal(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	for _, path := range []string{"/api/pnl/daily", "/api/pnl/monthly"} {
		resp, body := doReq(t, http.MethodGet, srv.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
		if strings.TrimSpace(string(body)) != "[]" {
			t.Errorf("%s body = %s, want []", path, body)
		}
	}

	resp, body := doReq(t, http.MethodGet, srv.URL+"/api/pnl/summary", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	var sum execution.Summary
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.TotalTrades != 0 {
		t.Errorf("total trades = %d, want 0", sum.TotalTrades)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, _ := doReq(t, http.MethodOptions, srv.URL+"/api/settings", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if o := resp.Header.Get("Access-Control-Allow-Origin"); o != "*" {
		t.Errorf("allow-origin = %q", o)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
