// Package api exposes the REST control surface: bot start/stop/mode, trade
// journal CRUD, PnL aggregates, settings and market snapshots.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"algotrader/internal/execution"
	"algotrader/internal/gateway"
	"algotrader/internal/markethours"
	"algotrader/internal/model"
	"algotrader/internal/session"
)

// Server bundles the handlers' dependencies.
type Server struct {
	state   *session.State
	journal *execution.Journal
	hub     *gateway.Hub
	events  model.EventSink
}

func NewServer(state *session.State, journal *execution.Journal, hub *gateway.Hub, events model.EventSink) *Server {
	return &Server{state: state, journal: journal, hub: hub, events: events}
}

// Router sets up HTTP routes for the API server.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/bot/start", s.handleStart)
	mux.HandleFunc("/api/bot/pause", s.handlePause)
	mux.HandleFunc("/api/bot/stop", s.handleStop)
	mux.HandleFunc("/api/bot/mode/", s.handleMode)

	mux.HandleFunc("/api/position/close", s.handleClosePosition)

	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/trades/", s.handleTradeSub)

	mux.HandleFunc("/api/pnl/daily", s.handleDailyPNL)
	mux.HandleFunc("/api/pnl/monthly", s.handleMonthlyPNL)
	mux.HandleFunc("/api/pnl/summary", s.handlePNLSummary)

	mux.HandleFunc("/api/settings", s.handleSettings)

	mux.HandleFunc("/api/market/nifty", s.handleNifty)
	mux.HandleFunc("/api/market/candles", s.handleCandles)

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}

	return withCORS(mux)
}

// withCORS lets the dashboard dev server call the API cross-origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.state.SetStatus(session.StatusRunning)
	log.Println("[api] bot started")
	s.publish(model.NewEvent(model.EventBotStatus, map[string]string{"status": string(session.StatusRunning)}))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(session.StatusRunning)})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.state.SetStatus(session.StatusPaused)
	log.Println("[api] bot paused")
	s.publish(model.NewEvent(model.EventBotStatus, map[string]string{"status": string(session.StatusPaused)}))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(session.StatusPaused)})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.state.SetStatus(session.StatusStopped)
	log.Println("[api] bot stopped")
	s.publish(model.NewEvent(model.EventBotStatus, map[string]string{"status": string(session.StatusStopped)}))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(session.StatusStopped)})
}

// handleClosePosition flags the open position for a manual exit. The loop
// executes it on the next cycle at the last traded price with reason MANUAL;
// the handler never touches the position itself.
func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.state.RequestManualExit() {
		writeError(w, http.StatusNotFound, "no open position")
		return
	}
	log.Println("[api] manual close requested")
	writeJSON(w, http.StatusOK, map[string]bool{"closing": true})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	mode := strings.TrimPrefix(r.URL.Path, "/api/bot/mode/")
	if mode != string(model.ModeLive) && mode != string(model.ModePaper) {
		writeError(w, http.StatusBadRequest, "mode must be LIVE or PAPER")
		return
	}
	s.state.SetMode(model.Mode(mode))
	log.Printf("[api] mode set to %s", mode)
	s.publish(model.NewEvent(model.EventModeChange, map[string]string{"mode": mode}))
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode})
}

func tradeFilterFromQuery(r *http.Request) execution.TradeFilter {
	q := r.URL.Query()
	f := execution.TradeFilter{Date: q.Get("date_filter")}
	if m, err := strconv.Atoi(q.Get("month")); err == nil {
		f.Month = m
	}
	if y, err := strconv.Atoi(q.Get("year")); err == nil {
		f.Year = y
	}
	return f
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	trades, err := s.journal.GetTrades(tradeFilterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []execution.TradeRow{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTradeSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/trades/")
	if rest == "export/csv" {
		s.handleExportCSV(w, r)
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var upd execution.TradeUpdate
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		row, err := s.journal.UpdateTrade(id, upd)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, row)

	case http.MethodDelete:
		err := s.journal.DeleteTrade(id)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename=trades_%s.csv`, time.Now().Format("2006-01-02")))
	if err := s.journal.ExportCSV(w, tradeFilterFromQuery(r)); err != nil {
		log.Printf("[api] csv export failed: %v", err)
	}
}

func (s *Server) handleDailyPNL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	f := tradeFilterFromQuery(r)
	rows, err := s.journal.DailyPNL(f.Month, f.Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []execution.DailyPNL{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMonthlyPNL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rows, err := s.journal.MonthlyPNL(tradeFilterFromQuery(r).Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []execution.MonthlyPNL{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePNLSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sum, err := s.journal.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.state.Settings())

	case http.MethodPut:
		var patch session.SettingsPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		updated := s.state.UpdateSettings(patch)
		log.Println("[api] settings updated")
		s.publish(model.NewEvent(model.EventSettingsUpdate, updated))
		writeJSON(w, http.StatusOK, updated)

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleNifty(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	now := time.Now().In(markethours.IST)
	writeJSON(w, http.StatusOK, map[string]any{
		"ltp":           s.state.LastPrice(),
		"market_status": markethours.StatusString(now),
		"trading_day":   markethours.IsTradingDay(now),
	})
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	candles := s.state.Candles(limit)
	if candles == nil {
		candles = []model.Candle{}
	}
	writeJSON(w, http.StatusOK, candles)
}

func (s *Server) publish(ev model.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
