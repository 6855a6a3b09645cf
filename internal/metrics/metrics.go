package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading bot.
type Metrics struct {
	CyclesTotal      prometheus.Counter
	CycleErrorsTotal prometheus.Counter
	CycleDur         prometheus.Histogram

	SignalsArmed     prometheus.Counter
	SignalsTriggered prometheus.Counter
	SignalsRejected  prometheus.Counter

	EntriesTotal *prometheus.CounterVec // labels: mode
	ExitsTotal   *prometheus.CounterVec // labels: reason
	SLUpdates    prometheus.Counter

	BotState     prometheus.Gauge // 0=stopped, 1=running, 2=paused
	OpenPosition prometheus.Gauge // 0 or 1
	NiftyPrice   prometheus.Gauge
	LastPnL      prometheus.Gauge

	EventFanoutDrops *prometheus.CounterVec // labels: sink
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Total trading loop cycles executed",
		}),
		CycleErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_cycle_errors_total",
			Help: "Cycles that ended in a recovered error",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_cycle_duration_seconds",
			Help:    "Trading loop cycle latency",
			Buckets: prometheus.DefBuckets,
		}),
		SignalsArmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_signals_armed_total",
			Help: "Signal candles armed (including replacements)",
		}),
		SignalsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_signals_triggered_total",
			Help: "Breakout triggers accepted by the risk cap",
		}),
		SignalsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_signals_rejected_total",
			Help: "Breakout triggers rejected (stop distance over cap)",
		}),
		EntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_entries_total",
			Help: "Positions opened",
		}, []string{"mode"}),
		ExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_exits_total",
			Help: "Positions closed by exit reason",
		}, []string{"reason"}),
		SLUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_sl_updates_total",
			Help: "Trailing stop-loss raises applied",
		}),
		BotState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_state",
			Help: "Bot run state (0=stopped, 1=running, 2=paused)",
		}),
		OpenPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_open_position",
			Help: "Whether a position is currently open",
		}),
		NiftyPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_nifty_price",
			Help: "Last traded NIFTY price seen by the loop",
		}),
		LastPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_last_trade_pnl",
			Help: "PnL of the most recently closed trade",
		}),
		EventFanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_event_fanout_drops_total",
			Help: "Events dropped per sink (slow subscriber)",
		}, []string{"sink"}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleErrorsTotal,
		m.CycleDur,
		m.SignalsArmed,
		m.SignalsTriggered,
		m.SignalsRejected,
		m.EntriesTotal,
		m.ExitsTotal,
		m.SLUpdates,
		m.BotState,
		m.OpenPosition,
		m.NiftyPrice,
		m.LastPnL,
		m.EventFanoutDrops,
	)

	return m
}

// SetBotState maps a run status string onto the state gauge.
func (m *Metrics) SetBotState(status string) {
	switch status {
	case "RUNNING":
		m.BotState.Set(1)
	case "PAUSED":
		m.BotState.Set(2)
	default:
		m.BotState.Set(0)
	}
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedOK         bool      `json:"feed_ok"`
	LastCycleTime  time.Time `json:"last_cycle_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedOK(v bool) {
	h.mu.Lock()
	h.FeedOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycleTime(t time.Time) {
	h.mu.Lock()
	h.LastCycleTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	cycleAge := ""
	if !h.LastCycleTime.IsZero() {
		cycleAge = time.Since(h.LastCycleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedOK          bool    `json:"feed_ok"`
		LastCycleTime   string  `json:"last_cycle_time"`
		CycleAge        string  `json:"cycle_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedOK:          h.FeedOK,
		LastCycleTime:   h.LastCycleTime.Format(time.RFC3339),
		CycleAge:        cycleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
