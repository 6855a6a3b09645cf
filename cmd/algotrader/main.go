package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"algotrader/config"
	"algotrader/internal/api"
	"algotrader/internal/bot"
	"algotrader/internal/execution"
	"algotrader/internal/gateway"
	"algotrader/internal/logger"
	"algotrader/internal/marketdata"
	"algotrader/internal/metrics"
	"algotrader/internal/model"
	"algotrader/internal/notification"
	"algotrader/internal/session"
	redisstore "algotrader/internal/store/redis"
	"algotrader/pkg/mstock"
)

// gttPlacer adapts the broker client to the execution engine's order port.
type gttPlacer struct {
	client *mstock.Client
}

func (p *gttPlacer) PlaceGTT(ctx context.Context, req execution.EntryRequest) error {
	return p.client.PlaceGTT(ctx, mstock.GTTOrder{
		Symbol:       req.Symbol,
		Quantity:     req.Quantity,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		StopLoss:     req.StopLoss,
	})
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[main] starting...")

	// ---- Load config from env ----
	cfg := config.Load()
	slogger := logger.Init("algotrader", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("boot", slog.Bool("demo_mode", cfg.DemoMode))

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Trade journal (SQLite) ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[main] journal init failed: %v", err)
	}
	defer journal.Close()
	log.Println("[main] trade journal ready")

	// ---- Session state ----
	state := session.New()
	state.UpdateSettings(session.SettingsPatch{DemoMode: &cfg.DemoMode})

	// ---- Market feed + order placer ----
	var feed model.MarketFeed
	var placer execution.OrderPlacer
	if cfg.DemoMode {
		feed = marketdata.NewSimFeed(time.Now().UnixNano())
		log.Println("[main] demo mode: simulated market feed")
	} else {
		client := mstock.New(mstock.Config{
			APIKey:     cfg.MStockAPIKey,
			ClientCode: cfg.MStockClientCode,
			Password:   cfg.MStockPassword,
			TOTPSecret: cfg.MStockTOTPSecret,
		})
		client.SessionExpiryHook = func() {
			log.Println("[main] broker session expired, re-login on next poll")
		}
		feed = marketdata.NewLiveFeed(client)
		placer = &gttPlacer{client: client}
		log.Println("[main] live mode: mstock market feed")
	}

	// ---- Event sinks ----
	hub := gateway.NewHub(state)
	hub.OnDrop = func() {
		prom.EventFanoutDrops.WithLabelValues("ws").Inc()
	}

	var sinks bot.Fanout
	sinks = append(sinks, hub)

	redisPub, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Printf("[main] WARNING: redis init failed: %v (continuing without redis)", err)
	} else {
		sinks = append(sinks, redisPub)
		defer redisPub.Close()
	}

	var notifiers []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(notifiers) > 0 {
		dispatcher := notification.NewDispatcher(notifiers...)
		dispatcher.OnDrop = func() {
			prom.EventFanoutDrops.WithLabelValues("notify").Inc()
		}
		go dispatcher.Run(ctx)
		sinks = append(sinks, dispatcher)
		log.Printf("[main] notification dispatcher ready (%d backends)", len(notifiers))
	}

	// ---- Periodic liveness checks ----
	if redisPub != nil {
		health.StartLivenessChecker(ctx, redisPub.Client(), journal.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Trading loop ----
	engine := execution.NewEngine(placer)
	loop := bot.New(state, feed, engine, journal, sinks, prom, health)
	loop.GateMarketHours = !cfg.DemoMode
	go loop.Run(ctx)

	// ---- REST + WS server ----
	apiSrv := api.NewServer(state, journal, hub, sinks)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiSrv.Router(),
	}
	go func() {
		log.Printf("[main] http server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] http server failed: %v", err)
		}
	}()

	log.Println("[main] ╔══════════════════════════════════════════════════════╗")
	log.Println("[main] ║  NIFTY Options Breakout Bot                          ║")
	log.Println("[main] ║                                                      ║")
	log.Println("[main] ║  [Feed] → [Indicators] → [Detector] → [Exec/Exits]   ║")
	log.Printf("[main] ║  REST+WS: %-42s ║", cfg.HTTPAddr)
	log.Printf("[main] ║  Metrics: %-42s ║", cfg.MetricsAddr)
	log.Println("[main] ║  Start trading via POST /api/bot/start               ║")
	log.Println("[main] ╚══════════════════════════════════════════════════════╝")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[main] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	slogger.Info("shutdown complete")
	log.Println("[main] shutdown complete.")
}
