package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/api"
	"tradeSimServer/config"
	"tradeSimServer/db"
	"tradeSimServer/engine"
	"tradeSimServer/notify"
	"tradeSimServer/state"
	"tradeSimServer/ws"
)

var configFile = flag.String("f", "etc/tradesim.yaml", "the config file")

func main() {
	flag.Parse()

	// Load .env file before the config so ${VAR} references resolve
	envErr := godotenv.Load()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	defer logx.Close()

	if envErr != nil {
		logx.Info("⚠️ .env file not found, using environment variables")
	} else {
		logx.Info("✅ Loaded environment variables from .env")
	}

	// Initialize database connections
	if err := db.InitPostgres(cfg.Postgres.DSN); err != nil {
		logx.Errorf("⚠️ PostgreSQL initialization failed: %v", err)
		logx.Info("   Session archive and /api/history will be empty")
	}
	defer db.ClosePostgres()

	if err := db.InitRedis(cfg.Redis); err != nil {
		logx.Errorf("⚠️ Redis initialization failed: %v", err)
		logx.Info("   Retried interactions will not be deduplicated")
	}
	defer db.CloseRedis()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Spectators and Discord webhooks both receive room messages
	var handler *api.Handler
	hub := ws.NewHub(func(roomID string) []notify.Message {
		return handler.RoomMessages(roomID)
	})
	go hub.Run(ctx)

	sink := notify.Multi{hub, notify.NewWebhook(cfg.Discord.Webhooks)}

	scheduler := engine.NewScheduler(cfg.Game.Countdown(), cfg.Game.CountdownStep(),
		api.CountdownNotifier(sink, cfg.Game.CountdownStep()))
	defer scheduler.Stop()

	gameEngine := engine.New(state.NewRegistry(), cfg.Game, engine.WithScheduler(scheduler))
	handler = api.NewHandler(gameEngine, sink, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	handler.Routes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Errorf("❌ Shutdown error: %v", err)
		}
	}()

	logx.Infof("🚀 Server starting on %s", cfg.Addr())
	logx.Info("📡 WebSocket Endpoints:")
	logx.Info("   /ws - subscribe to 'room:<roomId>' for boards, prompts and countdowns")
	logx.Info("🔌 API Endpoints:")
	logx.Info("   POST /api/interactions - slash commands and button presses")
	logx.Info("   GET  /api/leaderboard?roomId= - live session leaderboard")
	logx.Info("   GET  /api/positions?roomId= - live open positions")
	logx.Info("   GET  /api/rules - game rules")
	logx.Info("   GET  /api/history - all-time leaderboard and recent results")
	logx.Info("   GET  /api/health - Health check (Redis + PostgreSQL)")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Errorf("❌ Server error: %v", err)
		os.Exit(1)
	}
	logx.Info("👋 Server stopped")
}
