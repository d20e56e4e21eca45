package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"TradingPlatform/internal/auth"
	"TradingPlatform/internal/bus"
	"TradingPlatform/internal/config"
	"TradingPlatform/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	log.Info("starting event broadcast service", slog.String("env", cfg.Env))

	orderBus, err := bus.New(log, cfg)
	if err != nil {
		log.Error("failed to connect to bus", "error", err)
		panic(err)
	}
	defer orderBus.Close()
	log.Info("connected to bus", "backend", cfg.BusCfg.Backend)

	verifier := auth.NewTokenVerifier(cfg.AuthCfg.JWTSecret)
	server := ws.NewServer(log, verifier, ws.NewRegistry())

	if err := server.Run(context.Background(), orderBus); err != nil {
		log.Error("failed to subscribe to order events", "error", err)
		panic(err)
	}

	r := chi.NewRouter()
	r.Get("/health", healthHandler("event-broadcast"))
	r.Get("/ws", server.ServeHTTP)

	log.Info("starting server", "address", cfg.BroadcastCfg.Address)
	if err := http.ListenAndServe(cfg.BroadcastCfg.Address, r); err != nil {
		log.Error("server failed", "error", err)
	}
}

func healthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"` + service + `"}`))
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(
				os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(
				os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(
				os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(
				os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
