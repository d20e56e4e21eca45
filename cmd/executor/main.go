package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"TradingPlatform/internal/bus"
	"TradingPlatform/internal/config"
	"TradingPlatform/internal/http_client"
	"TradingPlatform/internal/services/engine"
	"TradingPlatform/internal/storage/postgres"
	"TradingPlatform/internal/vault"

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

	log.Info("starting execution engine", slog.String("env", cfg.Env))

	storage, err := postgres.New(cfg.PostgresCfg.DSN())
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		panic(err)
	}
	defer storage.Close()

	orderBus, err := bus.New(log, cfg)
	if err != nil {
		log.Error("failed to connect to bus", "error", err)
		panic(err)
	}
	defer orderBus.Close()
	log.Info("connected to bus", "backend", cfg.BusCfg.Backend)

	credVault, err := vault.New(cfg.VaultCfg.EncryptionKey)
	if err != nil {
		log.Error("failed to init vault", "error", err)
		panic(err)
	}

	binanceClient := http_client.New(cfg.BinanceCfg, log)

	eng := engine.New(log, orderBus, storage, binanceClient, credVault)
	if err := eng.Run(context.Background()); err != nil {
		log.Error("failed to start engine", "error", err)
		panic(err)
	}

	r := chi.NewRouter()
	r.Get("/health", healthHandler("execution-engine"))

	log.Info("starting health endpoint", "address", cfg.ExecutorCfg.Address)
	if err := http.ListenAndServe(cfg.ExecutorCfg.Address, r); err != nil {
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
