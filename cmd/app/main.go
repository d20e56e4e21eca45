package main

import (
	"log/slog"
	"net/http"
	"os"

	"TradingPlatform/internal/auth"
	"TradingPlatform/internal/bus"
	"TradingPlatform/internal/config"
	"TradingPlatform/internal/http_client"
	"TradingPlatform/internal/services/account"
	"TradingPlatform/internal/services/intake"
	"TradingPlatform/internal/services/positions"
	"TradingPlatform/internal/storage/postgres"
	"TradingPlatform/internal/vault"
	handler "TradingPlatform/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
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

	log.Info("starting order intake service", slog.String("env", cfg.Env))

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
	verifier := auth.NewTokenVerifier(cfg.AuthCfg.JWTSecret)
	validate := validator.New()

	intakeService := intake.New(log, orderBus, storage)
	positionService := positions.New(log, storage)
	accountService := account.New(log, storage, credVault, binanceClient)

	tradeHandler := handler.NewTradeHandler(log, intakeService, storage, positionService, accountService, verifier, validate)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Get("/health", healthHandler("order-intake"))
	r.Mount("/", tradeHandler.Routes())

	log.Info("starting server", "address", cfg.IntakeCfg.Address)
	if err := http.ListenAndServe(cfg.IntakeCfg.Address, r); err != nil {
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
