package bus

import (
	"fmt"
	"log/slog"

	"TradingPlatform/internal/config"
)

// New builds the configured bus backend.
func New(log *slog.Logger, cfg *config.Config) (Bus, error) {
	switch cfg.BusCfg.Backend {
	case "", "redis":
		return NewRedisBus(log, cfg.RedisCfg)
	case "nats":
		return NewNATSBus(log, cfg.NatsCfg.URL)
	default:
		return nil, fmt.Errorf("bus.New: unknown backend %q", cfg.BusCfg.Backend)
	}
}
