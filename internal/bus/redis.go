package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"TradingPlatform/internal/config"

	"github.com/go-redis/redis/v8"
)

// RedisBus implements Bus over Redis pub/sub channels.
type RedisBus struct {
	log    *slog.Logger
	client *redis.Client
}

func NewRedisBus(log *slog.Logger, cfg config.RedisConfig) (*RedisBus, error) {
	const op = "bus.NewRedisBus"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisBus{log: log, client: client}, nil
}

func (b *RedisBus) Publish(ctx context.Context, channel string, msg any) error {
	const op = "bus.RedisBus.Publish"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler func(data []byte)) error {
	const op = "bus.RedisBus.Subscribe"

	pubsub := b.client.Subscribe(ctx, channel)
	// Receive forces the SUBSCRIBE round trip so a publish right after
	// Subscribe returns is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	b.log.Info("subscribed", "channel", channel)
	return nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
