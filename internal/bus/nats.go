package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSBus implements Bus over core NATS subjects. Core NATS (not
// JetStream) matches the bus contract: broadcast fan-out, at-most-once,
// nothing stored for absent subscribers.
type NATSBus struct {
	log  *slog.Logger
	conn *nats.Conn
}

func NewNATSBus(log *slog.Logger, url string) (*NATSBus, error) {
	const op = "bus.NewNATSBus"

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &NATSBus{log: log, conn: nc}, nil
}

func (b *NATSBus) Publish(ctx context.Context, channel string, msg any) error {
	const op = "bus.NATSBus.Publish"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	if err := b.conn.Publish(channel, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, channel string, handler func(data []byte)) error {
	const op = "bus.NATSBus.Subscribe"

	sub, err := b.conn.Subscribe(channel, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			b.log.Error("failed to unsubscribe", "channel", channel, "err", err)
		}
	}()

	b.log.Info("subscribed", "channel", channel)
	return nil
}

func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}
