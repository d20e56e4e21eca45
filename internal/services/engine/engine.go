package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"TradingPlatform/internal/bus"
	"TradingPlatform/internal/domain/models"
	"TradingPlatform/internal/http_client"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Storage interface {
	GetUserCredentials(ctx context.Context, userId string) (models.EncryptedCredentials, error)
	AppendOrderEvent(ctx context.Context, ev models.OrderEvent) error
	UpdateOrderStatus(ctx context.Context, orderId uuid.UUID, status models.OrderStatus, price *decimal.Decimal) error
}

type Exchange interface {
	SubmitOrder(ctx context.Context, creds http_client.Credentials, cmd models.OrderCommand) (http_client.OrderAck, error)
}

type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Engine consumes order commands, submits them to the exchange and
// resolves every command to exactly one event. It is a single logical
// subscriber: a second instance would double-submit, as there is no
// partition key or dedup beyond orderId.
type Engine struct {
	log      *slog.Logger
	bus      bus.Bus
	store    Storage
	exchange Exchange
	vault    Decrypter
	now      func() time.Time
}

func New(log *slog.Logger, b bus.Bus, store Storage, exchange Exchange, vault Decrypter) *Engine {
	return &Engine{
		log:      log,
		bus:      b,
		store:    store,
		exchange: exchange,
		vault:    vault,
		now:      time.Now,
	}
}

// Run subscribes to the command channels and returns once subscriptions
// are established; processing continues until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	const op = "engine.Run"

	err := e.bus.Subscribe(ctx, bus.ChannelOrderSubmit, func(data []byte) {
		var cmd models.OrderCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			e.log.Error("invalid order command", "err", err)
			return
		}
		// Distinct orders execute concurrently; same-order arrival order is
		// best effort only.
		go e.process(ctx, cmd)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = e.bus.Subscribe(ctx, bus.ChannelOrderCancel, func(data []byte) {
		var cancel models.CancelCommand
		if err := json.Unmarshal(data, &cancel); err != nil {
			e.log.Error("invalid cancel command", "err", err)
			return
		}
		// Cancels are advisory: intake already marked the record and a
		// racing fill wins by design.
		e.log.Info("cancel received", "order_id", cancel.OrderId, "user_id", cancel.UserId)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("engine started")
	return nil
}

// process resolves one command: execute, publish the event, append it to
// the log, then best-effort update of the command record. Persistence
// failures are logged and swallowed; the pipeline never unwinds here.
func (e *Engine) process(ctx context.Context, cmd models.OrderCommand) {
	ev := e.execute(ctx, cmd)

	if err := e.bus.Publish(ctx, bus.ChannelOrderStatus, ev); err != nil {
		e.log.Error("failed to publish order event", "order_id", ev.OrderId, "err", err)
	}

	if err := e.store.AppendOrderEvent(ctx, ev); err != nil {
		e.log.Error("failed to append order event", "order_id", ev.OrderId, "err", err)
	}

	price := cmd.Price
	if ev.Price.IsPositive() {
		price = &ev.Price
	}
	if err := e.store.UpdateOrderStatus(ctx, cmd.OrderId, ev.Status, price); err != nil {
		e.log.Error("failed to update order command", "order_id", ev.OrderId, "err", err)
	}

	e.log.Info("order processed", "order_id", ev.OrderId, "status", ev.Status, "price", ev.Price)
}

// execute runs the external call and maps the outcome. It never returns an
// error: every failure becomes a synthetic REJECTED event with the
// requested quantity and price 0.
func (e *Engine) execute(ctx context.Context, cmd models.OrderCommand) models.OrderEvent {
	const op = "engine.execute"
	log := e.log.With("op", op, "order_id", cmd.OrderId)

	creds, err := e.store.GetUserCredentials(ctx, cmd.UserId)
	if err != nil {
		log.Error("failed to load credentials", "err", err)
		return e.rejected(cmd)
	}

	apiKey, err := e.vault.Decrypt(creds.APIKey)
	if err != nil {
		log.Error("failed to decrypt api key", "err", err)
		return e.rejected(cmd)
	}
	secretKey, err := e.vault.Decrypt(creds.SecretKey)
	if err != nil {
		log.Error("failed to decrypt secret key", "err", err)
		return e.rejected(cmd)
	}

	ack, err := e.exchange.SubmitOrder(ctx, http_client.Credentials{APIKey: apiKey, SecretKey: secretKey}, cmd)
	if err != nil {
		log.Error("exchange call failed", "err", err)
		return e.rejected(cmd)
	}

	return e.mapAck(cmd, ack)
}

// mapAck folds a validated exchange acknowledgement into an order event.
func (e *Engine) mapAck(cmd models.OrderCommand, ack http_client.OrderAck) models.OrderEvent {
	var status models.OrderStatus
	switch ack.Kind {
	case http_client.AckFilled:
		status = models.Filled
	case http_client.AckPartiallyFilled:
		status = models.PartiallyFilled
	case http_client.AckRejected:
		status = models.Rejected
	default:
		e.log.Warn("unexpected exchange status", "order_id", cmd.OrderId, "status", ack.RawStatus)
		status = models.Pending
	}

	quantity := cmd.Quantity
	if ack.ExecutedQty.IsPositive() {
		quantity = ack.ExecutedQty
	}

	return models.OrderEvent{
		OrderId:   cmd.OrderId,
		UserId:    cmd.UserId,
		Status:    status,
		Symbol:    cmd.Symbol,
		Side:      cmd.Side,
		Quantity:  quantity,
		Price:     executionPrice(ack),
		Timestamp: e.now().UTC(),
	}
}

// executionPrice prefers the scalar response price (limit-style fills) and
// falls back to the quantity-weighted average over fill line items
// (market-style fills). No price information yields zero.
func executionPrice(ack http_client.OrderAck) decimal.Decimal {
	if ack.Price.IsPositive() {
		return ack.Price
	}

	totalValue := decimal.Zero
	totalQty := decimal.Zero
	for _, fill := range ack.Fills {
		totalValue = totalValue.Add(fill.Price.Mul(fill.Quantity))
		totalQty = totalQty.Add(fill.Quantity)
	}
	if totalQty.IsPositive() {
		return totalValue.Div(totalQty)
	}
	return decimal.Zero
}

func (e *Engine) rejected(cmd models.OrderCommand) models.OrderEvent {
	return models.OrderEvent{
		OrderId:   cmd.OrderId,
		UserId:    cmd.UserId,
		Status:    models.Rejected,
		Symbol:    cmd.Symbol,
		Side:      cmd.Side,
		Quantity:  cmd.Quantity,
		Price:     decimal.Zero,
		Timestamp: e.now().UTC(),
	}
}
