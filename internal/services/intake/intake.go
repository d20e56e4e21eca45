package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"TradingPlatform/internal/bus"
	"TradingPlatform/internal/domain/models"
	"TradingPlatform/internal/storage/postgres"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol       = errors.New("symbol must be an uppercase ticker")
	ErrInvalidSide         = errors.New("side must be BUY or SELL")
	ErrInvalidType         = errors.New("unknown order type")
	ErrInvalidQuantity     = errors.New("quantity must be positive and at most 1000")
	ErrPriceRequired       = errors.New("price is required for LIMIT orders")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("cannot cancel completed order")
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Z]+$`)
	maxQuantity   = decimal.NewFromInt(1000)
)

type Storage interface {
	CreateOrderCommand(ctx context.Context, cmd models.OrderCommand) error
	GetOrderCommand(ctx context.Context, orderId uuid.UUID) (models.OrderCommand, error)
	UpdateOrderStatus(ctx context.Context, orderId uuid.UUID, status models.OrderStatus, price *decimal.Decimal) error
}

// Intake validates order drafts, assigns identity, publishes commands and
// writes the initial PENDING record. It never waits for execution.
type Intake struct {
	log   *slog.Logger
	bus   bus.Bus
	store Storage
}

func New(log *slog.Logger, b bus.Bus, store Storage) *Intake {
	return &Intake{
		log:   log,
		bus:   b,
		store: store,
	}
}

// Submit publishes a validated command and records it as PENDING. Publish
// and log write are not atomic: a failed write after a successful publish
// surfaces as an error here while the engine proceeds regardless.
func (i *Intake) Submit(ctx context.Context, userId string, draft models.OrderDraft) (models.OrderCommand, error) {
	const op = "intake.Submit"

	if err := validate(draft); err != nil {
		i.log.Info("rejected order draft", "user_id", userId, "err", err)
		return models.OrderCommand{}, fmt.Errorf("%s: %w", op, err)
	}

	cmd := models.OrderCommand{
		OrderId:   uuid.New(),
		UserId:    userId,
		Symbol:    draft.Symbol,
		Side:      draft.Side,
		Type:      draft.Type,
		Quantity:  draft.Quantity,
		Price:     draft.Price,
		Timestamp: time.Now().UTC(),
		Status:    models.Pending,
	}

	if err := i.bus.Publish(ctx, bus.ChannelOrderSubmit, cmd); err != nil {
		i.log.Error("failed to publish order command", "order_id", cmd.OrderId, "err", err)
		return models.OrderCommand{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := i.store.CreateOrderCommand(ctx, cmd); err != nil {
		// The command is already on the bus; the engine's status update is
		// a no-op against the missing record.
		i.log.Error("failed to write order command", "order_id", cmd.OrderId, "err", err)
		return models.OrderCommand{}, fmt.Errorf("%s: %w", op, err)
	}

	i.log.Info("order submitted", "order_id", cmd.OrderId, "user_id", userId, "symbol", cmd.Symbol)
	return cmd, nil
}

// Cancel verifies ownership, publishes an advisory cancel command and
// optimistically marks the record CANCELLED without waiting for the engine.
func (i *Intake) Cancel(ctx context.Context, orderId uuid.UUID, userId string) error {
	const op = "intake.Cancel"

	cmd, err := i.store.GetOrderCommand(ctx, orderId)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotExists) {
			return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		i.log.Error("failed to get order command", "order_id", orderId, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.UserId != userId {
		// Do not leak existence of other users' orders.
		return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}
	if cmd.Status.IsTerminal() {
		return fmt.Errorf("%s: %w", op, ErrOrderNotCancellable)
	}

	cancel := models.CancelCommand{
		OrderId:   orderId,
		UserId:    userId,
		Action:    models.ActionCancel,
		Timestamp: time.Now().UTC(),
	}
	if err := i.bus.Publish(ctx, bus.ChannelOrderCancel, cancel); err != nil {
		i.log.Error("failed to publish cancel command", "order_id", orderId, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := i.store.UpdateOrderStatus(ctx, orderId, models.Cancelled, nil); err != nil {
		i.log.Error("failed to mark order cancelled", "order_id", orderId, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	i.log.Info("cancel requested", "order_id", orderId, "user_id", userId)
	return nil
}

func validate(draft models.OrderDraft) error {
	if !symbolPattern.MatchString(draft.Symbol) {
		return ErrInvalidSymbol
	}
	switch draft.Side {
	case models.Buy, models.Sell:
	default:
		return ErrInvalidSide
	}
	switch draft.Type {
	case models.Market, models.Limit, models.StopMarket:
	default:
		return ErrInvalidType
	}
	if !draft.Quantity.IsPositive() || draft.Quantity.GreaterThan(maxQuantity) {
		return ErrInvalidQuantity
	}
	if draft.Type == models.Limit && draft.Price == nil {
		return ErrPriceRequired
	}
	if draft.Price != nil && !draft.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}
