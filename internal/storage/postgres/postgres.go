package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"TradingPlatform/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotExists    = errors.New("order does not exist")
	ErrUserNotExists     = errors.New("user does not exist")
	ErrCredentialsNotSet = errors.New("exchange credentials are not configured")
)

type Storage struct {
	db *pgxpool.Pool
}

func New(connString string) (*Storage, error) {
	const op = "postgres.New"
	log := slog.With("op", op)

	db, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		log.Error("Failed to connect to database", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Ping(context.Background()); err != nil {
		log.Error("Failed to ping database", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
}

// CreateOrderCommand writes the initial command record. cmd.Status is
// expected to be PENDING at intake time.
func (s *Storage) CreateOrderCommand(ctx context.Context, cmd models.OrderCommand) error {
	const op = "postgres.CreateOrderCommand"
	log := slog.With("op", op)

	const query = `INSERT INTO order_commands(order_id, user_id, symbol, side, type, quantity, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		cmd.OrderId, cmd.UserId, cmd.Symbol, cmd.Side, cmd.Type,
		cmd.Quantity, cmd.Price, cmd.Status, cmd.Timestamp)
	if err != nil {
		log.Error("Failed to create order command", "order_id", cmd.OrderId, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("Order command created", "order_id", cmd.OrderId, "user_id", cmd.UserId)
	return nil
}

func (s *Storage) GetOrderCommand(ctx context.Context, orderId uuid.UUID) (models.OrderCommand, error) {
	const op = "postgres.GetOrderCommand"
	log := slog.With("op", op)

	const query = `SELECT order_id, user_id, symbol, side, type, quantity, price, status, created_at
		FROM order_commands WHERE order_id = $1`

	var cmd models.OrderCommand
	err := s.db.QueryRow(ctx, query, orderId).Scan(
		&cmd.OrderId, &cmd.UserId, &cmd.Symbol, &cmd.Side, &cmd.Type,
		&cmd.Quantity, &cmd.Price, &cmd.Status, &cmd.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OrderCommand{}, fmt.Errorf("%s: %w", op, ErrOrderNotExists)
		}
		log.Error("Failed to get order command", "order_id", orderId, "err", err)
		return models.OrderCommand{}, fmt.Errorf("%s: %w", op, err)
	}

	return cmd, nil
}

// UpdateOrderStatus moves a command record to a new status and, when price
// is non-nil, records the execution price. A missing record is not an
// error: the engine may observe a command whose intake write never landed.
func (s *Storage) UpdateOrderStatus(ctx context.Context, orderId uuid.UUID, status models.OrderStatus, price *decimal.Decimal) error {
	const op = "postgres.UpdateOrderStatus"
	log := slog.With("op", op)

	const query = `UPDATE order_commands SET status = $2, price = COALESCE($3, price) WHERE order_id = $1`

	tag, err := s.db.Exec(ctx, query, orderId, status, price)
	if err != nil {
		log.Error("Failed to update order status", "order_id", orderId, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		log.Debug("No command record for status update", "order_id", orderId, "status", status)
		return nil
	}

	log.Info("Order status updated", "order_id", orderId, "status", status)
	return nil
}

// AppendOrderEvent appends an immutable event to the log.
func (s *Storage) AppendOrderEvent(ctx context.Context, ev models.OrderEvent) error {
	const op = "postgres.AppendOrderEvent"
	log := slog.With("op", op)

	const query = `INSERT INTO order_events(order_id, user_id, status, symbol, side, quantity, price, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, query,
		ev.OrderId, ev.UserId, ev.Status, ev.Symbol, ev.Side, ev.Quantity, ev.Price, ev.Timestamp)
	if err != nil {
		log.Error("Failed to append order event", "order_id", ev.OrderId, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("Order event appended", "order_id", ev.OrderId, "status", ev.Status)
	return nil
}

func (s *Storage) ListUserOrders(ctx context.Context, userId string) ([]models.OrderCommand, error) {
	const op = "postgres.ListUserOrders"
	log := slog.With("op", op)

	const query = `SELECT order_id, user_id, symbol, side, type, quantity, price, status, created_at
		FROM order_commands WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userId)
	if err != nil {
		log.Error("Failed to list user orders", "user_id", userId, "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var orders []models.OrderCommand
	for rows.Next() {
		var cmd models.OrderCommand
		err := rows.Scan(&cmd.OrderId, &cmd.UserId, &cmd.Symbol, &cmd.Side, &cmd.Type,
			&cmd.Quantity, &cmd.Price, &cmd.Status, &cmd.Timestamp)
		if err != nil {
			log.Error("Failed to scan user order", "user_id", userId, "err", err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		orders = append(orders, cmd)
	}

	return orders, rows.Err()
}

// ListFillEvents returns the user's FILLED and PARTIALLY_FILLED events in
// append order, the input of the position fold.
func (s *Storage) ListFillEvents(ctx context.Context, userId string) ([]models.OrderEvent, error) {
	const op = "postgres.ListFillEvents"
	log := slog.With("op", op)

	const query = `SELECT order_id, user_id, status, symbol, side, quantity, price, event_time
		FROM order_events WHERE user_id = $1 AND status IN ($2, $3) ORDER BY event_time, id`

	rows, err := s.db.Query(ctx, query, userId, models.Filled, models.PartiallyFilled)
	if err != nil {
		log.Error("Failed to list fill events", "user_id", userId, "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []models.OrderEvent
	for rows.Next() {
		var ev models.OrderEvent
		err := rows.Scan(&ev.OrderId, &ev.UserId, &ev.Status, &ev.Symbol, &ev.Side,
			&ev.Quantity, &ev.Price, &ev.Timestamp)
		if err != nil {
			log.Error("Failed to scan fill event", "user_id", userId, "err", err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetUserCredentials loads the user's encrypted exchange credentials.
func (s *Storage) GetUserCredentials(ctx context.Context, userId string) (models.EncryptedCredentials, error) {
	const op = "postgres.GetUserCredentials"
	log := slog.With("op", op)

	const query = `SELECT binance_api_key, binance_secret_key FROM users WHERE id = $1`

	var creds models.EncryptedCredentials
	err := s.db.QueryRow(ctx, query, userId).Scan(&creds.APIKey, &creds.SecretKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EncryptedCredentials{}, fmt.Errorf("%s: %w", op, ErrUserNotExists)
		}
		log.Error("Failed to get user credentials", "user_id", userId, "err", err)
		return models.EncryptedCredentials{}, fmt.Errorf("%s: %w", op, err)
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return models.EncryptedCredentials{}, fmt.Errorf("%s: %w", op, ErrCredentialsNotSet)
	}

	return creds, nil
}
