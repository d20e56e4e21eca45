package transport

import (
	"time"

	"TradingPlatform/internal/domain/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SubmitOrderRequest struct {
	Symbol   string           `json:"symbol" validate:"required"`
	Side     models.OrderSide `json:"side" validate:"required,oneof=BUY SELL"`
	Type     models.OrderType `json:"type" validate:"required,oneof=MARKET LIMIT STOP_MARKET"`
	Quantity decimal.Decimal  `json:"quantity" validate:"required"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type SubmitOrderResponse struct {
	OrderId uuid.UUID          `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

type CancelOrderResponse struct {
	Message string    `json:"message"`
	OrderId uuid.UUID `json:"orderId"`
}

type OrderView struct {
	OrderId   uuid.UUID          `json:"orderId"`
	Symbol    string             `json:"symbol"`
	Side      models.OrderSide   `json:"side"`
	Type      models.OrderType   `json:"type"`
	Quantity  decimal.Decimal    `json:"quantity"`
	Price     *decimal.Decimal   `json:"price,omitempty"`
	Status    models.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

type AssetBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
}

type BalanceResponse struct {
	Balances []AssetBalance `json:"balances"`
	CanTrade bool           `json:"canTrade"`
}

// Message types on the broadcast connection.
const (
	MessageConnected   = "CONNECTED"
	MessageOrderUpdate = "ORDER_UPDATE"
)

// WebSocketMessage is the envelope for every frame sent to a client.
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// OrderUpdate is the ORDER_UPDATE payload.
type OrderUpdate struct {
	OrderId   uuid.UUID          `json:"orderId"`
	Status    models.OrderStatus `json:"status"`
	Symbol    string             `json:"symbol"`
	Side      models.OrderSide   `json:"side"`
	Quantity  decimal.Decimal    `json:"quantity"`
	Price     decimal.Decimal    `json:"price"`
	Timestamp time.Time          `json:"timestamp"`
}
