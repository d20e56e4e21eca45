package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

type OrderType string

const (
	Market     OrderType = "MARKET"
	Limit      OrderType = "LIMIT"
	StopMarket OrderType = "STOP_MARKET"
)

type OrderStatus string

const (
	Pending         OrderStatus = "PENDING"
	Filled          OrderStatus = "FILLED"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Rejected        OrderStatus = "REJECTED"
	Cancelled       OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition may follow.
func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Rejected
}

// OrderDraft is a submit request before identity assignment.
type OrderDraft struct {
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Quantity decimal.Decimal
	Price    *decimal.Decimal
}

// OrderCommand is the order.submit payload and the shape of a command
// record in the durable log. Status and CreatedAt live only in the log.
type OrderCommand struct {
	OrderId   uuid.UUID        `json:"orderId"`
	UserId    string           `json:"userId"`
	Symbol    string           `json:"symbol"`
	Side      OrderSide        `json:"side"`
	Type      OrderType        `json:"type"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Status    OrderStatus      `json:"-"`
}

const ActionCancel = "CANCEL"

// CancelCommand is the order.cancel payload. Cancels are advisory: nothing
// guarantees the exchange order stops before a racing fill.
type CancelCommand struct {
	OrderId   uuid.UUID `json:"orderId"`
	UserId    string    `json:"userId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is an append-only fact about an order outcome, published on
// order.status. Multiple events may exist per orderId; none are mutated.
type OrderEvent struct {
	OrderId   uuid.UUID       `json:"orderId"`
	UserId    string          `json:"userId"`
	Status    OrderStatus     `json:"status"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// EncryptedCredentials are exchange API credentials as stored: two
// ciphertexts decrypted on read by the vault.
type EncryptedCredentials struct {
	APIKey    string
	SecretKey string
}
