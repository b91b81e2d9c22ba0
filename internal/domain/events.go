package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderCreated  = "order.created"
	TopicCartAbandoned = "cart.abandoned"
)

type OrderCreatedEvent struct {
	OrderID    string       `json:"order_id"`
	CustomerID string       `json:"customer_id"`
	Items      []OrderItem  `json:"items"`
	Summary    OrderSummary `json:"summary"`
	Timestamp  time.Time    `json:"timestamp"`
}

type CartAbandonedEvent struct {
	ProfileID    string          `json:"profile_id"`
	ItemCount    int             `json:"item_count"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Currency     string          `json:"currency"`
	LastActivity time.Time       `json:"last_activity"`
	Timestamp    time.Time       `json:"timestamp"`
}
