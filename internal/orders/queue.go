// Package orders hands paid orders from the checkout handler to a background
// worker that persists them. The hand-off is a Redis list so a paid order
// survives a crash between payment and persistence.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/0gfoundation/0g-storefront/internal/store"
)

// Redis keys.
const (
	PendingKey    = "orders:pending"
	ProcessingKey = "orders:processing"
	DLQKey        = "orders:dlq"
)

// Order is a paid basket waiting to be persisted.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	PaymentID      string          `json:"payment_id"`
	Price          decimal.Decimal `json:"price"`
	PaidPrice      decimal.Decimal `json:"paid_price"`
	Currency       string          `json:"currency"`
	Items          []Item          `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	Attempts       int             `json:"attempts,omitempty"`
}

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

func (o Order) model() *store.Order {
	items := make([]store.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, store.OrderItem{
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
		})
	}
	return &store.Order{
		ID:             o.ID,
		UserID:         o.UserID,
		ConversationID: o.ConversationID,
		PaymentID:      o.PaymentID,
		Price:          o.Price,
		PaidPrice:      o.PaidPrice,
		Currency:       o.Currency,
		Status:         store.OrderStatusPaid,
		Items:          items,
		CreatedAt:      o.CreatedAt,
	}
}

// Queue is the producer side.
type Queue struct {
	rdb *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue appends o to the pending list.
func (q *Queue) Enqueue(ctx context.Context, o Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := q.rdb.RPush(ctx, PendingKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue order %s: %w", o.ID, err)
	}
	return nil
}

// Depth reports the number of pending, in-flight and dead-lettered orders.
func (q *Queue) Depth(ctx context.Context) (pending, processing, dead int64, err error) {
	pipe := q.rdb.Pipeline()
	p := pipe.LLen(ctx, PendingKey)
	pr := pipe.LLen(ctx, ProcessingKey)
	d := pipe.LLen(ctx, DLQKey)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return p.Val(), pr.Val(), d.Val(), nil
}
