package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a storefront customer account.
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Product is a catalog entry. Checkout always prices from here, never from
// the client.
type Product struct {
	ID        string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Category  string          `gorm:"type:varchar(128);not null" json:"category"`
	ItemType  string          `gorm:"type:varchar(16);not null" json:"item_type"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Active    bool            `gorm:"not null" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	OrderStatusPaid = "paid"
)

// Order is a paid basket. ConversationID is the correlation id sent to the
// payment gateway and is unique per order.
type Order struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID         string          `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ConversationID string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"conversation_id"`
	PaymentID      string          `gorm:"type:varchar(64)" json:"payment_id"`
	Price          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	PaidPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid_price"`
	Currency       string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status         string          `gorm:"type:varchar(16);not null" json:"status"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	OrderID   string          `gorm:"type:varchar(36);index;not null" json:"-"`
	ProductID string          `gorm:"type:varchar(64);not null" json:"product_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
}
