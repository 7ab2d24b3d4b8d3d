package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentSession correlates an order with a hosted checkout session so that
// both the redirect and webhook callback paths resolve to the same order.
type PaymentSession struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TransactionID     uuid.UUID `gorm:"column:transaction_id;type:uuid;not null"`
	ProviderSessionID string    `gorm:"column:provider_session_id;not null;uniqueIndex"`
	CheckoutURL       string    `gorm:"column:checkout_url;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
