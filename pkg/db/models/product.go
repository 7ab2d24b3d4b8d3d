package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a seller-owned catalog listing. AvailableStock only
// decreases on order placement and only increases on cancellation of a
// product-backed order, always by the order's quantity.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Title          string    `gorm:"column:title;not null"`
	Description    *string   `gorm:"column:description"`
	PriceCents     int       `gorm:"column:price_cents;not null"`
	AvailableStock int       `gorm:"column:available_stock;not null;default:0"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
