package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

// Transaction is the immutable intent-to-pay record binding a buyer, a
// seller, and exactly one of a catalog product or an accepted-path offer.
// PaymentStatus is the only field mutated after creation, and only by the
// payment callback (online) or delivery confirmation (cod).
type Transaction struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	ProductID     *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	OfferID       *uuid.UUID          `gorm:"column:offer_id;type:uuid"`
	Quantity      int                 `gorm:"column:quantity;not null;default:1"`
	TotalCents    int                 `gorm:"column:total_cents;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsProductBacked reports whether the transaction targets a catalog product.
func (t Transaction) IsProductBacked() bool {
	return t.ProductID != nil && t.OfferID == nil
}

// IsOfferBacked reports whether the transaction targets a post offer.
func (t Transaction) IsOfferBacked() bool {
	return t.OfferID != nil && t.ProductID == nil
}
