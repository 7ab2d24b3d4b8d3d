package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

// Order is the fulfillment unit derived from a transaction. Exactly one of
// ProductID/PostID is set, mirroring the transaction's payload.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID      uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	TransactionID uuid.UUID         `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	ProductID     *uuid.UUID        `gorm:"column:product_id;type:uuid"`
	PostID        *uuid.UUID        `gorm:"column:post_id;type:uuid"`
	Address       string            `gorm:"column:address;not null"`
	Quantity      int               `gorm:"column:quantity;not null;default:1"`
	TotalCents    int               `gorm:"column:total_cents;not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveredAt   *time.Time        `gorm:"column:delivered_at"`
	CancelledAt   *time.Time        `gorm:"column:cancelled_at"`
	Escrow        *EscrowPayout     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// IsProductBacked reports whether cancellation must restore catalog stock.
func (o Order) IsProductBacked() bool {
	return o.ProductID != nil
}
