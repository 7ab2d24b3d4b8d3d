package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

// LedgerEvent records an immutable money lifecycle event tied to an order.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	BuyerID     uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID    uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	Type        enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountCents int                   `gorm:"column:amount_cents;not null"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
