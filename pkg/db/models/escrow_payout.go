package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

// EscrowPayout holds a seller's earnings for one order until an
// administrative release. Fee and net amounts are computed once at creation
// and never recomputed.
type EscrowPayout struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	SellerID         uuid.UUID          `gorm:"column:seller_id;type:uuid;not null"`
	TotalCents       int                `gorm:"column:total_cents;not null"`
	PlatformFeeCents int                `gorm:"column:platform_fee_cents;not null"`
	NetCents         int                `gorm:"column:net_cents;not null"`
	Status           enums.EscrowStatus `gorm:"column:status;type:text;not null;default:'held'"`
	ReleasedAt       *time.Time         `gorm:"column:released_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
