package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

// Offer is a seller bid against a buyer post.
type Offer struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PostID      uuid.UUID         `gorm:"column:post_id;type:uuid;not null"`
	SellerID    uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents int               `gorm:"column:amount_cents;not null"`
	Message     *string           `gorm:"column:message"`
	Status      enums.OfferStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AcceptedAt  *time.Time        `gorm:"column:accepted_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
