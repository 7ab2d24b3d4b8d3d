package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

// Post is a buyer's request-for-offers. It closes when one of its offers is
// accepted, either explicitly or through a successful payment.
type Post struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID     uuid.UUID        `gorm:"column:buyer_id;type:uuid;not null"`
	Title       string           `gorm:"column:title;not null"`
	Description *string          `gorm:"column:description"`
	BudgetCents int              `gorm:"column:budget_cents;not null"`
	Status      enums.PostStatus `gorm:"column:status;type:text;not null;default:'open'"`
	Offers      []Offer          `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
