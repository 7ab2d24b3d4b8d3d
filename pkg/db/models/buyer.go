package models

import (
	"time"

	"github.com/google/uuid"
)

// Buyer is the purchasing identity, keyed by the external identity provider's
// stable subject id. Immutable once created.
type Buyer struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubjectID   string    `gorm:"column:subject_id;not null;uniqueIndex"`
	Email       string    `gorm:"column:email;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
