package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Seller is the merchant identity, keyed by the external identity provider's
// stable subject id. Payout bank fields stay nullable until onboarding
// completes; escrow release requires both plus verification.
type Seller struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubjectID     string    `gorm:"column:subject_id;not null;uniqueIndex"`
	Email         string    `gorm:"column:email;not null"`
	DisplayName   string    `gorm:"column:display_name;not null"`
	IsVerified    bool      `gorm:"column:is_verified;not null;default:false"`
	BankName      *string   `gorm:"column:bank_name"`
	AccountNumber *string   `gorm:"column:account_number"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasPayoutDetails reports whether both bank fields are present and non-blank.
func (s Seller) HasPayoutDetails() bool {
	if s.BankName == nil || s.AccountNumber == nil {
		return false
	}
	return strings.TrimSpace(*s.BankName) != "" && strings.TrimSpace(*s.AccountNumber) != ""
}
