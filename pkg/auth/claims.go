package auth

import (
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the typed JWT presented by clients. Subject is
// the identity provider's stable uid; the core never sees raw credentials.
type AccessTokenClaims struct {
	Role  enums.ActorRole `json:"role"`
	Email string          `json:"email,omitempty"`
	Name  string          `json:"name,omitempty"`
	jwt.RegisteredClaims
}
