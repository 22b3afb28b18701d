package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims represents the typed JWT issued by the identity service.
// Token issuance lives outside this repository; the API only verifies and
// reads these claims.
type AccessTokenClaims struct {
	UserID     uuid.UUID  `json:"user_id"`
	BusinessID *uuid.UUID `json:"business_id,omitempty"`
	Role       string     `json:"role"`
	jwt.RegisteredClaims
}
