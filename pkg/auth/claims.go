package auth

import (
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Role       enums.UserRole
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients. Token
// issuance lives in the identity service; this backend only verifies.
type AccessTokenClaims struct {
	CustomerID uuid.UUID      `json:"customer_id"`
	Role       enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
