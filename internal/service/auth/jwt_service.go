package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService validates the bearer tokens issued by the identity service.
type JWTService interface {
	// GenerateToken creates a signed access token for userID carrying role.
	// Used by the dev-token tool and tests; production tokens are issued upstream.
	GenerateToken(ctx context.Context, userID uuid.UUID, role string) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims containing user information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// Role is the user's role; admin endpoints require the configured admin role.
	Role string `json:"role,omitempty"`

	// TokenType must be "access".
	TokenType string `json:"type,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	return c != nil && role != "" && c.Role == role
}
