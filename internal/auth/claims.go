package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: BranchID must be present for all non-admin activity.
// Privileged override capabilities are represented via separate server-side
// authorization checks, never by extra claim fields.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	BranchID  string    `json:"branch_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
