package domain

import "time"

// TokenKind discriminates access tokens from refresh tokens. It is carried in
// every JWT as the "type" claim and checked on every parse.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AccessTokenClaims is the verified content of an access token.
type AccessTokenClaims struct {
	UserID    string
	Email     string
	Name      string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal converts verified access claims into the request-scoped identity.
func (c *AccessTokenClaims) Principal() *Principal {
	return &Principal{UserID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}
}

// RefreshTokenClaims is the verified content of a refresh token. It
// deliberately carries no email or role.
type RefreshTokenClaims struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is a freshly minted access/refresh combination.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Principal is the authenticated identity attached to a single request.
type Principal struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}
