package ports

import (
	"context"

	"github.com/norem/auth-service/internal/core/domain"
)

// LoginResult is returned by every flow that opens or rotates a session.
type LoginResult struct {
	Tokens domain.TokenPair
	User   domain.PublicUser
}

// AuthService is the only component the transport layer calls for session flows.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.PublicUser, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, userID, rawRefreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, userID string) error
	LoginExternal(ctx context.Context, identity *domain.ExternalIdentity) (*LoginResult, error)
	ChangeRole(ctx context.Context, userID string, role domain.Role) (*domain.PublicUser, error)
}

// Authenticator verifies access tokens on protected requests.
type Authenticator interface {
	Authenticate(rawAccessToken string) (*domain.Principal, error)
}

// Authorizer enforces role requirements on an authenticated principal.
type Authorizer interface {
	Authorize(principal *domain.Principal, required []domain.Role) error
}

// RefreshTokenParser verifies refresh tokens at the transport edge.
type RefreshTokenParser interface {
	ParseRefreshToken(raw string) (*domain.RefreshTokenClaims, error)
}
