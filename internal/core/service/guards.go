package service

import (
	"fmt"

	"github.com/norem/auth-service/internal/core/domain"
)

// AccessGuard authenticates requests from the access token alone. It never
// consults the user store; expiry is the only revocation.
type AccessGuard struct {
	issuer *TokenIssuer
}

func NewAccessGuard(issuer *TokenIssuer) *AccessGuard {
	return &AccessGuard{issuer: issuer}
}

func (g *AccessGuard) Authenticate(rawAccessToken string) (*domain.Principal, error) {
	if rawAccessToken == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	}
	claims, err := g.issuer.ParseAccessToken(rawAccessToken)
	if err != nil {
		return nil, err
	}
	return claims.Principal(), nil
}

// RoleGuard authorises an authenticated principal against a set of required roles.
type RoleGuard struct{}

func NewRoleGuard() *RoleGuard {
	return &RoleGuard{}
}

// Authorize allows when required is empty or when the principal's role
// closure contains at least one required role.
func (RoleGuard) Authorize(principal *domain.Principal, required []domain.Role) error {
	if len(required) == 0 {
		return nil
	}
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	if !principal.Role.Valid() {
		return fmt.Errorf("%w: unrecognised role", domain.ErrForbidden)
	}

	for _, r := range required {
		if principal.Role.Satisfies(r) {
			return nil
		}
	}
	return domain.ErrForbidden
}
