package ports

import (
	"context"

	"github.com/norem/auth-service/internal/core/domain"
)

// IdentityResolver turns a provider-issued access token into a verified
// external identity. One implementation exists per provider.
type IdentityResolver interface {
	Provider() domain.Provider
	Resolve(ctx context.Context, accessToken string) (*domain.ExternalIdentity, error)
}
