package ports

import (
	"context"

	"github.com/norem/auth-service/internal/core/domain"
)

// UserRepository is the persistent user store consumed by the auth core.
// Lookups return domain.ErrUserNotFound when no record matches.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// UpdateRefreshHash unconditionally overwrites the stored refresh-token
	// hash. An empty hash clears the session.
	UpdateRefreshHash(ctx context.Context, id, hash string) error
	// SwapRefreshHash replaces the stored hash only if it still equals
	// expected. It reports whether the swap happened; the comparison and the
	// write must be atomic in the backing store.
	SwapRefreshHash(ctx context.Context, id, expected, next string) (bool, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	Count(ctx context.Context) (int64, error)
}
