// Package dbtest holds the behavioural contract every ports.UserRepository
// adapter must satisfy. Adapter packages run it from their own tests.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// NewUser builds a user ready for Create with a unique id and email.
func NewUser(role domain.Role) *domain.User {
	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id[:8]),
		Name:         "Test User",
		PasswordHash: "$2a$04$placeholder",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RunUserRepository exercises repo against the full contract. newRepo must
// return an empty repository each time it is called.
func RunUserRepository(t *testing.T, newRepo func(t *testing.T) ports.UserRepository) {
	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		in := NewUser(domain.RoleAdmin)

		created, err := repo.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in.ID, created.ID)
		assert.False(t, created.HasSession())

		byID, err := repo.FindByID(ctx, in.ID)
		require.NoError(t, err)
		assert.Equal(t, in.Email, byID.Email)
		assert.Equal(t, in.Name, byID.Name)
		assert.Equal(t, in.PasswordHash, byID.PasswordHash)
		assert.Equal(t, domain.RoleAdmin, byID.Role)
		assert.Equal(t, in.CreatedAt.Unix(), byID.CreatedAt.Unix())

		byEmail, err := repo.FindByEmail(ctx, in.Email)
		require.NoError(t, err)
		assert.Equal(t, in.ID, byEmail.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		first := NewUser(domain.RoleUser)
		_, err := repo.Create(ctx, first)
		require.NoError(t, err)

		second := NewUser(domain.RoleUser)
		second.Email = first.Email
		_, err = repo.Create(ctx, second)
		require.ErrorIs(t, err, domain.ErrUserExists)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.FindByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = repo.FindByEmail(ctx, "missing@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		require.ErrorIs(t, repo.UpdateRefreshHash(ctx, "missing", "h"), domain.ErrUserNotFound)
		require.ErrorIs(t, repo.UpdateRole(ctx, "missing", domain.RoleUser), domain.ErrUserNotFound)

		swapped, err := repo.SwapRefreshHash(ctx, "missing", "", "h")
		require.NoError(t, err)
		assert.False(t, swapped)
	})

	t.Run("refresh hash lifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := NewUser(domain.RoleUser)
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)

		require.NoError(t, repo.UpdateRefreshHash(ctx, u.ID, "hash-1"))
		got, err := repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash-1", got.RefreshTokenHash)

		swapped, err := repo.SwapRefreshHash(ctx, u.ID, "stale", "hash-x")
		require.NoError(t, err)
		assert.False(t, swapped, "swap must fail when expected does not match")

		swapped, err = repo.SwapRefreshHash(ctx, u.ID, "hash-1", "hash-2")
		require.NoError(t, err)
		assert.True(t, swapped)

		got, err = repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash-2", got.RefreshTokenHash)

		require.NoError(t, repo.UpdateRefreshHash(ctx, u.ID, ""))
		got, err = repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, got.HasSession())
	})

	t.Run("concurrent swap has one winner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		u := NewUser(domain.RoleUser)
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateRefreshHash(ctx, u.ID, "current"))

		const workers = 8
		var (
			wg   sync.WaitGroup
			wins atomic.Int64
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := repo.SwapRefreshHash(ctx, u.ID, "current", fmt.Sprintf("next-%d", i))
				if err != nil {
					t.Errorf("swap: %v", err)
					return
				}
				if ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int64(1), wins.Load())
	})

	t.Run("role and count", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		u := NewUser(domain.RoleUser)
		_, err = repo.Create(ctx, u)
		require.NoError(t, err)
		_, err = repo.Create(ctx, NewUser(domain.RoleUser))
		require.NoError(t, err)

		require.NoError(t, repo.UpdateRole(ctx, u.ID, domain.RoleOwner))
		got, err := repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleOwner, got.Role)

		n, err = repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
