package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// CredentialVerifier checks an email/password pair against the stored hash.
// "Wrong credentials" is reported as (nil, nil), never as an error.
type CredentialVerifier struct {
	users  ports.UserRepository
	hasher ports.Hasher
	// dummyDigest is verified against when the email is unknown so that both
	// miss paths cost one hash comparison.
	dummyDigest string
}

func NewCredentialVerifier(users ports.UserRepository, hasher ports.Hasher) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash("credential-verifier-timing-pad")
	if err != nil {
		return nil, fmt.Errorf("credential verifier: %w", err)
	}
	return &CredentialVerifier{users: users, hasher: hasher, dummyDigest: dummy}, nil
}

// Verify returns the matching user with secrets stripped, or nil on any mismatch.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := v.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_, _ = v.hasher.Verify(v.dummyDigest, password)
			return nil, nil
		}
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	ok, err := v.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return user.WithoutSecrets(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
