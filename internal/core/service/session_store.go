package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// SessionStore keeps exactly one hashed refresh token per user on the user
// record. Raw tokens are never stored.
type SessionStore struct {
	users  ports.UserRepository
	hasher ports.Hasher
}

func NewSessionStore(users ports.UserRepository, hasher ports.Hasher) *SessionStore {
	return &SessionStore{users: users, hasher: hasher}
}

// tokenDigest reduces a raw token to a fixed 64-byte hex string so that any
// hasher (bcrypt caps input at 72 bytes) sees the whole token.
func tokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *SessionStore) hashToken(raw string) (string, error) {
	hash, err := s.hasher.Hash(tokenDigest(raw))
	if err != nil {
		return "", fmt.Errorf("hash refresh token: %w", err)
	}
	return hash, nil
}

// StartSession overwrites the user's stored hash, implicitly ending any prior session.
func (s *SessionStore) StartSession(ctx context.Context, user *domain.User, rawRefreshToken string) error {
	hash, err := s.hashToken(rawRefreshToken)
	if err != nil {
		return err
	}
	if err := s.users.UpdateRefreshHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// RotateSession replaces the hash the caller validated against. If another
// request rotated first, the swap fails and ErrSessionInvalid is returned.
func (s *SessionStore) RotateSession(ctx context.Context, user *domain.User, rawRefreshToken string) error {
	hash, err := s.hashToken(rawRefreshToken)
	if err != nil {
		return err
	}
	swapped, err := s.users.SwapRefreshHash(ctx, user.ID, user.RefreshTokenHash, hash)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if !swapped {
		return domain.ErrSessionInvalid
	}
	return nil
}

// ValidateSession loads the user and checks the raw token against the stored
// hash. The returned user still carries RefreshTokenHash for RotateSession.
func (s *SessionStore) ValidateSession(ctx context.Context, userID, rawRefreshToken string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		return nil, fmt.Errorf("validate session: %w", err)
	}
	if !user.HasSession() {
		return nil, domain.ErrSessionInvalid
	}

	ok, err := s.hasher.Verify(user.RefreshTokenHash, tokenDigest(rawRefreshToken))
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	return user, nil
}

// EndSession clears the stored hash. Ending a missing or already-ended session is not an error.
func (s *SessionStore) EndSession(ctx context.Context, userID string) error {
	err := s.users.UpdateRefreshHash(ctx, userID, "")
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}
