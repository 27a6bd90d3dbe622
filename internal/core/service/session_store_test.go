package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/infrastructure/hashing"
)

func seedUser(t *testing.T, repo *stubAuthRepo, id string) *domain.User {
	t.Helper()
	user, err := repo.Create(context.Background(), &domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return user
}

func TestSessionStore_LongTokensAreHashedWhole(t *testing.T) {
	repo := newStubAuthRepo()
	store := NewSessionStore(repo, hashing.NewBcryptHasher(bcrypt.MinCost))
	user := seedUser(t, repo, "u1")

	// Two tokens identical for the first 72 bytes must not validate as each other.
	prefix := strings.Repeat("x", 100)
	if err := store.StartSession(context.Background(), user, prefix+"-one"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := store.ValidateSession(context.Background(), user.ID, prefix+"-two"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := store.ValidateSession(context.Background(), user.ID, prefix+"-one"); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}
}

func TestSessionStore_RotateRequiresCurrentHash(t *testing.T) {
	repo := newStubAuthRepo()
	store := NewSessionStore(repo, hashing.NewBcryptHasher(bcrypt.MinCost))
	user := seedUser(t, repo, "u1")

	if err := store.StartSession(context.Background(), user, "token-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	current, err := store.ValidateSession(context.Background(), user.ID, "token-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := store.RotateSession(context.Background(), current, "token-2"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	// A second rotation from the same stale snapshot loses the swap.
	if err := store.RotateSession(context.Background(), current, "token-3"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := store.ValidateSession(context.Background(), user.ID, "token-2"); err != nil {
		t.Fatalf("expected token-2 to be current, got %v", err)
	}
}

func TestSessionStore_ValidateWithoutSession(t *testing.T) {
	repo := newStubAuthRepo()
	store := NewSessionStore(repo, hashing.NewBcryptHasher(bcrypt.MinCost))
	user := seedUser(t, repo, "u1")

	if _, err := store.ValidateSession(context.Background(), user.ID, "anything"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := store.ValidateSession(context.Background(), "missing", "anything"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for unknown user, got %v", err)
	}
}

func TestSessionStore_Argon2Backend(t *testing.T) {
	repo := newStubAuthRepo()
	store := NewSessionStore(repo, hashing.NewArgon2Hasher(hashing.Argon2Params{Time: 1, Memory: 1024, Threads: 1}))
	user := seedUser(t, repo, "u1")

	if err := store.StartSession(context.Background(), user, "token-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := store.ValidateSession(context.Background(), user.ID, "token-1"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := store.EndSession(context.Background(), user.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := store.ValidateSession(context.Background(), user.ID, "token-1"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid after end, got %v", err)
	}
}

func TestCredentialVerifier(t *testing.T) {
	repo := newStubAuthRepo()
	hasher := hashing.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := repo.Create(context.Background(), &domain.User{
		ID: "u1", Email: "alice@example.com", PasswordHash: hash, RefreshTokenHash: "stored", Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	verifier, err := NewCredentialVerifier(repo, hasher)
	if err != nil {
		t.Fatalf("NewCredentialVerifier: %v", err)
	}

	user, err := verifier.Verify(context.Background(), " ALICE@example.com", "correct-horse")
	if err != nil || user == nil {
		t.Fatalf("expected match, got %v, %v", user, err)
	}
	if user.PasswordHash != "" || user.RefreshTokenHash != "" {
		t.Fatalf("secrets must be stripped: %+v", user)
	}

	if user, err := verifier.Verify(context.Background(), "alice@example.com", "wrong"); user != nil || err != nil {
		t.Fatalf("expected (nil, nil) for wrong password, got %v, %v", user, err)
	}
	if user, err := verifier.Verify(context.Background(), "bob@example.com", "correct-horse"); user != nil || err != nil {
		t.Fatalf("expected (nil, nil) for unknown email, got %v, %v", user, err)
	}
}
