package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes; refuse rather than truncate.
	maxPasswordLen = 72
)

// AuthService implements registration, login, refresh rotation and logout
// over a single refresh session per user.
type AuthService struct {
	users    ports.UserRepository
	hasher   ports.Hasher
	issuer   *TokenIssuer
	verifier *CredentialVerifier
	sessions *SessionStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(users ports.UserRepository, hasher ports.Hasher, issuer *TokenIssuer, log zerolog.Logger) (*AuthService, error) {
	verifier, err := NewCredentialVerifier(users, hasher)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		verifier: verifier,
		sessions: NewSessionStore(users, hasher),
		log:      log,
		now:      time.Now,
	}, nil
}

var _ ports.AuthService = (*AuthService)(nil)

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*domain.PublicUser, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") || name == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, fmt.Errorf("%w: password must be %d-%d bytes", domain.ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	created, err := s.createUser(ctx, email, name, hash, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	pub := created.Public()
	return &pub, nil
}

// CreateUser stores a new account with an explicit role. It backs owner
// bootstrap; self-service registration always uses RoleUser.
func (s *AuthService) CreateUser(ctx context.Context, email, password, name string, role domain.Role) (*domain.PublicUser, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidInput
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	created, err := s.createUser(ctx, normalizeEmail(email), strings.TrimSpace(name), hash, role)
	if err != nil {
		return nil, err
	}
	pub := created.Public()
	return &pub, nil
}

func (s *AuthService) createUser(ctx context.Context, email, name, passwordHash string, role domain.Role) (*domain.User, error) {
	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// Login exchanges valid credentials for a fresh token pair and replaces any
// existing session. Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.log.Info().Msg("login rejected")
		return nil, domain.ErrUnauthenticated
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("login succeeded")
	return result, nil
}

// Refresh rotates the session: the presented refresh token must verify, be
// of kind refresh, belong to userID and match the stored hash. The stored
// hash is then swapped for the new token's, so the presented token is dead
// from this point on even though it has not expired.
func (s *AuthService) Refresh(ctx context.Context, userID, rawRefreshToken string) (*ports.LoginResult, error) {
	claims, err := s.issuer.ParseRefreshToken(rawRefreshToken)
	if err != nil {
		s.log.Info().Err(err).Msg("refresh rejected: token")
		return nil, err
	}
	if claims.UserID != userID {
		s.log.Warn().Str("user_id", userID).Msg("refresh rejected: subject mismatch")
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.sessions.ValidateSession(ctx, userID, rawRefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			s.log.Info().Str("user_id", userID).Msg("refresh rejected: session")
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}

	pair, err := s.issuer.IssueTokenPair(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RotateSession(ctx, user, pair.RefreshToken); err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			s.log.Warn().Str("user_id", userID).Msg("refresh rejected: concurrent rotation")
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Msg("session rotated")
	return &ports.LoginResult{Tokens: pair, User: user.Public()}, nil
}

// Logout ends the user's session. It succeeds whether or not a session existed.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.EndSession(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("logout failed")
		return err
	}
	s.log.Info().Str("user_id", userID).Msg("logged out")
	return nil
}

// LoginExternal links a provider-verified identity to a local account by
// email, creating the account on first sight, and opens a session for it.
func (s *AuthService) LoginExternal(ctx context.Context, identity *domain.ExternalIdentity) (*ports.LoginResult, error) {
	if identity == nil || identity.ProviderID == "" || identity.Email == "" {
		return nil, domain.ErrUnauthenticated
	}
	email := normalizeEmail(identity.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		user, err = s.createExternalUser(ctx, identity, email)
	}
	if err != nil {
		return nil, fmt.Errorf("link external identity: %w", err)
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("user_id", user.ID).
		Str("provider", string(identity.Provider)).
		Msg("external login succeeded")
	return result, nil
}

func (s *AuthService) createExternalUser(ctx context.Context, identity *domain.ExternalIdentity, email string) (*domain.User, error) {
	// The account gets a random password nobody knows; it can only be used
	// through the provider until a password is set elsewhere.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating placeholder password: %w", err)
	}
	hash, err := s.hasher.Hash(hex.EncodeToString(secret))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user, err := s.createUser(ctx, email, name, hash, domain.RoleUser)
	if errors.Is(err, domain.ErrUserExists) {
		// Lost a race with a concurrent first login for the same email.
		return s.users.FindByEmail(ctx, email)
	}
	return user, err
}

// ChangeRole sets a user's role and ends their session so the next refresh
// forces a login that picks up the new role.
func (s *AuthService) ChangeRole(ctx context.Context, userID string, role domain.Role) (*domain.PublicUser, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("change role: %w", err)
	}
	if err := s.sessions.EndSession(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("change role: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("role", string(role)).Msg("role changed")
	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User) (*ports.LoginResult, error) {
	pair, err := s.issuer.IssueTokenPair(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.StartSession(ctx, user, pair.RefreshToken); err != nil {
		return nil, err
	}
	return &ports.LoginResult{Tokens: pair, User: user.Public()}, nil
}
