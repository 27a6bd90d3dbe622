package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/norem/auth-service/internal/core/domain"
)

const (
	defaultAccessTTL  = 30 * time.Second
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "auth-service"
)

// TokenConfig holds the signing material and lifetimes for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// SigningMethod is an HMAC algorithm name: HS256 (default), HS384 or HS512.
	SigningMethod string
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string           `json:"email"`
	Name  string           `json:"name"`
	Role  domain.Role      `json:"role"`
	Type  domain.TokenKind `json:"type"`
}

type refreshClaims struct {
	jwt.RegisteredClaims
	Type domain.TokenKind `json:"type"`
}

// TokenIssuer mints and verifies access and refresh tokens. Each kind has
// its own secret so that one leaking cannot forge the other.
type TokenIssuer struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	method     *jwt.SigningMethodHMAC
	now        func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token issuer: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token issuer: access and refresh secrets must differ")
	}

	method := jwt.SigningMethodHS256
	if cfg.SigningMethod != "" {
		m, ok := jwt.GetSigningMethod(cfg.SigningMethod).(*jwt.SigningMethodHMAC)
		if !ok {
			return nil, fmt.Errorf("token issuer: unsupported signing method %q", cfg.SigningMethod)
		}
		method = m
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}

	return &TokenIssuer{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		method:     method,
		now:        time.Now,
	}, nil
}

func (t *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := t.now()
	return jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

// IssueAccessToken signs a short-lived token carrying the user's display identity and role.
func (t *TokenIssuer) IssueAccessToken(user *domain.User) (string, time.Time, error) {
	claims := accessClaims{
		RegisteredClaims: t.registered(user.ID, t.accessTTL),
		Email:            user.Email,
		Name:             user.Name,
		Role:             user.Role,
		Type:             domain.TokenKindAccess,
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.accessKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken signs a long-lived token carrying only the user id.
func (t *TokenIssuer) IssueRefreshToken(user *domain.User) (string, time.Time, error) {
	claims := refreshClaims{
		RegisteredClaims: t.registered(user.ID, t.refreshTTL),
		Type:             domain.TokenKindRefresh,
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.refreshKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (t *TokenIssuer) IssueTokenPair(user *domain.User) (domain.TokenPair, error) {
	access, accessExp, err := t.IssueAccessToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := t.IssueRefreshToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (t *TokenIssuer) parse(raw string, claims jwt.Claims, key []byte) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	return nil
}

// ParseAccessToken verifies signature, expiry and shape of an access token.
func (t *TokenIssuer) ParseAccessToken(raw string) (*domain.AccessTokenClaims, error) {
	var claims accessClaims
	if err := t.parse(raw, &claims, t.accessKey); err != nil {
		return nil, err
	}
	if claims.Type != domain.TokenKindAccess {
		return nil, domain.ErrInvalidTokenType
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrUnauthenticated)
	}

	return &domain.AccessTokenClaims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

// ParseRefreshToken verifies signature, expiry and shape of a refresh token.
// It never touches the user store.
func (t *TokenIssuer) ParseRefreshToken(raw string) (*domain.RefreshTokenClaims, error) {
	var claims refreshClaims
	if err := t.parse(raw, &claims, t.refreshKey); err != nil {
		return nil, err
	}
	if claims.Type != domain.TokenKindRefresh {
		return nil, domain.ErrInvalidTokenType
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrUnauthenticated)
	}

	return &domain.RefreshTokenClaims{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
