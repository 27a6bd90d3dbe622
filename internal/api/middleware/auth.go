package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/norem/auth-service/internal/api/metrics"
	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// Context keys set by the guards and read by handlers.
const (
	PrincipalKey     = "principal"
	RefreshClaimsKey = "refresh_claims"
	RefreshTokenKey  = "refresh_token"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", domain.ErrUnauthenticated)
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", fmt.Errorf("%w: invalid authorization header", domain.ErrUnauthenticated)
	}
	return token, nil
}

// Auth verifies the access token and stores the principal under PrincipalKey.
// It never touches the user store.
func Auth(authn ports.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				metrics.AuthenticationFailuresTotal.Inc()
				return err
			}

			principal, err := authn.Authenticate(token)
			if err != nil {
				metrics.AuthenticationFailuresTotal.Inc()
				return err
			}

			c.Set(PrincipalKey, principal)
			return next(c)
		}
	}
}

// RefreshAuth verifies a refresh token presented as the bearer credential and
// stores its claims and raw value for the refresh handler. Session matching
// happens in the service.
func RefreshAuth(parser ports.RefreshTokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				metrics.RefreshesTotal.WithLabelValues("unauthenticated").Inc()
				return err
			}

			claims, err := parser.ParseRefreshToken(token)
			if err != nil {
				label := "unauthenticated"
				if errors.Is(err, domain.ErrInvalidTokenType) {
					label = "invalid_type"
				}
				metrics.RefreshesTotal.WithLabelValues(label).Inc()
				return err
			}

			c.Set(RefreshClaimsKey, claims)
			c.Set(RefreshTokenKey, token)
			return next(c)
		}
	}
}
