package handler

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/norem/auth-service/internal/api/middleware"
	"github.com/norem/auth-service/internal/core/domain"
)

// ctxPrincipal returns the principal stored by the access guard. Its absence
// means the route was registered without a guard, which is a wiring bug
// surfaced as 401 rather than a panic.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	principal, ok := c.Get(middleware.PrincipalKey).(*domain.Principal)
	if !ok || principal == nil || principal.UserID == "" {
		return nil, fmt.Errorf("%w: missing authentication claims", domain.ErrUnauthenticated)
	}
	return principal, nil
}

// ctxRefresh returns the refresh claims and raw token stored by the refresh guard.
func ctxRefresh(c echo.Context) (*domain.RefreshTokenClaims, string, error) {
	claims, ok := c.Get(middleware.RefreshClaimsKey).(*domain.RefreshTokenClaims)
	raw, _ := c.Get(middleware.RefreshTokenKey).(string)
	if !ok || claims == nil || raw == "" {
		return nil, "", fmt.Errorf("%w: missing refresh claims", domain.ErrUnauthenticated)
	}
	return claims, raw, nil
}
