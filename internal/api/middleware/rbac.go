package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/norem/auth-service/internal/api/metrics"
	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// RBAC enforces role-based access control on the principal stored by Auth.
// Any one of the required roles, taken through the role hierarchy, suffices.
func RBAC(authz ports.Authorizer, required ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, _ := c.Get(PrincipalKey).(*domain.Principal)

			if err := authz.Authorize(principal, required); err != nil {
				metrics.AuthorizationDeniedTotal.WithLabelValues(denialReason(principal, err)).Inc()
				return err
			}
			return next(c)
		}
	}
}

func denialReason(principal *domain.Principal, err error) string {
	switch {
	case principal == nil || errors.Is(err, domain.ErrUnauthenticated):
		return "no_principal"
	case !principal.Role.Valid():
		return "invalid_role"
	default:
		return "insufficient_role"
	}
}
