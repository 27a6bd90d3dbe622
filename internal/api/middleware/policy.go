package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// Enforce builds the guard chain for one route from its policy: nothing for
// public routes, otherwise Auth followed by RBAC.
func Enforce(policy domain.RoutePolicy, authn ports.Authenticator, authz ports.Authorizer) echo.MiddlewareFunc {
	if policy.Public {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	authenticate := Auth(authn)
	authorize := RBAC(authz, policy.Roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return authenticate(authorize(next))
	}
}
