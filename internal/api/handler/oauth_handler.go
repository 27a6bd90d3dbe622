package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/norem/auth-service/internal/api/metrics"
	"github.com/norem/auth-service/internal/core/ports"
)

// ResolverLookup finds the identity resolver for a provider name.
type ResolverLookup interface {
	Lookup(provider string) (ports.IdentityResolver, error)
}

type OAuthHandler struct {
	authService ports.AuthService
	resolvers   ResolverLookup
}

func NewOAuthHandler(authService ports.AuthService, resolvers ResolverLookup) *OAuthHandler {
	return &OAuthHandler{authService: authService, resolvers: resolvers}
}

type oauthLoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// Login exchanges a provider access token for a local session.
//
// @Summary      Login with an external identity provider
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        provider  path      string             true  "google or github"
// @Param        body      body      oauthLoginRequest  true  "Provider access token"
// @Success      200       {object}  loginResponse
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Router       /auth/oauth/{provider} [post]
func (h *OAuthHandler) Login(c echo.Context) error {
	timer := prometheus.NewTimer(metrics.FlowDuration.WithLabelValues("oauth"))
	defer timer.ObserveDuration()

	resolver, err := h.resolvers.Lookup(c.Param("provider"))
	if err != nil {
		return err
	}
	provider := string(resolver.Provider())

	var req oauthLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	identity, err := resolver.Resolve(c.Request().Context(), req.AccessToken)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(provider, sessionResult(err)).Inc()
		return err
	}

	res, err := h.authService.LoginExternal(c.Request().Context(), identity)
	metrics.LoginsTotal.WithLabelValues(provider, sessionResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newLoginResponse("login successful", res))
}
