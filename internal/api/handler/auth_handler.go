package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/norem/auth-service/internal/api/metrics"
	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	Message string            `json:"message"`
	User    domain.PublicUser `json:"user"`
}

// loginResponse is shared by login, refresh and external login.
type loginResponse struct {
	Message          string      `json:"message"`
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	AccessExpiresAt  time.Time   `json:"access_expires_at"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at"`
	ID               string      `json:"id"`
	Email            string      `json:"email"`
	Name             string      `json:"name"`
	Role             domain.Role `json:"role"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newLoginResponse(message string, res *ports.LoginResult) loginResponse {
	return loginResponse{
		Message:          message,
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		ID:               res.User.ID,
		Email:            res.User.Email,
		Name:             res.User.Name,
		Role:             res.User.Role,
	}
}

// bindAndValidate decodes the body into req and runs the echo validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// sessionResult labels the outcome of login-like flows for metrics.
func sessionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidTokenType):
		return "invalid_type"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "error"
	}
}

// Register creates a new user account with role user.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	timer := prometheus.NewTimer(metrics.FlowDuration.WithLabelValues("register"))
	defer timer.ObserveDuration()

	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		label := "error"
		switch {
		case errors.Is(err, domain.ErrUserExists):
			label = "duplicate"
		case errors.Is(err, domain.ErrInvalidInput):
			label = "invalid"
		}
		metrics.RegistrationsTotal.WithLabelValues(label).Inc()
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusCreated, registerResponse{Message: "user registered", User: *user})
}

// Login authenticates a user and returns an access/refresh token pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	timer := prometheus.NewTimer(metrics.FlowDuration.WithLabelValues("login"))
	defer timer.ObserveDuration()

	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	metrics.LoginsTotal.WithLabelValues("password", sessionResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newLoginResponse("login successful", res))
}

// Refresh rotates the session presented as the bearer refresh token.
//
// @Summary      Refresh tokens
// @Tags         auth
// @Produce      json
// @Param        Authorization  header    string  true  "Bearer <refresh token>"
// @Success      200            {object}  loginResponse
// @Failure      401            {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	timer := prometheus.NewTimer(metrics.FlowDuration.WithLabelValues("refresh"))
	defer timer.ObserveDuration()

	claims, raw, err := ctxRefresh(c)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("unauthenticated").Inc()
		return err
	}

	res, err := h.authService.Refresh(c.Request().Context(), claims.UserID, raw)
	metrics.RefreshesTotal.WithLabelValues(sessionResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newLoginResponse("tokens refreshed", res))
}

// Logout ends the caller's refresh session. Access tokens stay valid until they expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	timer := prometheus.NewTimer(metrics.FlowDuration.WithLabelValues("logout"))
	defer timer.ObserveDuration()

	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), principal.UserID); err != nil {
		metrics.LogoutsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.LogoutsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Me returns the principal carried by the access token.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, principal)
}
