package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin user"`
}

type changeRoleResponse struct {
	Message string      `json:"message"`
	ID      string      `json:"id"`
	Role    domain.Role `json:"role"`
}

// ChangeRole sets a user's role and ends their session.
//
// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User ID"
// @Param        body  body      changeRoleRequest  true  "New role"
// @Success      200   {object}  changeRoleResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c echo.Context) error {
	var req changeRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}

	user, err := h.authService.ChangeRole(c.Request().Context(), c.Param("id"), role)
	if err != nil {
		// The target is a path parameter, not the caller, so a miss is a plain 404.
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, changeRoleResponse{Message: "role updated", ID: user.ID, Role: user.Role})
}
