package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/interfix/helpdesk/internal/api/dto"
	"github.com/interfix/helpdesk/internal/auth"
	"github.com/interfix/helpdesk/internal/service"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// UsersHandler exposes login and the user directory.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(principal.User)})
}

// ByEmail handles GET /users/by-email?email=. It backs reporter identity lookups.
func (h *UsersHandler) ByEmail(c *fiber.Ctx) error {
	user, err := h.auth.LookupByEmail(c.UserContext(), c.Query("email"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DirectoryEntry{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Active: user.Active,
	}})
}
