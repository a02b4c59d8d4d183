package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/walkup-queue/internal/api/dto"
	"github.com/spec-kit/walkup-queue/internal/auth"
	"github.com/spec-kit/walkup-queue/internal/service"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// AuthHandler handles desk login.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidRequest("invalid payload", nil)
	}
	if strings.TrimSpace(req.ID) == "" || req.Password == "" {
		return apperrors.NewInvalidRequest("id and password required", nil)
	}
	identity, token, exp, err := h.authService.Login(c.UserContext(), req.ID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		Name:      identity.DisplayName(),
		Role:      identity.Role,
	}})
}

// Me GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":   principal.Identity.ID,
		"name": principal.Identity.DisplayName(),
		"role": principal.Role,
	}})
}
