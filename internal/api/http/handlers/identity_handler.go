package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/walkup-queue/internal/api/dto"
	"github.com/spec-kit/walkup-queue/internal/repository"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// IdentityHandler resolves document ids for the kiosk.
type IdentityHandler struct {
	identities repository.IdentityRepository
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(identities repository.IdentityRepository) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// Get GET /api/identities/:id. Only the id and display name leave the server.
func (h *IdentityHandler) Get(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return apperrors.NewInvalidRequest("id required", nil)
	}
	identity, err := h.identities.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if identity == nil {
		return apperrors.NewNotFound("person", map[string]any{"id": id})
	}
	return c.JSON(fiber.Map{"data": dto.IdentityResponse{
		ID:   identity.ID,
		Name: identity.DisplayName(),
	}})
}
