package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/walkup-queue/internal/domain"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// Capability names a guarded operation group. Each route declares the one it needs.
type Capability string

const (
	// CapabilityServe covers starting, closing and cancelling tickets.
	CapabilityServe Capability = "serve"
	// CapabilityCorrect covers pre-closure edits.
	CapabilityCorrect Capability = "correct"
	// CapabilityImport covers bulk imports.
	CapabilityImport Capability = "import"
	// CapabilityReport covers search, history and visit summaries.
	CapabilityReport Capability = "report"
)

var deskRoles = []domain.Role{domain.RoleHRStaff, domain.RoleHRManager, domain.RoleITAdmin}

var capabilityRoles = map[Capability][]domain.Role{
	CapabilityServe:   deskRoles,
	CapabilityCorrect: deskRoles,
	CapabilityImport:  deskRoles,
	CapabilityReport:  deskRoles,
}

// Allows reports whether role holds capability.
func Allows(role domain.Role, capability Capability) bool {
	for _, allowed := range capabilityRoles[capability] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Require rejects callers whose role does not hold capability. It must run after AuthMiddleware.Handle.
func Require(capability Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Identity == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !Allows(principal.Role, capability) {
			return apperrors.NewForbidden("insufficient role for " + string(capability))
		}
		return c.Next()
	}
}
