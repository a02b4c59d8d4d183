package dto

import (
	"time"

	"github.com/spec-kit/walkup-queue/internal/domain"
)

// LoginRequest payload for staff login.
type LoginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
}

// IdentityResponse is the public view of a person shown at the kiosk.
type IdentityResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
