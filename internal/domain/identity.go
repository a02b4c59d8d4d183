package domain

import (
	"strings"
	"time"
)

// Role enumerates what a person may do at the HR desk.
type Role string

const (
	RoleITAdmin   Role = "IT_ADMIN"
	RoleHRManager Role = "HR_MANAGER"
	RoleHRStaff   Role = "HR_STAFF"
	RoleWorker    Role = "WORKER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleITAdmin, RoleHRManager, RoleHRStaff, RoleWorker:
		return true
	}
	return false
}

// IsStaffTier reports whether the role belongs to the HR desk itself.
// Staff-tier people serve tickets and cannot request service for themselves.
func (r Role) IsStaffTier() bool {
	return r == RoleHRManager || r == RoleHRStaff
}

// Identity is a person known to the desk, keyed by the 8-digit national id.
type Identity struct {
	ID           string
	FirstName    string
	LastName     string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// DisplayName is the only identity data exposed outside the service.
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}
