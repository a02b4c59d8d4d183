package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword checks plain against hashed. A mismatch, or an identity
// without a password, is reported as unauthorized.
func VerifyPassword(hashed, plain string) error {
	if hashed == "" {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return err
}
