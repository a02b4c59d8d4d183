package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/auth"
	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/repository"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// SeedIdentity is a person created on first boot when seeding is enabled.
type SeedIdentity struct {
	ID        string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
}

// BaselineIdentities is the starter roster for a fresh desk.
var BaselineIdentities = []SeedIdentity{
	{ID: "71220236", Password: "talsa123", FirstName: "Valentin", LastName: "Admin TI", Role: domain.RoleITAdmin},
	{ID: "10101010", Password: "jefe123", FirstName: "Armando", LastName: "Jefe", Role: domain.RoleHRManager},
	{ID: "20202020", Password: "rrhh123", FirstName: "Robinson", LastName: "Analista", Role: domain.RoleHRStaff},
	{ID: "30303030", Password: "rrhh123", FirstName: "Yesenia", LastName: "Asistente", Role: domain.RoleHRStaff},
	{ID: "40404040", Password: "work123", FirstName: "Juan", LastName: "TEST1", Role: domain.RoleWorker},
	{ID: "50505050", Password: "work123", FirstName: "Mario", LastName: "TEST2", Role: domain.RoleWorker},
	{ID: "60606060", Password: "work123", FirstName: "Pepe", LastName: "TEST3", Role: domain.RoleWorker},
}

// AuthService coordinates login and the identity roster.
type AuthService struct {
	identities repository.IdentityRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	IdentityRepo repository.IdentityRepository
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		identities: deps.IdentityRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Login authenticates a desk member and issues a role-bearing token.
// Workers only use the public kiosk and cannot log in.
func (s *AuthService) Login(ctx context.Context, id, password string) (*domain.Identity, string, time.Time, error) {
	identity, err := s.identities.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.VerifyPassword(identity.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, err
	}
	if identity.Role == domain.RoleWorker {
		return nil, "", time.Time{}, apperrors.NewForbidden("workers use the kiosk without logging in")
	}
	token, exp, err := s.tokenMgr.GenerateToken(identity.ID, identity.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return identity, token, exp, nil
}

// Register creates a person with a hashed password.
func (s *AuthService) Register(ctx context.Context, seed SeedIdentity) (*domain.Identity, error) {
	if len(seed.ID) != domain.RequesterIDLength {
		return nil, apperrors.NewInvalidRequest("id must have 8 digits", map[string]any{"id": seed.ID})
	}
	if !seed.Role.Valid() {
		return nil, invalidEnum("role", string(seed.Role))
	}
	var hash string
	if seed.Password != "" {
		var err error
		if hash, err = auth.HashPassword(seed.Password, s.bcryptCost); err != nil {
			return nil, err
		}
	}
	identity := &domain.Identity{
		ID:           seed.ID,
		FirstName:    seed.FirstName,
		LastName:     seed.LastName,
		Role:         seed.Role,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Seed registers every identity not yet known and reports how many were created.
func (s *AuthService) Seed(ctx context.Context, roster []SeedIdentity) (int, error) {
	created := 0
	for _, seed := range roster {
		exists, err := s.identities.Exists(ctx, seed.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if _, err := s.Register(ctx, seed); err != nil {
			return created, err
		}
		created++
		s.logger.Info("identity seeded", zap.String("id", seed.ID), zap.String("role", string(seed.Role)))
	}
	return created, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
