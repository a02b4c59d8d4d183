package service

import (
	"context"
	"testing"

	"github.com/spec-kit/walkup-queue/internal/domain"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		id       string
		password string
		code     string
		role     domain.Role
	}{
		{name: "hr staff", id: "20202020", password: "rrhh123", role: domain.RoleHRStaff},
		{name: "it admin", id: "71220236", password: "talsa123", role: domain.RoleITAdmin},
		{name: "wrong password", id: "20202020", password: "nope", code: apperrors.CodeUnauthorized},
		{name: "unknown id", id: "99999999", password: "rrhh123", code: apperrors.CodeUnauthorized},
		{name: "worker", id: worker1, password: "work123", code: apperrors.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity, token, _, err := env.auth.Login(context.Background(), tc.id, tc.password)
			if tc.code != "" {
				if !apperrors.HasCode(err, tc.code) {
					t.Fatalf("err = %v, want %s", err, tc.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if identity.Role != tc.role || token == "" {
				t.Fatalf("identity=%+v token=%q", identity, token)
			}
			parsed, err := env.auth.TokenManager().ParseToken(token)
			if err != nil || parsed.SubjectID != tc.id || parsed.Role != tc.role {
				t.Fatalf("parsed = %+v, %v", parsed, err)
			}
		})
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.auth.Seed(context.Background(), BaselineIdentities)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if created != 0 {
		t.Fatalf("reseed created %d identities", created)
	}
}

func TestRegisterValidates(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.auth.Register(context.Background(), SeedIdentity{ID: "123", Role: domain.RoleWorker}); !apperrors.IsInvalidRequest(err) {
		t.Fatalf("short id err = %v", err)
	}
	if _, err := env.auth.Register(context.Background(), SeedIdentity{ID: "12345678", Role: "GUEST"}); !apperrors.IsInvalidRequest(err) {
		t.Fatalf("bad role err = %v", err)
	}
	if _, err := env.auth.Register(context.Background(), SeedIdentity{ID: worker1, Role: domain.RoleWorker}); !apperrors.IsConflict(err) {
		t.Fatalf("duplicate err = %v", err)
	}
}
