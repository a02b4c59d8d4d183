package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/walkup-queue/internal/domain"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO people (id, first_name, last_name, role, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.FirstName,
		identity.LastName,
		string(identity.Role),
		identity.PasswordHash,
	).Scan(&identity.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("person already registered", map[string]any{"id": identity.ID})
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `
        SELECT id, first_name, last_name, role, password_hash, created_at
        FROM people WHERE id=$1`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("person", map[string]any{"id": id})
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return identity, nil
}

func (r *identityRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM people WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check person: %w", err)
	}
	return exists, nil
}

func (r *identityRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Identity, error) {
	const query = `
        SELECT id, first_name, last_name, role, password_hash, created_at
        FROM people WHERE role=$1 ORDER BY last_name, first_name`

	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var result []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *identity)
	}
	return result, rows.Err()
}

func scanIdentity(row rowScanner) (*domain.Identity, error) {
	var (
		identity domain.Identity
		role     string
	)
	if err := row.Scan(
		&identity.ID,
		&identity.FirstName,
		&identity.LastName,
		&role,
		&identity.PasswordHash,
		&identity.CreatedAt,
	); err != nil {
		return nil, err
	}
	identity.Role = domain.Role(role)
	return &identity, nil
}
