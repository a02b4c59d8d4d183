package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/repository"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

type identityRepository struct {
	store *Store
}

// NewIdentityRepository returns the SQLite-backed identity lookup.
func NewIdentityRepository(store *Store) repository.IdentityRepository {
	return &identityRepository{store: store}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	now := time.Now()
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO people (id, first_name, last_name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			identity.ID,
			identity.FirstName,
			identity.LastName,
			string(identity.Role),
			identity.PasswordHash,
			now.UnixNano(),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("person already registered", map[string]any{"id": identity.ID})
		}
		return fmt.Errorf("insert person: %w", err)
	}
	identity.CreatedAt = now
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := scanIdentity(r.store.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, role, password_hash, created_at FROM people WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("person", map[string]any{"id": id})
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return identity, nil
}

func (r *identityRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.store.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM people WHERE id=?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check person: %w", err)
	}
	return exists, nil
}

func (r *identityRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Identity, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, role, password_hash, created_at FROM people WHERE role=? ORDER BY last_name, first_name`,
		string(role))
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
		identity  domain.Identity
		role      string
		createdAt int64
	)
	if err := row.Scan(
		&identity.ID,
		&identity.FirstName,
		&identity.LastName,
		&role,
		&identity.PasswordHash,
		&createdAt,
	); err != nil {
		return nil, err
	}
	identity.Role = domain.Role(role)
	identity.CreatedAt = fromUnixNano(createdAt)
	return &identity, nil
}
