package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements UserRepository on the users table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a UserRepository backed by pool.
func NewRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, name, role, is_superuser, api_key_prefix, api_key_hash, created_at, revoked_at`

func scanUser(row pgx.CollectableRow) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.Role, &u.IsSuperuser,
		&u.ApiKeyPrefix, &u.ApiKeyHash,
		&u.CreatedAt, &u.RevokedAt,
	)
	return u, err
}

// Create inserts u and fills in its generated ID and creation time.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, role, is_superuser, api_key_prefix, api_key_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		u.Name, u.Role, u.IsSuperuser, u.ApiKeyPrefix, u.ApiKeyHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	rows, _ := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// FindByPrefix returns unrevoked users whose key starts with prefix. Several
// users may share a prefix; the caller compares hashes.
func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) ([]User, error) {
	return r.collect(ctx, "finding users by prefix",
		`SELECT `+userColumns+` FROM users WHERE api_key_prefix = $1 AND revoked_at IS NULL`, prefix)
}

// List returns every user, revoked ones included, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	return r.collect(ctx, "listing users",
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
}

func (r *PostgresRepository) collect(ctx context.Context, action, query string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Revoke stamps revoked_at. It returns ErrUserNotFound for an unknown ID and
// ErrUserRevoked when the key was already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	var revokedBefore *bool
	err := r.pool.QueryRow(ctx, `
		WITH target AS (SELECT id, revoked_at IS NOT NULL AS was_revoked FROM users WHERE id = $1),
		     updated AS (
		         UPDATE users SET revoked_at = NOW()
		         WHERE id = $1 AND revoked_at IS NULL
		         RETURNING id
		     )
		SELECT (SELECT was_revoked FROM target)`, id,
	).Scan(&revokedBefore)
	if err != nil {
		return fmt.Errorf("revoking user: %w", err)
	}

	switch {
	case revokedBefore == nil:
		return ErrUserNotFound
	case *revokedBefore:
		return ErrUserRevoked
	default:
		return nil
	}
}

// HasSuperuser reports whether a superuser row exists, revoked or not.
func (r *PostgresRepository) HasSuperuser(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE is_superuser)").Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking for superuser: %w", err)
	}
	return exists, nil
}
