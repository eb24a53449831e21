package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
)

// RoleStore is the Postgres-backed repository.RoleRepository.
type RoleStore struct{}

// NewRoleStore builds a RoleStore using the package-level DB pool.
func NewRoleStore() *RoleStore { return &RoleStore{} }

const roleColumns = `id, realm_id, client_id, name, description, permissions, created_at, updated_at`

func scanRole(row pgx.Row) (domain.Role, error) {
	var r domain.Role
	var perms uint64
	err := row.Scan(&r.ID, &r.RealmID, &r.ClientID, &r.Name, &r.Description, &perms, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Role{}, ErrNotFound
	}
	if err != nil {
		return domain.Role{}, fmt.Errorf("scan role: %w", err)
	}
	r.Permissions = policy.Set(perms)
	return r, nil
}

func (s *RoleStore) Create(ctx context.Context, r domain.Role) (domain.Role, error) {
	created, err := scanRole(DB.QueryRow(ctx,
		`INSERT INTO roles (id, realm_id, client_id, name, description, permissions)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6)
		 RETURNING `+roleColumns,
		nullableUUID(r.ID), r.RealmID, r.ClientID, r.Name, r.Description, uint64(r.Permissions),
	))
	if isUniqueViolation(err) {
		return domain.Role{}, fmt.Errorf("role %q: %w", r.Name, ErrConflict)
	}
	return created, err
}

func (s *RoleStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	return scanRole(DB.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

func (s *RoleStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Role, error) {
	rows, err := DB.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE realm_id = $1 ORDER BY name`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (s *RoleStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Role, error) {
	rows, err := DB.Query(ctx,
		`SELECT r.id, r.realm_id, r.client_id, r.name, r.description, r.permissions, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]domain.Role, error) {
	var roles []domain.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *RoleStore) AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := DB.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (s *RoleStore) RemoveFromUser(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := DB.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

func (s *RoleStore) Update(ctx context.Context, r domain.Role) (domain.Role, error) {
	return scanRole(DB.QueryRow(ctx,
		`UPDATE roles SET description = $2, permissions = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+roleColumns,
		r.ID, r.Description, uint64(r.Permissions),
	))
}

func (s *RoleStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
