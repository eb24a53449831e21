package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// UserStore is the Postgres-backed repository.UserRepository. Role
// membership is loaded separately via RoleStore.ListByUser; UserStore
// itself only owns the users table.
type UserStore struct{}

// NewUserStore builds a UserStore using the package-level DB pool.
func NewUserStore() *UserStore { return &UserStore{} }

const userColumns = `id, realm_id, client_id, username, email, email_verified, enabled,
	firstname, lastname, required_actions, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.RealmID, &u.ClientID, &u.Username, &u.Email, &u.EmailVerified,
		&u.Enabled, &u.Firstname, &u.Lastname, &u.RequiredActions, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *UserStore) Create(ctx context.Context, u domain.User) (domain.User, error) {
	created, err := scanUser(DB.QueryRow(ctx,
		`INSERT INTO iam_users (id, realm_id, client_id, username, email, email_verified, enabled,
			firstname, lastname, required_actions)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+userColumns,
		nullableUUID(u.ID), u.RealmID, u.ClientID, u.Username, u.Email, u.EmailVerified,
		u.Enabled, u.Firstname, u.Lastname, u.RequiredActions,
	))
	if isUniqueViolation(err) {
		return domain.User{}, fmt.Errorf("user %q: %w", u.Username, ErrConflict)
	}
	return created, err
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM iam_users WHERE id = $1`, id))
}

func (s *UserStore) GetByUsername(ctx context.Context, realmID uuid.UUID, username string) (domain.User, error) {
	return scanUser(DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM iam_users WHERE realm_id = $1 AND username = $2`, realmID, username))
}

func (s *UserStore) GetByEmail(ctx context.Context, realmID uuid.UUID, email string) (domain.User, error) {
	return scanUser(DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM iam_users WHERE realm_id = $1 AND email = $2`, realmID, email))
}

func (s *UserStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.User, error) {
	rows, err := DB.Query(ctx, `SELECT `+userColumns+` FROM iam_users WHERE realm_id = $1 ORDER BY username`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(ctx context.Context, u domain.User) (domain.User, error) {
	return scanUser(DB.QueryRow(ctx,
		`UPDATE iam_users SET email = $2, email_verified = $3, enabled = $4, firstname = $5,
			lastname = $6, required_actions = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		u.ID, u.Email, u.EmailVerified, u.Enabled, u.Firstname, u.Lastname, u.RequiredActions,
	))
}

func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM iam_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
