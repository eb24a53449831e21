package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// CredentialStore is the Postgres-backed repository.CredentialRepository.
type CredentialStore struct{}

// NewCredentialStore builds a CredentialStore using the package-level DB pool.
func NewCredentialStore() *CredentialStore { return &CredentialStore{} }

const credentialColumns = `id, user_id, type, secret_data, credential_data, salt, label, temporary, used_at, created_at`

func scanCredential(row pgx.Row) (domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(&c.ID, &c.UserID, &c.Type, &c.SecretData, &c.CredentialData, &c.Salt,
		&c.Label, &c.Temporary, &c.UsedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Credential{}, ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	return c, nil
}

func (s *CredentialStore) Create(ctx context.Context, c domain.Credential) (domain.Credential, error) {
	return scanCredential(DB.QueryRow(ctx,
		`INSERT INTO credentials (id, user_id, type, secret_data, credential_data, salt, label, temporary)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+credentialColumns,
		nullableUUID(c.ID), c.UserID, c.Type, c.SecretData, c.CredentialData, c.Salt, c.Label, c.Temporary,
	))
}

func (s *CredentialStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Credential, error) {
	rows, err := DB.Query(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

func (s *CredentialStore) ListByUserAndType(ctx context.Context, userID uuid.UUID, kind domain.CredentialType) ([]domain.Credential, error) {
	rows, err := DB.Query(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = $1 AND type = $2 ORDER BY created_at`, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

func collectCredentials(rows pgx.Rows) ([]domain.Credential, error) {
	var creds []domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// MarkUsed burns a single-use credential (a recovery code) by setting
// used_at only if it is still NULL, so two concurrent redemption attempts
// cannot both succeed.
func (s *CredentialStore) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := DB.Exec(ctx,
		`UPDATE credentials SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark credential used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *CredentialStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
