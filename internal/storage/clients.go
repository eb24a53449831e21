package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// ClientStore is the Postgres-backed repository.ClientRepository.
type ClientStore struct{}

// NewClientStore builds a ClientStore using the package-level DB pool.
func NewClientStore() *ClientStore { return &ClientStore{} }

const clientColumns = `id, realm_id, client_id, secret, public_client, service_account_enabled,
	direct_access_grants_enabled, client_type, protocol, enabled, redirect_uris,
	post_logout_redirect_uris, created_at, updated_at`

func scanClient(row pgx.Row) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.RealmID, &c.ClientID, &c.Secret, &c.PublicClient,
		&c.ServiceAccountEnabled, &c.DirectAccessGrantsEnabled, &c.ClientType, &c.Protocol,
		&c.Enabled, &c.RedirectURIs, &c.PostLogoutRedirectURIs, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Client{}, ErrNotFound
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

func (s *ClientStore) Create(ctx context.Context, c domain.Client) (domain.Client, error) {
	client, err := scanClient(DB.QueryRow(ctx,
		`INSERT INTO clients (id, realm_id, client_id, secret, public_client,
			service_account_enabled, direct_access_grants_enabled, client_type, protocol,
			enabled, redirect_uris, post_logout_redirect_uris)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+clientColumns,
		nullableUUID(c.ID), c.RealmID, c.ClientID, c.Secret, c.PublicClient,
		c.ServiceAccountEnabled, c.DirectAccessGrantsEnabled, c.ClientType, c.Protocol,
		c.Enabled, c.RedirectURIs, c.PostLogoutRedirectURIs,
	))
	if isUniqueViolation(err) {
		return domain.Client{}, fmt.Errorf("client %q: %w", c.ClientID, ErrConflict)
	}
	return client, err
}

func (s *ClientStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	return scanClient(DB.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

func (s *ClientStore) GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (domain.Client, error) {
	return scanClient(DB.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE realm_id = $1 AND client_id = $2`, realmID, clientID))
}

func (s *ClientStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Client, error) {
	rows, err := DB.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE realm_id = $1 ORDER BY client_id`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *ClientStore) Update(ctx context.Context, c domain.Client) (domain.Client, error) {
	return scanClient(DB.QueryRow(ctx,
		`UPDATE clients SET secret = $2, public_client = $3, service_account_enabled = $4,
			direct_access_grants_enabled = $5, client_type = $6, protocol = $7, enabled = $8,
			redirect_uris = $9, post_logout_redirect_uris = $10, updated_at = now()
		 WHERE id = $1
		 RETURNING `+clientColumns,
		c.ID, c.Secret, c.PublicClient, c.ServiceAccountEnabled, c.DirectAccessGrantsEnabled,
		c.ClientType, c.Protocol, c.Enabled, c.RedirectURIs, c.PostLogoutRedirectURIs,
	))
}

func (s *ClientStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
