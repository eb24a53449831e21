package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// IdentityProviderStore is the Postgres-backed repository.IdentityProviderRepository.
type IdentityProviderStore struct{}

// NewIdentityProviderStore builds an IdentityProviderStore using the package-level DB pool.
func NewIdentityProviderStore() *IdentityProviderStore { return &IdentityProviderStore{} }

const identityProviderColumns = `id, realm_id, alias, provider_id, enabled, trust_email, link_only,
	store_token, config, created_at, updated_at`

func scanIdentityProvider(row pgx.Row) (domain.IdentityProvider, error) {
	var idp domain.IdentityProvider
	err := row.Scan(&idp.ID, &idp.RealmID, &idp.Alias, &idp.ProviderID, &idp.Enabled, &idp.TrustEmail,
		&idp.LinkOnly, &idp.StoreToken, &idp.Config, &idp.CreatedAt, &idp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdentityProvider{}, ErrNotFound
	}
	if err != nil {
		return domain.IdentityProvider{}, fmt.Errorf("scan identity provider: %w", err)
	}
	return idp, nil
}

func (s *IdentityProviderStore) Create(ctx context.Context, idp domain.IdentityProvider) (domain.IdentityProvider, error) {
	created, err := scanIdentityProvider(DB.QueryRow(ctx,
		`INSERT INTO identity_providers (id, realm_id, alias, provider_id, enabled, trust_email,
			link_only, store_token, config)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+identityProviderColumns,
		nullableUUID(idp.ID), idp.RealmID, idp.Alias, idp.ProviderID, idp.Enabled, idp.TrustEmail,
		idp.LinkOnly, idp.StoreToken, idp.Config,
	))
	if isUniqueViolation(err) {
		return domain.IdentityProvider{}, fmt.Errorf("identity provider %q: %w", idp.Alias, ErrConflict)
	}
	return created, err
}

func (s *IdentityProviderStore) GetByAlias(ctx context.Context, realmID uuid.UUID, alias string) (domain.IdentityProvider, error) {
	return scanIdentityProvider(DB.QueryRow(ctx,
		`SELECT `+identityProviderColumns+` FROM identity_providers WHERE realm_id = $1 AND alias = $2`, realmID, alias))
}

func (s *IdentityProviderStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.IdentityProvider, error) {
	rows, err := DB.Query(ctx, `SELECT `+identityProviderColumns+` FROM identity_providers WHERE realm_id = $1 ORDER BY alias`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query identity providers: %w", err)
	}
	defer rows.Close()

	var idps []domain.IdentityProvider
	for rows.Next() {
		idp, err := scanIdentityProvider(rows)
		if err != nil {
			return nil, err
		}
		idps = append(idps, idp)
	}
	return idps, rows.Err()
}

func (s *IdentityProviderStore) Update(ctx context.Context, idp domain.IdentityProvider) (domain.IdentityProvider, error) {
	return scanIdentityProvider(DB.QueryRow(ctx,
		`UPDATE identity_providers SET enabled = $2, trust_email = $3, link_only = $4,
			store_token = $5, config = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+identityProviderColumns,
		idp.ID, idp.Enabled, idp.TrustEmail, idp.LinkOnly, idp.StoreToken, idp.Config,
	))
}

func (s *IdentityProviderStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM identity_providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IdentityProviderStore) CreateLink(ctx context.Context, link domain.IdentityProviderLink) (domain.IdentityProviderLink, error) {
	var created domain.IdentityProviderLink
	err := DB.QueryRow(ctx,
		`INSERT INTO identity_provider_links (id, identity_provider_id, user_id, external_id)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4)
		 RETURNING id, identity_provider_id, user_id, external_id, created_at`,
		nullableUUID(link.ID), link.IdentityProviderID, link.UserID, link.ExternalID,
	).Scan(&created.ID, &created.IdentityProviderID, &created.UserID, &created.ExternalID, &created.CreatedAt)
	if isUniqueViolation(err) {
		return domain.IdentityProviderLink{}, fmt.Errorf("identity provider link: %w", ErrConflict)
	}
	if err != nil {
		return domain.IdentityProviderLink{}, fmt.Errorf("insert identity provider link: %w", err)
	}
	return created, nil
}

func (s *IdentityProviderStore) GetLinkByExternalID(ctx context.Context, idpID uuid.UUID, externalID string) (domain.IdentityProviderLink, error) {
	var link domain.IdentityProviderLink
	err := DB.QueryRow(ctx,
		`SELECT id, identity_provider_id, user_id, external_id, created_at
		 FROM identity_provider_links WHERE identity_provider_id = $1 AND external_id = $2`,
		idpID, externalID,
	).Scan(&link.ID, &link.IdentityProviderID, &link.UserID, &link.ExternalID, &link.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdentityProviderLink{}, ErrNotFound
	}
	if err != nil {
		return domain.IdentityProviderLink{}, fmt.Errorf("query identity provider link: %w", err)
	}
	return link, nil
}

func (s *IdentityProviderStore) DeleteLink(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM identity_provider_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity provider link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
