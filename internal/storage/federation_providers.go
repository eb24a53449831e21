package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// FederationProviderStore is the Postgres-backed repository.FederationProviderRepository.
type FederationProviderStore struct{}

// NewFederationProviderStore builds a FederationProviderStore using the package-level DB pool.
func NewFederationProviderStore() *FederationProviderStore { return &FederationProviderStore{} }

const federationProviderColumns = `id, realm_id, name, provider_type, enabled, priority, config,
	sync_settings, last_sync_at, last_sync_err, created_at, updated_at`

func scanFederationProvider(row pgx.Row) (domain.FederationProvider, error) {
	var p domain.FederationProvider
	err := row.Scan(&p.ID, &p.RealmID, &p.Name, &p.ProviderType, &p.Enabled, &p.Priority, &p.Config,
		&p.SyncSettings, &p.LastSyncAt, &p.LastSyncErr, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FederationProvider{}, ErrNotFound
	}
	if err != nil {
		return domain.FederationProvider{}, fmt.Errorf("scan federation provider: %w", err)
	}
	return p, nil
}

func (s *FederationProviderStore) Create(ctx context.Context, p domain.FederationProvider) (domain.FederationProvider, error) {
	created, err := scanFederationProvider(DB.QueryRow(ctx,
		`INSERT INTO federation_providers (id, realm_id, name, provider_type, enabled, priority,
			config, sync_settings)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+federationProviderColumns,
		nullableUUID(p.ID), p.RealmID, p.Name, p.ProviderType, p.Enabled, p.Priority, p.Config, p.SyncSettings,
	))
	if isUniqueViolation(err) {
		return domain.FederationProvider{}, fmt.Errorf("federation provider %q: %w", p.Name, ErrConflict)
	}
	return created, err
}

func (s *FederationProviderStore) GetByID(ctx context.Context, id uuid.UUID) (domain.FederationProvider, error) {
	return scanFederationProvider(DB.QueryRow(ctx, `SELECT `+federationProviderColumns+` FROM federation_providers WHERE id = $1`, id))
}

func (s *FederationProviderStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.FederationProvider, error) {
	rows, err := DB.Query(ctx,
		`SELECT `+federationProviderColumns+` FROM federation_providers WHERE realm_id = $1 ORDER BY priority, name`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query federation providers: %w", err)
	}
	defer rows.Close()

	var providers []domain.FederationProvider
	for rows.Next() {
		p, err := scanFederationProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *FederationProviderStore) Update(ctx context.Context, p domain.FederationProvider) (domain.FederationProvider, error) {
	return scanFederationProvider(DB.QueryRow(ctx,
		`UPDATE federation_providers SET enabled = $2, priority = $3, config = $4,
			sync_settings = $5, last_sync_at = $6, last_sync_err = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING `+federationProviderColumns,
		p.ID, p.Enabled, p.Priority, p.Config, p.SyncSettings, p.LastSyncAt, p.LastSyncErr,
	))
}

func (s *FederationProviderStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM federation_providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete federation provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
