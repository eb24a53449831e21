package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// ClientScopeStore is the Postgres-backed repository.ClientScopeRepository.
type ClientScopeStore struct{}

// NewClientScopeStore builds a ClientScopeStore using the package-level DB pool.
func NewClientScopeStore() *ClientScopeStore { return &ClientScopeStore{} }

const clientScopeColumns = `id, realm_id, name, description, protocol, created_at, updated_at`

func scanClientScope(row pgx.Row) (domain.ClientScope, error) {
	var cs domain.ClientScope
	err := row.Scan(&cs.ID, &cs.RealmID, &cs.Name, &cs.Description, &cs.Protocol, &cs.CreatedAt, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ClientScope{}, ErrNotFound
	}
	if err != nil {
		return domain.ClientScope{}, fmt.Errorf("scan client scope: %w", err)
	}
	return cs, nil
}

func (s *ClientScopeStore) Create(ctx context.Context, cs domain.ClientScope) (domain.ClientScope, error) {
	created, err := scanClientScope(DB.QueryRow(ctx,
		`INSERT INTO client_scopes (id, realm_id, name, description, protocol)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5)
		 RETURNING `+clientScopeColumns,
		nullableUUID(cs.ID), cs.RealmID, cs.Name, cs.Description, cs.Protocol,
	))
	if isUniqueViolation(err) {
		return domain.ClientScope{}, fmt.Errorf("client scope %q: %w", cs.Name, ErrConflict)
	}
	return created, err
}

func (s *ClientScopeStore) GetByName(ctx context.Context, realmID uuid.UUID, name string) (domain.ClientScope, error) {
	return scanClientScope(DB.QueryRow(ctx,
		`SELECT `+clientScopeColumns+` FROM client_scopes WHERE realm_id = $1 AND name = $2`, realmID, name))
}

func (s *ClientScopeStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.ClientScope, error) {
	rows, err := DB.Query(ctx, `SELECT `+clientScopeColumns+` FROM client_scopes WHERE realm_id = $1 ORDER BY name`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query client scopes: %w", err)
	}
	defer rows.Close()

	var scopes []domain.ClientScope
	for rows.Next() {
		cs, err := scanClientScope(rows)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, cs)
	}
	return scopes, rows.Err()
}

func (s *ClientScopeStore) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.ClientScope, error) {
	rows, err := DB.Query(ctx,
		`SELECT cs.id, cs.realm_id, cs.name, cs.description, cs.protocol, cs.created_at, cs.updated_at
		 FROM client_scopes cs
		 JOIN client_scope_mappings m ON m.client_scope_id = cs.id
		 WHERE m.client_id = $1
		 ORDER BY cs.name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query client's scopes: %w", err)
	}
	defer rows.Close()

	var scopes []domain.ClientScope
	for rows.Next() {
		cs, err := scanClientScope(rows)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, cs)
	}
	return scopes, rows.Err()
}

func (s *ClientScopeStore) Bind(ctx context.Context, mapping domain.ClientScopeMapping) error {
	_, err := DB.Exec(ctx,
		`INSERT INTO client_scope_mappings (client_id, client_scope_id, binding)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (client_id, client_scope_id) DO UPDATE SET binding = EXCLUDED.binding`,
		mapping.ClientID, mapping.ClientScopeID, mapping.Binding)
	if err != nil {
		return fmt.Errorf("bind client scope: %w", err)
	}
	return nil
}

func (s *ClientScopeStore) AddProtocolMapper(ctx context.Context, m domain.ProtocolMapper) (domain.ProtocolMapper, error) {
	var created domain.ProtocolMapper
	err := DB.QueryRow(ctx,
		`INSERT INTO protocol_mappers (id, client_scope_id, name, mapper_type, config)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5)
		 RETURNING id, client_scope_id, name, mapper_type, config, created_at, updated_at`,
		nullableUUID(m.ID), m.ClientScopeID, m.Name, m.MapperType, m.Config,
	).Scan(&created.ID, &created.ClientScopeID, &created.Name, &created.MapperType, &created.Config,
		&created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return domain.ProtocolMapper{}, fmt.Errorf("insert protocol mapper: %w", err)
	}
	return created, nil
}

func (s *ClientScopeStore) ListProtocolMappers(ctx context.Context, clientScopeID uuid.UUID) ([]domain.ProtocolMapper, error) {
	rows, err := DB.Query(ctx,
		`SELECT id, client_scope_id, name, mapper_type, config, created_at, updated_at
		 FROM protocol_mappers WHERE client_scope_id = $1 ORDER BY name`, clientScopeID)
	if err != nil {
		return nil, fmt.Errorf("query protocol mappers: %w", err)
	}
	defer rows.Close()

	var mappers []domain.ProtocolMapper
	for rows.Next() {
		var m domain.ProtocolMapper
		if err := rows.Scan(&m.ID, &m.ClientScopeID, &m.Name, &m.MapperType, &m.Config, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan protocol mapper: %w", err)
		}
		mappers = append(mappers, m)
	}
	return mappers, rows.Err()
}

func (s *ClientScopeStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM client_scopes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client scope: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
