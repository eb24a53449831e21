package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// RealmStore is the Postgres-backed repository.RealmRepository.
type RealmStore struct{}

// NewRealmStore builds a RealmStore using the package-level DB pool.
func NewRealmStore() *RealmStore { return &RealmStore{} }

func (s *RealmStore) Create(ctx context.Context, realm domain.Realm) (domain.Realm, error) {
	settings, err := json.Marshal(realm.Settings)
	if err != nil {
		return domain.Realm{}, fmt.Errorf("marshal realm settings: %w", err)
	}

	var created domain.Realm
	var rawSettings []byte
	err = DB.QueryRow(ctx,
		`INSERT INTO realms (id, name, settings)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3)
		 RETURNING id, name, settings, created_at, updated_at`,
		nullableUUID(realm.ID), realm.Name, settings,
	).Scan(&created.ID, &created.Name, &rawSettings, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Realm{}, fmt.Errorf("realm %q: %w", realm.Name, ErrConflict)
		}
		return domain.Realm{}, fmt.Errorf("insert realm: %w", err)
	}
	if err := json.Unmarshal(rawSettings, &created.Settings); err != nil {
		return domain.Realm{}, fmt.Errorf("unmarshal realm settings: %w", err)
	}
	return created, nil
}

func (s *RealmStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Realm, error) {
	return s.scanOne(ctx,
		`SELECT id, name, settings, created_at, updated_at FROM realms WHERE id = $1`, id)
}

func (s *RealmStore) GetByName(ctx context.Context, name string) (domain.Realm, error) {
	return s.scanOne(ctx,
		`SELECT id, name, settings, created_at, updated_at FROM realms WHERE name = $1`, name)
}

func (s *RealmStore) scanOne(ctx context.Context, query string, arg any) (domain.Realm, error) {
	var r domain.Realm
	var rawSettings []byte
	err := DB.QueryRow(ctx, query, arg).Scan(&r.ID, &r.Name, &rawSettings, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Realm{}, ErrNotFound
	}
	if err != nil {
		return domain.Realm{}, fmt.Errorf("query realm: %w", err)
	}
	if err := json.Unmarshal(rawSettings, &r.Settings); err != nil {
		return domain.Realm{}, fmt.Errorf("unmarshal realm settings: %w", err)
	}
	return r, nil
}

func (s *RealmStore) List(ctx context.Context) ([]domain.Realm, error) {
	rows, err := DB.Query(ctx, `SELECT id, name, settings, created_at, updated_at FROM realms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query realms: %w", err)
	}
	defer rows.Close()

	var realms []domain.Realm
	for rows.Next() {
		var r domain.Realm
		var rawSettings []byte
		if err := rows.Scan(&r.ID, &r.Name, &rawSettings, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan realm: %w", err)
		}
		if err := json.Unmarshal(rawSettings, &r.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal realm settings: %w", err)
		}
		realms = append(realms, r)
	}
	return realms, rows.Err()
}

func (s *RealmStore) Update(ctx context.Context, realm domain.Realm) (domain.Realm, error) {
	settings, err := json.Marshal(realm.Settings)
	if err != nil {
		return domain.Realm{}, fmt.Errorf("marshal realm settings: %w", err)
	}

	var updated domain.Realm
	var rawSettings []byte
	err = DB.QueryRow(ctx,
		`UPDATE realms SET name = $2, settings = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, settings, created_at, updated_at`,
		realm.ID, realm.Name, settings,
	).Scan(&updated.ID, &updated.Name, &rawSettings, &updated.CreatedAt, &updated.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Realm{}, ErrNotFound
	}
	if err != nil {
		return domain.Realm{}, fmt.Errorf("update realm: %w", err)
	}
	if err := json.Unmarshal(rawSettings, &updated.Settings); err != nil {
		return domain.Realm{}, fmt.Errorf("unmarshal realm settings: %w", err)
	}
	return updated, nil
}

func (s *RealmStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM realms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete realm: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// nullableUUID returns nil for the zero UUID so the insert can fall back to
// gen_random_uuid(), otherwise the caller-supplied ID.
func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
