package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RealmKeyStore is the Postgres-backed repository.KeyStoreRepository. The
// realm_signing_keys table has a unique index on realm_id: the loser of a
// concurrent first-use race gets a unique_violation on insert and simply
// re-reads the winner's row.
type RealmKeyStore struct{}

// NewRealmKeyStore builds a RealmKeyStore using the package-level DB pool.
func NewRealmKeyStore() *RealmKeyStore { return &RealmKeyStore{} }

func (s *RealmKeyStore) GetOrGenerate(ctx context.Context, realmID uuid.UUID, generate func() ([]byte, error)) ([]byte, uuid.UUID, error) {
	var keyID uuid.UUID
	var pemBytes []byte
	err := DB.QueryRow(ctx,
		`SELECT id, private_key_pem FROM realm_signing_keys WHERE realm_id = $1`, realmID,
	).Scan(&keyID, &pemBytes)
	if err == nil {
		return pemBytes, keyID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, uuid.Nil, fmt.Errorf("query realm signing key: %w", err)
	}

	pem, err := generate()
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("generate realm signing key: %w", err)
	}

	err = DB.QueryRow(ctx,
		`INSERT INTO realm_signing_keys (id, realm_id, private_key_pem)
		 VALUES (gen_random_uuid(), $1, $2)
		 RETURNING id`,
		realmID, pem,
	).Scan(&keyID)
	if err == nil {
		return pem, keyID, nil
	}
	if !isUniqueViolation(err) {
		return nil, uuid.Nil, fmt.Errorf("insert realm signing key: %w", err)
	}

	// Lost the race: another caller already inserted the realm's key.
	err = DB.QueryRow(ctx,
		`SELECT id, private_key_pem FROM realm_signing_keys WHERE realm_id = $1`, realmID,
	).Scan(&keyID, &pemBytes)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("re-read realm signing key after race: %w", err)
	}
	return pemBytes, keyID, nil
}
