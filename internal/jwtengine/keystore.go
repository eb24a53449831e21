package jwtengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/repository"
)

// KeyStore resolves a realm's signing key, generating one on first use.
// Generation races are resolved by the repository's unique-index
// constraint: the loser of the race re-reads the winner's row.
type KeyStore struct {
	repo repository.KeyStoreRepository
}

// NewKeyStore builds a KeyStore backed by repo.
func NewKeyStore(repo repository.KeyStoreRepository) *KeyStore {
	return &KeyStore{repo: repo}
}

// GetOrGenerate returns realmID's current KeyPair, generating and
// persisting a fresh RSA-2048 key the first time the realm is used. The
// repository is the source of truth for which key "won" a concurrent
// first-use race, so the result is always decoded from what it returns
// rather than trusted from the generate closure.
func (s *KeyStore) GetOrGenerate(ctx context.Context, realmID uuid.UUID) (KeyPair, error) {
	pem, keyID, err := s.repo.GetOrGenerate(ctx, realmID, func() ([]byte, error) {
		kp, genErr := GenerateKeyPair(realmID)
		if genErr != nil {
			return nil, genErr
		}
		return EncodePrivateKeyPEM(kp.PrivateKey), nil
	})
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrRealmKeyNotFound, err)
	}

	privateKey, err := DecodePrivateKeyPEM(pem)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{ID: keyID, RealmID: realmID, PrivateKey: privateKey}, nil
}
