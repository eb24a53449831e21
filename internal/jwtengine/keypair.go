package jwtengine

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// rsaKeyBits is the modulus size for per-realm signing keys.
const rsaKeyBits = 2048

// KeyPair is a realm's RSA signing key, persisted PKCS#1-PEM-encoded.
type KeyPair struct {
	ID         uuid.UUID
	RealmID    uuid.UUID
	PrivateKey *rsa.PrivateKey
	CreatedAt  time.Time
}

// GenerateKeyPair creates a fresh RSA-2048 key pair for realmID.
func GenerateKeyPair(realmID uuid.UUID) (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return KeyPair{
		ID:         uuid.New(),
		RealmID:    realmID,
		PrivateKey: key,
		CreatedAt:  time.Now(),
	}, nil
}

// EncodePrivateKeyPEM serializes the key pair's private key as PKCS#1 PEM,
// the format KeyStoreRepository persists.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// DecodePrivateKeyPEM parses a PKCS#1 PEM-encoded RSA private key.
func DecodePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM encoded", ErrInvalidKey)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}
