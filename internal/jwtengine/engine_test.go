package jwtengine

import (
	"context"
	"sync"
	"testing"
	"time"

	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeyStoreRepo is an in-memory stand-in for repository.KeyStoreRepository,
// exercising the same get-or-generate-once contract a Postgres unique index
// would enforce.
type fakeKeyStoreRepo struct {
	mu   sync.Mutex
	pems map[uuid.UUID][]byte
	ids  map[uuid.UUID]uuid.UUID
}

func newFakeKeyStoreRepo() *fakeKeyStoreRepo {
	return &fakeKeyStoreRepo{pems: map[uuid.UUID][]byte{}, ids: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeKeyStoreRepo) GetOrGenerate(_ context.Context, realmID uuid.UUID, generate func() ([]byte, error)) ([]byte, uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pem, ok := f.pems[realmID]; ok {
		return pem, f.ids[realmID], nil
	}
	pem, err := generate()
	if err != nil {
		return nil, uuid.Nil, err
	}
	id := uuid.New()
	f.pems[realmID] = pem
	f.ids[realmID] = id
	return pem, id, nil
}

func testIssuer(realmName string) string {
	return "https://auth.example.com/realms/" + realmName
}

func TestEngine_SignAndVerify(t *testing.T) {
	store := NewKeyStore(newFakeKeyStoreRepo())
	engine := NewEngine(store, testIssuer)
	realmID := uuid.New()

	token, err := engine.Sign(context.Background(), realmID, "acme", Claims{
		Claims: josejwt.Claims{Subject: uuid.New().String()},
	}, TokenTypeAccess, AccessTokenTTL)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Raw)

	claims, err := engine.Verify(context.Background(), realmID, token.Raw, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.Realm)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, testIssuer("acme"), claims.Issuer)
}

func TestEngine_Verify_WrongType(t *testing.T) {
	store := NewKeyStore(newFakeKeyStoreRepo())
	engine := NewEngine(store, testIssuer)
	realmID := uuid.New()

	token, err := engine.Sign(context.Background(), realmID, "acme", Claims{}, TokenTypeRefresh, RefreshTokenTTL)
	require.NoError(t, err)

	_, err = engine.Verify(context.Background(), realmID, token.Raw, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestEngine_Verify_Expired(t *testing.T) {
	store := NewKeyStore(newFakeKeyStoreRepo())
	engine := NewEngine(store, testIssuer)
	realmID := uuid.New()

	token, err := engine.Sign(context.Background(), realmID, "acme", Claims{}, TokenTypeAccess, -1*time.Minute)
	require.NoError(t, err)

	_, err = engine.Verify(context.Background(), realmID, token.Raw, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestEngine_KeysStableAcrossRealmUse(t *testing.T) {
	store := NewKeyStore(newFakeKeyStoreRepo())
	engine := NewEngine(store, testIssuer)
	realmID := uuid.New()

	first, err := engine.Sign(context.Background(), realmID, "acme", Claims{}, TokenTypeAccess, AccessTokenTTL)
	require.NoError(t, err)
	second, err := engine.Sign(context.Background(), realmID, "acme", Claims{}, TokenTypeAccess, AccessTokenTTL)
	require.NoError(t, err)

	_, err = engine.Verify(context.Background(), realmID, first.Raw, TokenTypeAccess)
	require.NoError(t, err)
	_, err = engine.Verify(context.Background(), realmID, second.Raw, TokenTypeAccess)
	require.NoError(t, err)
}

func TestEngine_JWKS(t *testing.T) {
	store := NewKeyStore(newFakeKeyStoreRepo())
	engine := NewEngine(store, testIssuer)
	realmID := uuid.New()

	set, err := engine.JWKS(context.Background(), realmID)
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "sig", set.Keys[0].Use)
	assert.True(t, set.Keys[0].Valid())
}

func TestKeyStore_ConcurrentGetOrGenerate_ConvergesOnOneKey(t *testing.T) {
	store := NewKeyStore(newFakeKeyStoreRepo())
	realmID := uuid.New()

	const n = 20
	results := make([]KeyPair, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			kp, err := store.GetOrGenerate(context.Background(), realmID)
			require.NoError(t, err)
			results[i] = kp
		}(i)
	}
	wg.Wait()

	first := results[0].ID
	for _, kp := range results {
		assert.Equal(t, first, kp.ID, "all callers must converge on the same realm key")
	}
}
