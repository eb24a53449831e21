package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/jwtengine"
	"github.com/ferriskey/iam/internal/repository"
	"github.com/ferriskey/iam/internal/service"
)

type fakeRealmRepo struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]domain.Realm
	byName map[string]domain.Realm
}

func newFakeRealmRepo(realms ...domain.Realm) *fakeRealmRepo {
	f := &fakeRealmRepo{byID: map[uuid.UUID]domain.Realm{}, byName: map[string]domain.Realm{}}
	for _, r := range realms {
		f.byID[r.ID] = r
		f.byName[r.Name] = r
	}
	return f
}

func (f *fakeRealmRepo) Create(ctx context.Context, r domain.Realm) (domain.Realm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.byID[r.ID] = r
	f.byName[r.Name] = r
	return r, nil
}
func (f *fakeRealmRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Realm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return domain.Realm{}, repository.ErrNotFound
	}
	return r, nil
}
func (f *fakeRealmRepo) GetByName(ctx context.Context, name string) (domain.Realm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byName[name]
	if !ok {
		return domain.Realm{}, repository.ErrNotFound
	}
	return r, nil
}
func (f *fakeRealmRepo) List(ctx context.Context) ([]domain.Realm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Realm, 0, len(f.byID))
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, nil
}
func (f *fakeRealmRepo) Update(ctx context.Context, r domain.Realm) (domain.Realm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[r.ID] = r
	f.byName[r.Name] = r
	return r, nil
}
func (f *fakeRealmRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

// fakeKeyStoreRepo is a minimal in-memory stand-in for the get-or-generate
// once contract jwtengine.KeyStore relies on.
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

func TestRouter_Discovery(t *testing.T) {
	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	realms := newFakeRealmRepo(realm)
	engine := jwtengine.NewEngine(jwtengine.NewKeyStore(newFakeKeyStoreRepo()), testIssuer)
	oidc := service.NewOIDCService(realms, nil, nil, nil, nil, engine, testIssuer)

	router := NewRouter(&Services{Realms: realms, OIDC: oidc, Engine: engine}, nil)

	req := httptest.NewRequest("GET", "/realms/acme/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var doc service.DiscoveryDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "https://auth.example.com/realms/acme", doc.Issuer)
	assert.Contains(t, doc.TokenEndpoint, "/protocol/openid-connect/token")
}

func TestRouter_Discovery_UnknownRealm(t *testing.T) {
	realms := newFakeRealmRepo()
	engine := jwtengine.NewEngine(jwtengine.NewKeyStore(newFakeKeyStoreRepo()), testIssuer)
	oidc := service.NewOIDCService(realms, nil, nil, nil, nil, engine, testIssuer)

	router := NewRouter(&Services{Realms: realms, OIDC: oidc, Engine: engine}, nil)

	req := httptest.NewRequest("GET", "/realms/ghost/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestRouter_JWKS(t *testing.T) {
	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	realms := newFakeRealmRepo(realm)
	engine := jwtengine.NewEngine(jwtengine.NewKeyStore(newFakeKeyStoreRepo()), testIssuer)
	oidc := service.NewOIDCService(realms, nil, nil, nil, nil, engine, testIssuer)

	router := NewRouter(&Services{Realms: realms, OIDC: oidc, Engine: engine}, nil)

	req := httptest.NewRequest("GET", "/realms/acme/protocol/openid-connect/certs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Keys, 1)
}

func TestRouter_AdminRoute_RequiresBearer(t *testing.T) {
	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	realms := newFakeRealmRepo(realm)
	engine := jwtengine.NewEngine(jwtengine.NewKeyStore(newFakeKeyStoreRepo()), testIssuer)

	router := NewRouter(&Services{Realms: realms, Engine: engine}, nil)

	req := httptest.NewRequest("GET", "/realms/acme/clients/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}
