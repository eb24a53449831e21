package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/jwtengine"
	"github.com/ferriskey/iam/internal/repository"
)

// fakeKeyStoreRepo mirrors jwtengine's own test double: an in-memory
// stand-in for the get-or-generate-once contract a unique index enforces.
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

func newTestEngine() *jwtengine.Engine {
	return jwtengine.NewEngine(jwtengine.NewKeyStore(newFakeKeyStoreRepo()), testIssuer)
}

type fakeRealms struct {
	byID   map[uuid.UUID]domain.Realm
	byName map[string]domain.Realm
}

func newFakeRealms(realms ...domain.Realm) *fakeRealms {
	f := &fakeRealms{byID: map[uuid.UUID]domain.Realm{}, byName: map[string]domain.Realm{}}
	for _, r := range realms {
		f.byID[r.ID] = r
		f.byName[r.Name] = r
	}
	return f
}

func (f *fakeRealms) Create(ctx context.Context, r domain.Realm) (domain.Realm, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.byID[r.ID] = r
	f.byName[r.Name] = r
	return r, nil
}
func (f *fakeRealms) GetByID(ctx context.Context, id uuid.UUID) (domain.Realm, error) {
	r, ok := f.byID[id]
	if !ok {
		return domain.Realm{}, repository.ErrNotFound
	}
	return r, nil
}
func (f *fakeRealms) GetByName(ctx context.Context, name string) (domain.Realm, error) {
	r, ok := f.byName[name]
	if !ok {
		return domain.Realm{}, repository.ErrNotFound
	}
	return r, nil
}
func (f *fakeRealms) List(ctx context.Context) ([]domain.Realm, error) {
	out := make([]domain.Realm, 0, len(f.byID))
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, nil
}
func (f *fakeRealms) Update(ctx context.Context, r domain.Realm) (domain.Realm, error) {
	f.byID[r.ID] = r
	f.byName[r.Name] = r
	return r, nil
}
func (f *fakeRealms) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

type fakeCredentials struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Credential
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{byID: map[uuid.UUID]domain.Credential{}}
}

func (f *fakeCredentials) Create(ctx context.Context, c domain.Credential) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.byID[c.ID] = c
	return c, nil
}
func (f *fakeCredentials) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Credential, error) {
	return f.ListByUserAndType(ctx, userID, "")
}
func (f *fakeCredentials) ListByUserAndType(ctx context.Context, userID uuid.UUID, kind domain.CredentialType) ([]domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Credential
	for _, c := range f.byID {
		if c.UserID == userID && (kind == "" || c.Type == kind) {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeCredentials) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.UsedAt != nil {
		return false, nil
	}
	c.UsedAt = &at
	f.byID[id] = c
	return true, nil
}
func (f *fakeCredentials) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

type fakeAuthSessions struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]domain.AuthSession
	byCode      map[string]uuid.UUID
	byMagicToken map[string]uuid.UUID
}

func newFakeAuthSessions() *fakeAuthSessions {
	return &fakeAuthSessions{
		byID:         map[uuid.UUID]domain.AuthSession{},
		byCode:       map[string]uuid.UUID{},
		byMagicToken: map[string]uuid.UUID{},
	}
}

func (f *fakeAuthSessions) Create(ctx context.Context, s domain.AuthSession) (domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.byID[s.ID] = s
	return s, nil
}
func (f *fakeAuthSessions) GetByID(ctx context.Context, id uuid.UUID) (domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.AuthSession{}, repository.ErrNotFound
	}
	return s, nil
}
func (f *fakeAuthSessions) GetByCode(ctx context.Context, code string) (domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byCode[code]
	if !ok {
		return domain.AuthSession{}, repository.ErrNotFound
	}
	return f.byID[id], nil
}
func (f *fakeAuthSessions) Update(ctx context.Context, s domain.AuthSession) (domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[s.ID] = s
	if s.Code != nil {
		f.byCode[*s.Code] = s.ID
	}
	if s.MagicToken != nil {
		f.byMagicToken[*s.MagicToken] = s.ID
	}
	return s, nil
}
func (f *fakeAuthSessions) ConsumeMagicToken(ctx context.Context, token string, at time.Time) (domain.AuthSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byMagicToken[token]
	if !ok {
		return domain.AuthSession{}, false, nil
	}
	s := f.byID[id]
	if s.MagicToken == nil || *s.MagicToken != token || s.MagicTokenExpiresAt == nil || at.After(*s.MagicTokenExpiresAt) {
		return domain.AuthSession{}, false, nil
	}
	s.MagicToken = nil
	s.MagicTokenExpiresAt = nil
	f.byID[id] = s
	delete(f.byMagicToken, token)
	return s, true, nil
}
func (f *fakeAuthSessions) ConsumeCode(ctx context.Context, code string, at time.Time) (domain.AuthSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byCode[code]
	if !ok {
		return domain.AuthSession{}, false, nil
	}
	s := f.byID[id]
	if s.Code == nil || *s.Code != code || s.CodeExpiresAt == nil || at.After(*s.CodeExpiresAt) {
		return domain.AuthSession{}, false, nil
	}
	s.Code = nil
	s.CodeExpiresAt = nil
	f.byID[id] = s
	delete(f.byCode, code)
	return s, true, nil
}
func (f *fakeAuthSessions) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

type fakeRefreshTokens struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.RefreshToken
}

func newFakeRefreshTokens() *fakeRefreshTokens {
	return &fakeRefreshTokens{byID: map[uuid.UUID]domain.RefreshToken{}}
}

func (f *fakeRefreshTokens) Create(ctx context.Context, t domain.RefreshToken) (domain.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[t.JTI] = t
	return t, nil
}
func (f *fakeRefreshTokens) GetByJTI(ctx context.Context, jti uuid.UUID) (domain.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[jti]
	if !ok {
		return domain.RefreshToken{}, repository.ErrNotFound
	}
	return t, nil
}
func (f *fakeRefreshTokens) Revoke(ctx context.Context, jti uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[jti]
	if !ok {
		return nil
	}
	t.Revoked = true
	f.byID[jti] = t
	return nil
}
func (f *fakeRefreshTokens) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for jti, t := range f.byID {
		if t.UserID == userID {
			t.Revoked = true
			f.byID[jti] = t
		}
	}
	return nil
}
func (f *fakeRefreshTokens) Delete(ctx context.Context, jti uuid.UUID) error {
	delete(f.byID, jti)
	return nil
}
