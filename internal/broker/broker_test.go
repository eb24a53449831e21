package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/repository"
)

type fakeRealms struct{ realm domain.Realm }

func (f *fakeRealms) Create(ctx context.Context, r domain.Realm) (domain.Realm, error) { return r, nil }
func (f *fakeRealms) GetByID(ctx context.Context, id uuid.UUID) (domain.Realm, error) {
	if id != f.realm.ID {
		return domain.Realm{}, repository.ErrNotFound
	}
	return f.realm, nil
}
func (f *fakeRealms) GetByName(ctx context.Context, name string) (domain.Realm, error) {
	if name != f.realm.Name {
		return domain.Realm{}, repository.ErrNotFound
	}
	return f.realm, nil
}
func (f *fakeRealms) List(ctx context.Context) ([]domain.Realm, error) { return []domain.Realm{f.realm}, nil }
func (f *fakeRealms) Update(ctx context.Context, r domain.Realm) (domain.Realm, error) { return r, nil }
func (f *fakeRealms) Delete(ctx context.Context, id uuid.UUID) error                   { return nil }

type fakeClients struct{ client domain.Client }

func (f *fakeClients) Create(ctx context.Context, c domain.Client) (domain.Client, error) { return c, nil }
func (f *fakeClients) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error)   { return f.client, nil }
func (f *fakeClients) GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (domain.Client, error) {
	if clientID != f.client.ClientID {
		return domain.Client{}, repository.ErrNotFound
	}
	return f.client, nil
}
func (f *fakeClients) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Client, error) {
	return []domain.Client{f.client}, nil
}
func (f *fakeClients) Update(ctx context.Context, c domain.Client) (domain.Client, error) { return c, nil }
func (f *fakeClients) Delete(ctx context.Context, id uuid.UUID) error                     { return nil }

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]domain.User
	byMail map[string]uuid.UUID
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uuid.UUID]domain.User{}, byMail: map[string]uuid.UUID{}}
}
func (f *fakeUsers) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.byID[u.ID] = u
	if u.Email != "" {
		f.byMail[u.Email] = u.ID
	}
	return u, nil
}
func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}
func (f *fakeUsers) GetByUsername(ctx context.Context, realmID uuid.UUID, username string) (domain.User, error) {
	return domain.User{}, repository.ErrNotFound
}
func (f *fakeUsers) GetByEmail(ctx context.Context, realmID uuid.UUID, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byMail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return f.byID[id], nil
}
func (f *fakeUsers) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.User, error) { return nil, nil }
func (f *fakeUsers) Update(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return u, nil
}
func (f *fakeUsers) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeIdps struct {
	idp   domain.IdentityProvider
	mu    sync.Mutex
	links map[string]domain.IdentityProviderLink
}

func newFakeIdps(idp domain.IdentityProvider) *fakeIdps {
	return &fakeIdps{idp: idp, links: map[string]domain.IdentityProviderLink{}}
}
func (f *fakeIdps) Create(ctx context.Context, idp domain.IdentityProvider) (domain.IdentityProvider, error) {
	return idp, nil
}
func (f *fakeIdps) GetByAlias(ctx context.Context, realmID uuid.UUID, alias string) (domain.IdentityProvider, error) {
	if alias != f.idp.Alias {
		return domain.IdentityProvider{}, repository.ErrNotFound
	}
	return f.idp, nil
}
func (f *fakeIdps) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.IdentityProvider, error) {
	return []domain.IdentityProvider{f.idp}, nil
}
func (f *fakeIdps) Update(ctx context.Context, idp domain.IdentityProvider) (domain.IdentityProvider, error) {
	return idp, nil
}
func (f *fakeIdps) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeIdps) CreateLink(ctx context.Context, link domain.IdentityProviderLink) (domain.IdentityProviderLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[link.ExternalID] = link
	return link, nil
}
func (f *fakeIdps) GetLinkByExternalID(ctx context.Context, idpID uuid.UUID, externalID string) (domain.IdentityProviderLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[externalID]
	if !ok {
		return domain.IdentityProviderLink{}, repository.ErrNotFound
	}
	return link, nil
}
func (f *fakeIdps) DeleteLink(ctx context.Context, id uuid.UUID) error { return nil }

type fakeBrokerSessions struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]domain.BrokerAuthSession
	byState map[string]uuid.UUID
}

func newFakeBrokerSessions() *fakeBrokerSessions {
	return &fakeBrokerSessions{byID: map[uuid.UUID]domain.BrokerAuthSession{}, byState: map[string]uuid.UUID{}}
}
func (f *fakeBrokerSessions) Create(ctx context.Context, s domain.BrokerAuthSession) (domain.BrokerAuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.byID[s.ID] = s
	f.byState[s.BrokerState] = s.ID
	return s, nil
}
func (f *fakeBrokerSessions) GetByBrokerState(ctx context.Context, state string) (domain.BrokerAuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byState[state]
	if !ok {
		return domain.BrokerAuthSession{}, repository.ErrNotFound
	}
	return f.byID[id], nil
}
func (f *fakeBrokerSessions) Update(ctx context.Context, s domain.BrokerAuthSession) (domain.BrokerAuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[s.ID] = s
	return s, nil
}
func (f *fakeBrokerSessions) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeAuthIssuer struct {
	lastRealmID, lastClientID, lastUserID uuid.UUID
}

func (f *fakeAuthIssuer) IssueCodeForUser(ctx context.Context, realmID, clientID, userID uuid.UUID, redirectURI, scope, state string) (string, error) {
	f.lastRealmID, f.lastClientID, f.lastUserID = realmID, clientID, userID
	return "local-auth-code", nil
}

func TestBroker_StartThenCallback_ProvisionsNewUser(t *testing.T) {
	idpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "idp-access-token",
				"token_type":   "Bearer",
			})
		case "/userinfo":
			assert.Equal(t, "Bearer idp-access-token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]string{
				"sub": "external-123", "email": "new@example.com", "name": "New User",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer idpServer.Close()

	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	client := domain.Client{
		ID: uuid.New(), RealmID: realm.ID, ClientID: "webapp", Enabled: true,
		RedirectURIs: []string{"https://app.example.com/cb"},
	}
	idp := domain.IdentityProvider{
		ID: uuid.New(), RealmID: realm.ID, Alias: "google", Enabled: true, TrustEmail: true,
		Config: domain.IdentityProviderConfig{
			ClientID: "idp-client", ClientSecret: "idp-secret",
			AuthorizationURL: idpServer.URL + "/auth",
			TokenURL:         idpServer.URL + "/token",
			UserInfoURL:      idpServer.URL + "/userinfo",
		},
	}

	users := newFakeUsers()
	idps := newFakeIdps(idp)
	sessions := newFakeBrokerSessions()
	issuer := &fakeAuthIssuer{}

	svc := NewService(&fakeRealms{realm: realm}, &fakeClients{client: client}, idps, users, sessions, issuer)

	start, err := svc.Start(context.Background(), StartInput{
		RealmName: "acme", IdentityProviderAlias: "google", ClientID: "webapp",
		RedirectURI: "https://app.example.com/cb", Scope: "openid", State: "xyz",
	})
	require.NoError(t, err)
	assert.Contains(t, start.AuthorizationURL, idpServer.URL+"/auth")
	assert.Contains(t, start.AuthorizationURL, "code_challenge=")

	_, err = sessions.GetByBrokerState(context.Background(), extractStateParam(t, start.AuthorizationURL))
	require.NoError(t, err)

	redirectURL, err := svc.Callback(context.Background(), extractStateParam(t, start.AuthorizationURL), "upstream-code")
	require.NoError(t, err)
	assert.Contains(t, redirectURL, "https://app.example.com/cb?code=local-auth-code&state=xyz")

	assert.Equal(t, realm.ID, issuer.lastRealmID)
	assert.Equal(t, client.ID, issuer.lastClientID)
	assert.NotEqual(t, uuid.Nil, issuer.lastUserID)

	provisioned, err := users.GetByEmail(context.Background(), realm.ID, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "external-123", provisioned.Username)
	assert.True(t, provisioned.EmailVerified)
}

func TestBroker_Callback_UnknownStateRejected(t *testing.T) {
	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	svc := NewService(&fakeRealms{realm: realm}, &fakeClients{}, newFakeIdps(domain.IdentityProvider{}), newFakeUsers(), newFakeBrokerSessions(), &fakeAuthIssuer{})

	_, err := svc.Callback(context.Background(), "never-issued", "code")
	require.Error(t, err)
}

func extractStateParam(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}
