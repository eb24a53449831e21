package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
)

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	hash, err := credential.HashPassword(pw, credential.DefaultArgon2Params())
	require.NoError(t, err)
	return hash
}

type grantFixture struct {
	realm   domain.Realm
	clients *fakeClients
	users   *fakeUsers
	service *GrantService
}

func newGrantFixture() *grantFixture {
	realm := domain.Realm{ID: uuid.New(), Name: "acme", Settings: domain.DefaultRealmSettings()}
	realms := newFakeRealms(realm)
	clients := &fakeClients{byID: map[uuid.UUID]domain.Client{}}
	users := &fakeUsers{byID: map[uuid.UUID]domain.User{}}
	creds := newFakeCredentials()
	sessions := newFakeAuthSessions()
	refreshTokens := newFakeRefreshTokens()

	svc := NewGrantService(realms, clients, users, creds, sessions, refreshTokens, nil, newTestEngine())
	return &grantFixture{realm: realm, clients: clients, users: users, service: svc}
}

func TestGrantService_ClientCredentials(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	client := domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "backend-svc", Secret: "s3cret",
		ClientType: domain.ClientConfidential, ServiceAccountEnabled: true, Enabled: true,
	}
	fx.clients.byID[clientUUID] = client

	svcUser := domain.User{
		ID: uuid.New(), RealmID: fx.realm.ID,
		Username: domain.ServiceAccountUsername("backend-svc"), Enabled: true,
	}
	fx.users.byID[svcUser.ID] = svcUser

	resp, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantClientCredentials,
		ClientID: "backend-svc", ClientSecret: "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken, "client_credentials must not issue a refresh token")
	assert.Equal(t, "Bearer", resp.TokenType)
}

func TestGrantService_ClientCredentials_WrongSecret(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	fx.clients.byID[clientUUID] = domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "backend-svc", Secret: "s3cret",
		ClientType: domain.ClientConfidential, ServiceAccountEnabled: true, Enabled: true,
	}

	_, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantClientCredentials,
		ClientID: "backend-svc", ClientSecret: "wrong",
	})
	require.Error(t, err)
}

func TestGrantService_Password(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	fx.clients.byID[clientUUID] = domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "spa", Secret: "",
		ClientType: domain.ClientPublic, PublicClient: true, DirectAccessGrantsEnabled: true, Enabled: true,
	}
	userID := uuid.New()
	fx.users.byID[userID] = domain.User{ID: userID, RealmID: fx.realm.ID, Username: "alice", Enabled: true}

	creds := fx.service.credentials.(*fakeCredentials)
	_, err := creds.Create(context.Background(), domain.Credential{
		UserID: userID, Type: domain.CredentialPassword, SecretData: mustHash(t, "correcthorsebattery"),
	})
	require.NoError(t, err)

	resp, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantPassword,
		ClientID: "spa", Username: "alice", Password: "correcthorsebattery",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestGrantService_Password_WrongPassword(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	fx.clients.byID[clientUUID] = domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "spa", PublicClient: true,
		ClientType: domain.ClientPublic, DirectAccessGrantsEnabled: true, Enabled: true,
	}
	userID := uuid.New()
	fx.users.byID[userID] = domain.User{ID: userID, RealmID: fx.realm.ID, Username: "alice", Enabled: true}
	creds := fx.service.credentials.(*fakeCredentials)
	_, _ = creds.Create(context.Background(), domain.Credential{
		UserID: userID, Type: domain.CredentialPassword, SecretData: mustHash(t, "correcthorsebattery"),
	})

	_, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantPassword,
		ClientID: "spa", Username: "alice", Password: "wrong",
	})
	require.Error(t, err)
}

func TestGrantService_Password_RequiresDirectAccessGrants(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	fx.clients.byID[clientUUID] = domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "spa", PublicClient: true,
		ClientType: domain.ClientPublic, DirectAccessGrantsEnabled: false, Enabled: true,
	}

	_, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantPassword,
		ClientID: "spa", Username: "alice", Password: "whatever",
	})
	require.Error(t, err)
}

func TestGrantService_AuthorizationCode(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	fx.clients.byID[clientUUID] = domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "webapp", Secret: "s3cret",
		ClientType: domain.ClientConfidential, RedirectURIs: []string{"https://app.example.com/cb"}, Enabled: true,
	}
	userID := uuid.New()
	fx.users.byID[userID] = domain.User{ID: userID, RealmID: fx.realm.ID, Username: "alice", Enabled: true}

	sessions := fx.service.sessions.(*fakeAuthSessions)
	code := "test-code"
	expires := time.Now().Add(1 * time.Minute)
	session, err := sessions.Create(context.Background(), domain.AuthSession{
		RealmID: fx.realm.ID, ClientID: clientUUID, RedirectURI: "https://app.example.com/cb",
		ResponseType: "code", UserID: &userID, Code: &code, CodeExpiresAt: &expires,
	})
	require.NoError(t, err)
	_, err = sessions.Update(context.Background(), session)
	require.NoError(t, err)

	resp, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantAuthorizationCode,
		ClientID: "webapp", ClientSecret: "s3cret", Code: code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.IDToken)

	// Replaying the same code must fail (spec §4.3 single-use guarantee).
	_, err = fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantAuthorizationCode,
		ClientID: "webapp", ClientSecret: "s3cret", Code: code,
	})
	require.Error(t, err)
}

func TestGrantService_RefreshToken_RotatesAndRevokesPresented(t *testing.T) {
	fx := newGrantFixture()
	clientUUID := uuid.New()
	fx.clients.byID[clientUUID] = domain.Client{
		ID: clientUUID, RealmID: fx.realm.ID, ClientID: "spa", PublicClient: true,
		ClientType: domain.ClientPublic, DirectAccessGrantsEnabled: true, Enabled: true,
	}
	userID := uuid.New()
	fx.users.byID[userID] = domain.User{ID: userID, RealmID: fx.realm.ID, Username: "alice", Enabled: true}
	creds := fx.service.credentials.(*fakeCredentials)
	_, _ = creds.Create(context.Background(), domain.Credential{
		UserID: userID, Type: domain.CredentialPassword, SecretData: mustHash(t, "correcthorsebattery"),
	})

	first, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantPassword,
		ClientID: "spa", Username: "alice", Password: "correcthorsebattery",
	})
	require.NoError(t, err)

	second, err := fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantRefreshToken,
		ClientID: "spa", RefreshToken: first.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, second.AccessToken)

	// The original refresh token must now be revoked.
	_, err = fx.service.Exchange(context.Background(), GrantRequest{
		RealmName: "acme", GrantType: GrantRefreshToken,
		ClientID: "spa", RefreshToken: first.RefreshToken,
	})
	require.Error(t, err)
}
