// Package broker implements the external identity-provider login flow:
// redirecting to a configured OAuth2/OIDC IdP, exchanging its callback code
// for tokens, pulling userinfo, and resolving the result to a local user.
package broker

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/repository"
)

const brokerSessionTTL = 10 * time.Minute

// Service drives the broker state machine of spec §4.7:
//
//	(none) -> AWAITING_CALLBACK -> EXCHANGED_FOR_IDP_TOKENS -> USER_RESOLVED -> CODE_ISSUED
type Service struct {
	realms    repository.RealmRepository
	clients   repository.ClientRepository
	idps      repository.IdentityProviderRepository
	users     repository.UserRepository
	sessions  repository.BrokerAuthSessionRepository
	auth      AuthSessionIssuer
	httpClient *http.Client
}

// AuthSessionIssuer is the subset of AuthSessionService the broker needs to
// hand a resolved user off to the ordinary authorization-code issuance path
// once brokering completes.
type AuthSessionIssuer interface {
	IssueCodeForUser(ctx context.Context, realmID, clientID, userID uuid.UUID, redirectURI, scope, state string) (string, error)
}

func NewService(
	realms repository.RealmRepository,
	clients repository.ClientRepository,
	idps repository.IdentityProviderRepository,
	users repository.UserRepository,
	sessions repository.BrokerAuthSessionRepository,
	auth AuthSessionIssuer,
) *Service {
	return &Service{
		realms: realms, clients: clients, idps: idps, users: users, sessions: sessions,
		auth:       auth,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// StartInput describes the relying-party request that wants to delegate
// login to an external IdP.
type StartInput struct {
	RealmName             string
	IdentityProviderAlias string
	ClientID              string
	RedirectURI           string
	Scope                 string
	State                 string
}

// StartResult carries the URL the caller must redirect the browser to.
type StartResult struct {
	BrokerSessionID   uuid.UUID
	AuthorizationURL string
}

// Start resolves the realm, client and IdP, mints broker CSRF/PKCE state,
// and builds the external authorization URL (AWAITING_CALLBACK).
func (s *Service) Start(ctx context.Context, in StartInput) (StartResult, error) {
	realm, err := s.realms.GetByName(ctx, in.RealmName)
	if err != nil {
		return StartResult{}, core.InvalidRealm("realm not found")
	}

	client, err := s.clients.GetByClientID(ctx, realm.ID, in.ClientID)
	if err != nil || client.RealmID != realm.ID || !client.Enabled {
		return StartResult{}, core.InvalidClient("client not found")
	}
	if !client.MatchesRedirectURI(in.RedirectURI) {
		return StartResult{}, core.InvalidRequest("redirect_uri is not registered for this client")
	}

	idp, err := s.idps.GetByAlias(ctx, realm.ID, in.IdentityProviderAlias)
	if err != nil || idp.RealmID != realm.ID || !idp.Enabled {
		return StartResult{}, core.NotFound()
	}

	brokerState, err := randomToken()
	if err != nil {
		return StartResult{}, core.Internal(err)
	}
	verifier := oauth2.GenerateVerifier()

	session := domain.BrokerAuthSession{
		RealmID:            realm.ID,
		IdentityProviderID: idp.ID,
		ClientID:           client.ID,
		RedirectURI:        in.RedirectURI,
		ResponseType:       "code",
		Scope:              in.Scope,
		State:              in.State,
		BrokerState:        brokerState,
		CodeVerifier:       verifier,
		CreatedAt:          time.Now(),
		ExpiresAt:          time.Now().Add(brokerSessionTTL),
	}
	session, err = s.sessions.Create(ctx, session)
	if err != nil {
		return StartResult{}, core.Internal(err)
	}

	cfg := oauthConfigFor(idp)
	authURL := cfg.AuthCodeURL(brokerState, oauth2.S256ChallengeOption(verifier))

	return StartResult{BrokerSessionID: session.ID, AuthorizationURL: authURL}, nil
}

// Callback completes the flow once the external IdP redirects back with a
// code: it exchanges the code for IdP tokens (EXCHANGED_FOR_IDP_TOKENS),
// fetches userinfo and resolves a local user (USER_RESOLVED), then issues
// a local authorization code through AuthSessionIssuer (CODE_ISSUED).
func (s *Service) Callback(ctx context.Context, brokerState, code string) (redirectURL string, err error) {
	session, err := s.sessions.GetByBrokerState(ctx, brokerState)
	if err != nil {
		return "", core.InvalidState("unknown or expired broker session")
	}
	if session.Expired(time.Now()) {
		return "", core.InvalidState("broker session expired")
	}

	idp, err := s.idps.ListByRealm(ctx, session.RealmID)
	if err != nil {
		return "", core.Internal(err)
	}
	var provider domain.IdentityProvider
	found := false
	for _, p := range idp {
		if p.ID == session.IdentityProviderID {
			provider, found = p, true
			break
		}
	}
	if !found {
		return "", core.NotFound()
	}

	cfg := oauthConfigFor(provider)
	idpToken, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(session.CodeVerifier))
	if err != nil {
		return "", core.BadGateway("identity provider token exchange failed").Wrap(err)
	}

	info, err := fetchUserinfo(ctx, s.httpClient, provider, idpToken)
	if err != nil {
		return "", core.BadGateway("identity provider userinfo request failed").Wrap(err)
	}

	user, err := s.resolveUser(ctx, session.RealmID, provider, info)
	if err != nil {
		return "", err
	}

	session.AuthSessionID = &user.ID
	if _, err := s.sessions.Update(ctx, session); err != nil {
		return "", core.Internal(err)
	}

	localCode, err := s.auth.IssueCodeForUser(ctx, session.RealmID, session.ClientID, user.ID, session.RedirectURI, session.Scope, session.State)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s?code=%s&state=%s", session.RedirectURI, localCode, session.State), nil
}

// resolveUser looks up an existing link by external ID, or — when the IdP
// is configured with TrustEmail — falls back to matching on email and
// linking it, per spec §4.7's "look up IdentityProviderLink" step.
func (s *Service) resolveUser(ctx context.Context, realmID uuid.UUID, idp domain.IdentityProvider, info domain.BrokeredUserInfo) (domain.User, error) {
	if link, err := s.idps.GetLinkByExternalID(ctx, idp.ID, info.ExternalID); err == nil {
		return s.users.GetByID(ctx, link.UserID)
	}

	if idp.TrustEmail && info.Email != "" {
		if user, err := s.users.GetByEmail(ctx, realmID, info.Email); err == nil {
			if _, err := s.idps.CreateLink(ctx, domain.IdentityProviderLink{
				IdentityProviderID: idp.ID, UserID: user.ID, ExternalID: info.ExternalID,
			}); err != nil {
				return domain.User{}, core.Internal(err)
			}
			return user, nil
		}
	}

	if idp.LinkOnly {
		return domain.User{}, core.InvalidUser("no local account linked to this identity provider")
	}

	user, err := s.users.Create(ctx, domain.User{
		RealmID:       realmID,
		Username:      info.ExternalID,
		Email:         info.Email,
		EmailVerified: idp.TrustEmail,
		Enabled:       true,
	})
	if err != nil {
		return domain.User{}, core.Internal(err)
	}
	if _, err := s.idps.CreateLink(ctx, domain.IdentityProviderLink{
		IdentityProviderID: idp.ID, UserID: user.ID, ExternalID: info.ExternalID,
	}); err != nil {
		return domain.User{}, core.Internal(err)
	}
	return user, nil
}

func oauthConfigFor(idp domain.IdentityProvider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     idp.Config.ClientID,
		ClientSecret: idp.Config.ClientSecret,
		Scopes:       idp.Config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  idp.Config.AuthorizationURL,
			TokenURL: idp.Config.TokenURL,
		},
	}
}

func fetchUserinfo(ctx context.Context, client *http.Client, idp domain.IdentityProvider, token *oauth2.Token) (domain.BrokeredUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idp.Config.UserInfoURL, nil)
	if err != nil {
		return domain.BrokeredUserInfo{}, err
	}
	token.SetAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return domain.BrokeredUserInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.BrokeredUserInfo{}, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.BrokeredUserInfo{}, err
	}
	return domain.BrokeredUserInfo{ExternalID: payload.Sub, Email: payload.Email, DisplayName: payload.Name}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
