package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/jwtengine"
	"github.com/ferriskey/iam/internal/repository"
	"github.com/ferriskey/iam/internal/webhook"
)

// GrantType enumerates the /token grant_type values the dispatcher
// recognizes (spec §4.5).
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
	GrantMagicLink         GrantType = "magic_link"
)

// TokenResponse is the RFC 6749 §5.1 access token response shape.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// GrantRequest carries every field any grant type might need; unused
// fields for a given grant_type are ignored.
type GrantRequest struct {
	RealmName    string
	GrantType    GrantType
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	Username     string
	Password     string
	RefreshToken string
	Scope        string
}

// GrantService dispatches /token requests to the strategy matching
// GrantRequest.GrantType (spec §4.5).
type GrantService struct {
	realms        repository.RealmRepository
	clients       repository.ClientRepository
	users         repository.UserRepository
	credentials   repository.CredentialRepository
	sessions      repository.AuthSessionRepository
	refreshTokens repository.RefreshTokenRepository
	events        repository.SecurityEventRepository
	notifier      webhook.Notifier
	engine        *jwtengine.Engine
}

func NewGrantService(
	realms repository.RealmRepository,
	clients repository.ClientRepository,
	users repository.UserRepository,
	credentials repository.CredentialRepository,
	sessions repository.AuthSessionRepository,
	refreshTokens repository.RefreshTokenRepository,
	events repository.SecurityEventRepository,
	engine *jwtengine.Engine,
) *GrantService {
	return &GrantService{
		realms:        realms,
		clients:       clients,
		users:         users,
		credentials:   credentials,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		events:        events,
		notifier:      webhook.NoopNotifier{},
		engine:        engine,
	}
}

// WithNotifier swaps the webhook delivery target used for login events.
func (s *GrantService) WithNotifier(n webhook.Notifier) *GrantService {
	s.notifier = n
	return s
}

// Exchange dispatches req to the matching grant strategy.
func (s *GrantService) Exchange(ctx context.Context, req GrantRequest) (TokenResponse, error) {
	realm, err := s.realms.GetByName(ctx, req.RealmName)
	if err != nil {
		return TokenResponse{}, core.InvalidRealm("unknown realm")
	}

	var resp TokenResponse
	var user domain.User
	switch req.GrantType {
	case GrantAuthorizationCode:
		resp, user, err = s.exchangeAuthorizationCode(ctx, realm, req)
	case GrantPassword:
		resp, user, err = s.exchangePassword(ctx, realm, req)
	case GrantRefreshToken:
		resp, user, err = s.exchangeRefreshToken(ctx, realm, req)
	case GrantClientCredentials:
		resp, user, err = s.exchangeClientCredentials(ctx, realm, req)
	default:
		// magic_link never reaches the token endpoint directly: verifying
		// the link (AuthSessionService.VerifyMagicLink) already issues an
		// ordinary authorization code, which is then redeemed through the
		// authorization_code case above (spec §4.5).
		err = core.InvalidRequest("unsupported_grant_type")
	}

	s.emitLoginEvent(ctx, realm.ID, user, err)
	return resp, err
}

// authenticateClient resolves the client by client_id within realm and, for
// confidential clients, verifies the presented secret with a constant-time
// comparison.
func (s *GrantService) authenticateClient(ctx context.Context, realm domain.Realm, clientID, clientSecret string) (domain.Client, error) {
	client, err := s.clients.GetByClientID(ctx, realm.ID, clientID)
	if err != nil || !client.Enabled {
		return domain.Client{}, core.InvalidClient("unknown or disabled client")
	}
	if client.IsConfidential() {
		if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
			return domain.Client{}, core.InvalidClient("invalid_client")
		}
	}
	return client, nil
}

func (s *GrantService) exchangeAuthorizationCode(ctx context.Context, realm domain.Realm, req GrantRequest) (TokenResponse, domain.User, error) {
	session, ok, err := s.sessions.ConsumeCode(ctx, req.Code, time.Now())
	if err != nil {
		return TokenResponse{}, domain.User{}, core.Internal(err)
	}
	if !ok {
		return TokenResponse{}, domain.User{}, core.InvalidRequest("invalid_grant")
	}

	client, err := s.clients.GetByID(ctx, session.ClientID)
	if err != nil {
		return TokenResponse{}, domain.User{}, core.Internal(err)
	}
	if client.ClientID != req.ClientID {
		return TokenResponse{}, domain.User{}, core.InvalidRequest("invalid_grant")
	}
	if client.IsConfidential() && subtle.ConstantTimeCompare([]byte(client.Secret), []byte(req.ClientSecret)) != 1 {
		return TokenResponse{}, domain.User{}, core.InvalidClient("invalid_client")
	}
	if session.UserID == nil {
		return TokenResponse{}, domain.User{}, core.InvalidRequest("invalid_grant")
	}

	user, err := s.users.GetByID(ctx, *session.UserID)
	if err != nil {
		return TokenResponse{}, domain.User{}, translateRepoErr(err)
	}

	resp, err := s.issueTokenSet(ctx, realm, client, user, session.Scope, true)
	return resp, user, err
}

func (s *GrantService) exchangePassword(ctx context.Context, realm domain.Realm, req GrantRequest) (TokenResponse, domain.User, error) {
	client, err := s.authenticateClient(ctx, realm, req.ClientID, req.ClientSecret)
	if err != nil {
		return TokenResponse{}, domain.User{}, err
	}
	if !client.DirectAccessGrantsEnabled {
		return TokenResponse{}, domain.User{}, core.InvalidRequest("unauthorized_client")
	}

	user, err := s.users.GetByUsername(ctx, realm.ID, req.Username)
	if err != nil || !user.Enabled {
		return TokenResponse{}, domain.User{}, core.InvalidUser("invalid_grant")
	}

	creds, err := s.credentials.ListByUserAndType(ctx, user.ID, domain.CredentialPassword)
	if err != nil {
		return TokenResponse{}, user, translateRepoErr(err)
	}
	if len(creds) == 0 || credential.VerifyPassword(req.Password, creds[0].SecretData) != nil {
		return TokenResponse{}, user, core.InvalidUser("invalid_grant")
	}

	if user.HasRequiredActions() {
		return TokenResponse{}, user, core.InvalidRequest("invalid_grant")
	}

	resp, err := s.issueTokenSet(ctx, realm, client, user, req.Scope, true)
	return resp, user, err
}

func (s *GrantService) exchangeRefreshToken(ctx context.Context, realm domain.Realm, req GrantRequest) (TokenResponse, domain.User, error) {
	client, err := s.authenticateClient(ctx, realm, req.ClientID, req.ClientSecret)
	if err != nil {
		return TokenResponse{}, domain.User{}, err
	}

	claims, err := s.engine.Verify(ctx, realm.ID, req.RefreshToken, jwtengine.TokenTypeRefresh)
	if err != nil {
		return TokenResponse{}, domain.User{}, core.InvalidRefreshToken("invalid_grant")
	}

	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return TokenResponse{}, domain.User{}, core.InvalidRefreshToken("invalid_grant")
	}
	record, err := s.refreshTokens.GetByJTI(ctx, jti)
	if err != nil || !record.Valid(time.Now()) {
		return TokenResponse{}, domain.User{}, core.InvalidRefreshToken("invalid_grant")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return TokenResponse{}, domain.User{}, core.InvalidRefreshToken("invalid_grant")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenResponse{}, domain.User{}, translateRepoErr(err)
	}

	// Revoke the presented refresh token before issuing its replacement —
	// rotation is one-shot, never reusable (spec §4.5).
	if err := s.refreshTokens.Revoke(ctx, jti); err != nil {
		return TokenResponse{}, user, translateRepoErr(err)
	}

	resp, err := s.issueTokenSet(ctx, realm, client, user, claims.Scope, true)
	return resp, user, err
}

func (s *GrantService) exchangeClientCredentials(ctx context.Context, realm domain.Realm, req GrantRequest) (TokenResponse, domain.User, error) {
	client, err := s.clients.GetByClientID(ctx, realm.ID, req.ClientID)
	if err != nil || !client.Enabled {
		return TokenResponse{}, domain.User{}, core.InvalidClient("unknown or disabled client")
	}
	if !client.IsConfidential() || !client.ServiceAccountEnabled {
		return TokenResponse{}, domain.User{}, core.InvalidRequest("unauthorized_client")
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(req.ClientSecret)) != 1 {
		return TokenResponse{}, domain.User{}, core.InvalidClient("invalid_client")
	}

	user, err := s.users.GetByUsername(ctx, realm.ID, domain.ServiceAccountUsername(client.ClientID))
	if err != nil {
		return TokenResponse{}, domain.User{}, translateRepoErr(err)
	}

	// client_credentials never issues a refresh token (spec §4.5).
	resp, err := s.issueTokenSet(ctx, realm, client, user, req.Scope, false)
	return resp, user, err
}

// issueTokenSet signs the access/id tokens (and, when withRefresh is true, a
// refresh token persisted by JTI) for user acting through client.
func (s *GrantService) issueTokenSet(ctx context.Context, realm domain.Realm, client domain.Client, user domain.User, scope string, withRefresh bool) (TokenResponse, error) {
	base := jwtengine.Claims{
		Claims: jwt.Claims{
			Subject:  user.ID.String(),
			Audience: jwt.Audience{client.ClientID},
		},
		AuthorizedParty: client.ClientID,
		Email:           user.Email,
		Scope:           scope,
	}

	access, err := s.engine.Sign(ctx, realm.ID, realm.Name, base, jwtengine.TokenTypeAccess, jwtengine.AccessTokenTTL)
	if err != nil {
		return TokenResponse{}, core.Internal(err)
	}

	id, err := s.engine.Sign(ctx, realm.ID, realm.Name, base, jwtengine.TokenTypeID, jwtengine.IDTokenTTL)
	if err != nil {
		return TokenResponse{}, core.Internal(err)
	}

	resp := TokenResponse{
		AccessToken: access.Raw,
		IDToken:     id.Raw,
		ExpiresIn:   int64(jwtengine.AccessTokenTTL.Seconds()),
		TokenType:   "Bearer",
	}

	if withRefresh {
		jti := uuid.New()
		refreshClaims := base
		refreshClaims.ID = jti.String()

		refresh, err := s.engine.Sign(ctx, realm.ID, realm.Name, refreshClaims, jwtengine.TokenTypeRefresh, jwtengine.RefreshTokenTTL)
		if err != nil {
			return TokenResponse{}, core.Internal(err)
		}
		if _, err := s.refreshTokens.Create(ctx, domain.RefreshToken{
			JTI:       jti,
			UserID:    user.ID,
			ExpiresAt: &refresh.ExpiresAt,
		}); err != nil {
			return TokenResponse{}, translateRepoErr(err)
		}
		resp.RefreshToken = refresh.Raw
	}

	return resp, nil
}

// emitLoginEvent records a login_success/login_failure SecurityEvent,
// fire-and-forget (spec §4.5 common post-conditions). The events port is
// optional: a nil port (e.g. in tests) simply skips recording.
func (s *GrantService) emitLoginEvent(ctx context.Context, realmID uuid.UUID, user domain.User, err error) {
	if s.events == nil {
		return
	}
	status := domain.EventLoginSuccess
	if err != nil {
		status = domain.EventLoginFailure
	}
	var actorID *uuid.UUID
	if user.ID != uuid.Nil {
		actorID = &user.ID
	}
	event := domain.SecurityEvent{
		RealmID:   realmID,
		ActorID:   actorID,
		ActorType: "user",
		EventType: status,
		Status:    status,
		Timestamp: time.Now(),
	}
	_ = s.events.Record(ctx, event)
	// Webhook delivery runs off the request path; WithoutCancel keeps it
	// alive after the token response has been written.
	notifyCtx := context.WithoutCancel(ctx)
	go func() { _ = s.notifier.Notify(notifyCtx, event) }()
}
