package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rs/zerolog/log"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/ratelimit"
	"github.com/ferriskey/iam/internal/repository"
)

// authCodeTTL is the lifetime of a minted authorization code (spec §4.3).
const authCodeTTL = 60 * time.Second

// magicTokenTTL is the lifetime of a magic-link token, long enough for an
// email round-trip but still bounded (spec §4.5 magic_link).
const magicTokenTTL = 15 * time.Minute

// AuthSessionService drives the browser-facing login state machine of
// spec §4.3: create session -> authenticate -> (required actions)* ->
// issued code -> consumed by the token endpoint.
type AuthSessionService struct {
	realms      repository.RealmRepository
	clients     repository.ClientRepository
	users       repository.UserRepository
	credentials repository.CredentialRepository
	sessions    repository.AuthSessionRepository
	issuerBase  func(realmName string) string
	deliverMagicLink func(ctx context.Context, email, link string) error
	loginLimiter ratelimit.Limiter
}

// WithLoginRateLimiter throttles Authenticate attempts per realm+username;
// MFAService.BurnRecoveryCode consults the same limiter. Without one,
// neither consults a limiter.
func (s *AuthSessionService) WithLoginRateLimiter(limiter ratelimit.Limiter) *AuthSessionService {
	s.loginLimiter = limiter
	return s
}

func NewAuthSessionService(
	realms repository.RealmRepository,
	clients repository.ClientRepository,
	users repository.UserRepository,
	credentials repository.CredentialRepository,
	sessions repository.AuthSessionRepository,
	issuerBase func(realmName string) string,
) *AuthSessionService {
	return &AuthSessionService{
		realms:      realms,
		clients:     clients,
		users:       users,
		credentials: credentials,
		sessions:    sessions,
		issuerBase:  issuerBase,
		deliverMagicLink: func(ctx context.Context, email, link string) error {
			log.Info().Str("email", email).Msg("magic link generated (no email transport configured)")
			return nil
		},
	}
}

// WithMagicLinkSender overrides how generated magic links are delivered;
// the default merely logs, since actual email transport is external to
// the core (spec §4.5 magic_link: "delivered by email (transport is
// external)").
func (s *AuthSessionService) WithMagicLinkSender(fn func(ctx context.Context, email, link string) error) *AuthSessionService {
	s.deliverMagicLink = fn
	return s
}

// CreateSessionInput is the /auth request (spec §4.3 "Create").
type CreateSessionInput struct {
	RealmName    string
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string
}

// CreateSessionResult carries the cookie value and the URL the caller
// should redirect the browser to for the interactive login UI.
type CreateSessionResult struct {
	SessionID uuid.UUID
	LoginURL  string
}

func (s *AuthSessionService) CreateSession(ctx context.Context, in CreateSessionInput) (CreateSessionResult, error) {
	if in.ResponseType != "code" {
		return CreateSessionResult{}, core.InvalidRequest("response_type must be \"code\"")
	}

	realm, err := s.realms.GetByName(ctx, in.RealmName)
	if err != nil {
		return CreateSessionResult{}, core.InvalidRealm("unknown realm")
	}

	client, err := s.clients.GetByClientID(ctx, realm.ID, in.ClientID)
	if err != nil || !client.Enabled {
		return CreateSessionResult{}, core.InvalidClient("unknown or disabled client")
	}

	if !client.MatchesRedirectURI(in.RedirectURI) {
		return CreateSessionResult{}, core.InvalidRequest("redirect_uri is not registered for this client")
	}

	session, err := s.sessions.Create(ctx, domain.AuthSession{
		RealmID:      realm.ID,
		ClientID:     client.ID,
		RedirectURI:  in.RedirectURI,
		ResponseType: in.ResponseType,
		Scope:        in.Scope,
		State:        in.State,
		Nonce:        in.Nonce,
	})
	if err != nil {
		return CreateSessionResult{}, translateRepoErr(err)
	}

	loginURL := fmt.Sprintf("%s/login-actions/authenticate?client_id=%s",
		s.issuerBase(realm.Name), client.ClientID)

	return CreateSessionResult{SessionID: session.ID, LoginURL: loginURL}, nil
}

// AuthenticateResult reports either a set of outstanding required actions
// or a redirect carrying a freshly minted authorization code.
type AuthenticateResult struct {
	RequiresActions bool
	RequiredActions []domain.RequiredAction
	RedirectURL     string
}

// Authenticate verifies username+password against sessionID (spec §4.3
// "Authenticate"). Failure semantics never distinguish unknown user from
// bad password — both return InvalidUser with the same message.
func (s *AuthSessionService) Authenticate(ctx context.Context, sessionID uuid.UUID, username, password string) (AuthenticateResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return AuthenticateResult{}, core.InvalidState("session not found or expired")
	}

	limiterKey := session.RealmID.String() + ":" + username
	if s.loginLimiter != nil {
		allowed, _, resetAt, err := s.loginLimiter.Check(limiterKey)
		if err != nil {
			return AuthenticateResult{}, core.Internal(err)
		}
		if !allowed {
			return AuthenticateResult{}, core.RateLimited(fmt.Sprintf("too many attempts, retry after %s", resetAt.Format(time.RFC3339)))
		}
	}

	user, err := s.users.GetByUsername(ctx, session.RealmID, username)
	if err != nil {
		return AuthenticateResult{}, core.InvalidUser("invalid credentials")
	}
	if !user.Enabled {
		return AuthenticateResult{}, core.InvalidUser("invalid credentials")
	}

	creds, err := s.credentials.ListByUserAndType(ctx, user.ID, domain.CredentialPassword)
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}
	if len(creds) == 0 || credential.VerifyPassword(password, creds[0].SecretData) != nil {
		return AuthenticateResult{}, core.InvalidUser("invalid credentials")
	}

	if s.loginLimiter != nil {
		s.loginLimiter.Clear(limiterKey)
	}

	session.UserID = &user.ID
	if _, err := s.sessions.Update(ctx, session); err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	if user.HasRequiredActions() {
		return AuthenticateResult{RequiresActions: true, RequiredActions: user.RequiredActions}, nil
	}

	return s.issueCode(ctx, session)
}

// CompleteRequiredAction clears ra from userID's pending actions. It only
// accepts action kinds that have no dedicated verification ceremony in this
// repository. It refuses CONFIGURE_OTP and UPDATE_PASSWORD: MFAService
// clears CONFIGURE_OTP after OTP verification or WebAuthn registration, and
// no path in this package clears UPDATE_PASSWORD. Clearing them here would
// let a caller pass the gate without ever satisfying it (spec §3 invariant:
// "a user with a non-empty required_actions set cannot complete token
// issuance").
func (s *AuthSessionService) CompleteRequiredAction(ctx context.Context, sessionID uuid.UUID, ra domain.RequiredAction) (AuthenticateResult, error) {
	switch ra {
	case domain.RequiredActionConfigureOTP, domain.RequiredActionUpdatePassword:
		return AuthenticateResult{}, core.InvalidRequest("this required action has its own completion endpoint")
	}
	return s.clearRequiredAction(ctx, sessionID, ra)
}

// clearRequiredAction is the shared "remove ra, resume the session" mechanics
// used both by CompleteRequiredAction above (for ungated actions) and by
// MFAService (same package) once it has independently verified the factor
// the action demands.
func (s *AuthSessionService) clearRequiredAction(ctx context.Context, sessionID uuid.UUID, ra domain.RequiredAction) (AuthenticateResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return AuthenticateResult{}, core.InvalidState("session not found or expired")
	}
	if session.UserID == nil {
		return AuthenticateResult{}, core.InvalidState("session has not authenticated a user yet")
	}

	user, err := s.users.GetByID(ctx, *session.UserID)
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	user.RequiredActions = domain.RemoveRequiredAction(user.RequiredActions, ra)
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	if updated.HasRequiredActions() {
		return AuthenticateResult{RequiresActions: true, RequiredActions: updated.RequiredActions}, nil
	}
	return s.issueCode(ctx, session)
}

// SendMagicLink generates a single-use token tuple for sessionID's user
// (resolved by email) and delivers a verification link, gated on the
// realm's magic_link_allowed setting (spec §4.5 magic_link).
func (s *AuthSessionService) SendMagicLink(ctx context.Context, sessionID uuid.UUID, email string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return core.InvalidState("session not found or expired")
	}

	realm, err := s.realms.GetByID(ctx, session.RealmID)
	if err != nil {
		return translateRepoErr(err)
	}
	if !realm.Settings.MagicLinkAllowed {
		return core.InvalidRequest("magic link login is not enabled for this realm")
	}

	// Never reveal whether email resolves to an account: always report
	// success, only actually deliver a link when it does.
	user, err := s.users.GetByEmail(ctx, session.RealmID, email)
	if err != nil || !user.Enabled {
		return nil
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return core.Internal(err)
	}
	expiresAt := time.Now().Add(magicTokenTTL)
	session.UserID = &user.ID
	session.MagicToken = &token
	session.MagicTokenExpiresAt = &expiresAt
	if _, err := s.sessions.Update(ctx, session); err != nil {
		return translateRepoErr(err)
	}

	link := fmt.Sprintf("%s/login-actions/verify-magic-link?token=%s",
		s.issuerBase(realm.Name), token)
	return s.deliverMagicLink(ctx, user.Email, link)
}

// VerifyMagicLink consumes a magic-link token and, like Authenticate,
// upgrades the session to either outstanding required actions or an issued
// authorization code (spec §4.5, §4.3 required-action unification).
func (s *AuthSessionService) VerifyMagicLink(ctx context.Context, token string) (AuthenticateResult, error) {
	session, ok, err := s.sessions.ConsumeMagicToken(ctx, token, time.Now())
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}
	if !ok {
		return AuthenticateResult{}, core.InvalidState("invalid or expired magic link")
	}
	if session.UserID == nil {
		return AuthenticateResult{}, core.InvalidState("magic link session has no resolved user")
	}

	user, err := s.users.GetByID(ctx, *session.UserID)
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}
	if user.HasRequiredActions() {
		return AuthenticateResult{RequiresActions: true, RequiredActions: user.RequiredActions}, nil
	}
	return s.issueCode(ctx, session)
}

// IssueCodeForUser mints a fresh session and authorization code for a user
// already resolved by another flow (e.g. the identity broker after a
// successful external-IdP exchange) rather than by password verification.
func (s *AuthSessionService) IssueCodeForUser(ctx context.Context, realmID, clientID, userID uuid.UUID, redirectURI, scope, state string) (string, error) {
	session, err := s.sessions.Create(ctx, domain.AuthSession{
		RealmID:      realmID,
		ClientID:     clientID,
		UserID:       &userID,
		RedirectURI:  redirectURI,
		ResponseType: "code",
		Scope:        scope,
		State:        state,
	})
	if err != nil {
		return "", translateRepoErr(err)
	}

	code, err := generateOpaqueToken()
	if err != nil {
		return "", core.Internal(err)
	}
	expiresAt := time.Now().Add(authCodeTTL)
	session.Code = &code
	session.CodeExpiresAt = &expiresAt
	if _, err := s.sessions.Update(ctx, session); err != nil {
		return "", translateRepoErr(err)
	}
	return code, nil
}

// issueCode mints a single-use authorization code on session and returns
// the redirect URL carrying it (spec §4.3).
func (s *AuthSessionService) issueCode(ctx context.Context, session domain.AuthSession) (AuthenticateResult, error) {
	code, err := generateOpaqueToken()
	if err != nil {
		return AuthenticateResult{}, core.Internal(err)
	}
	expiresAt := time.Now().Add(authCodeTTL)
	session.Code = &code
	session.CodeExpiresAt = &expiresAt

	if _, err := s.sessions.Update(ctx, session); err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	redirectURL := fmt.Sprintf("%s?code=%s&state=%s", session.RedirectURI, code, session.State)
	return AuthenticateResult{RedirectURL: redirectURL}, nil
}
