package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/repository"
)

// otpEnrollmentTTL bounds how long a freshly generated, not-yet-confirmed
// TOTP secret is held pending VerifyOTP before SetupOTP must be called again.
const otpEnrollmentTTL = 10 * time.Minute

// webauthnCeremonyTTL bounds how long a WebAuthn registration challenge
// survives between BeginWebAuthnRegistration and FinishWebAuthnRegistration.
const webauthnCeremonyTTL = 5 * time.Minute

type pendingOTPEnrollment struct {
	secret    string
	expiresAt time.Time
}

type pendingWebAuthnCeremony struct {
	data      webauthn.SessionData
	expiresAt time.Time
}

// MFAService drives the credential ceremonies that gate required-action
// completion: TOTP enrollment and verification, recovery-code generation and
// burn, and WebAuthn registration (spec §4.2, §4.3 "Required-action
// completion"). Unlike the other aggregates this has no PolicyEngine check —
// like AuthSessionService it authorizes purely off the session cookie, since
// it runs mid-login before the caller holds a bearer token.
type MFAService struct {
	realms      repository.RealmRepository
	users       repository.UserRepository
	credentials repository.CredentialRepository
	sessions    repository.AuthSessionRepository
	authSession *AuthSessionService
	issuerBase  func(realmName string) string
	argon2      credential.Argon2Params

	mu              sync.Mutex
	pendingOTP      map[uuid.UUID]pendingOTPEnrollment
	pendingWebAuthn map[uuid.UUID]pendingWebAuthnCeremony
}

func NewMFAService(
	realms repository.RealmRepository,
	users repository.UserRepository,
	credentials repository.CredentialRepository,
	sessions repository.AuthSessionRepository,
	authSession *AuthSessionService,
	issuerBase func(realmName string) string,
) *MFAService {
	return &MFAService{
		realms:          realms,
		users:           users,
		credentials:     credentials,
		sessions:        sessions,
		authSession:     authSession,
		issuerBase:      issuerBase,
		argon2:          credential.DefaultArgon2Params(),
		pendingOTP:      make(map[uuid.UUID]pendingOTPEnrollment),
		pendingWebAuthn: make(map[uuid.UUID]pendingWebAuthnCeremony),
	}
}

func (s *MFAService) resolveSessionUser(ctx context.Context, sessionID uuid.UUID) (domain.AuthSession, domain.Realm, domain.User, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.AuthSession{}, domain.Realm{}, domain.User{}, core.InvalidState("session not found or expired")
	}
	if session.UserID == nil {
		return domain.AuthSession{}, domain.Realm{}, domain.User{}, core.InvalidState("session has not authenticated a user yet")
	}
	realm, err := s.realms.GetByID(ctx, session.RealmID)
	if err != nil {
		return domain.AuthSession{}, domain.Realm{}, domain.User{}, translateRepoErr(err)
	}
	user, err := s.users.GetByID(ctx, *session.UserID)
	if err != nil {
		return domain.AuthSession{}, domain.Realm{}, domain.User{}, translateRepoErr(err)
	}
	return session, realm, user, nil
}

// SetupOTP starts CONFIGURE_OTP enrollment: it generates a fresh secret for
// the session's user and holds it pending, uncommitted, until VerifyOTP
// proves the user actually captured it (spec §4.2 "TOTP").
func (s *MFAService) SetupOTP(ctx context.Context, sessionID uuid.UUID) (credential.TOTPEnrollment, error) {
	_, realm, user, err := s.resolveSessionUser(ctx, sessionID)
	if err != nil {
		return credential.TOTPEnrollment{}, err
	}

	enrollment, err := credential.EnrollTOTP(realm.Name, user.Email)
	if err != nil {
		return credential.TOTPEnrollment{}, core.Internal(err)
	}

	s.mu.Lock()
	s.pendingOTP[sessionID] = pendingOTPEnrollment{secret: enrollment.Secret, expiresAt: time.Now().Add(otpEnrollmentTTL)}
	s.mu.Unlock()

	return enrollment, nil
}

// VerifyOTP completes CONFIGURE_OTP: it checks code against the secret
// SetupOTP generated for this session, and only on a match persists the TOTP
// credential and clears the required action (spec §3 invariant, testable
// property 8 — no path may clear CONFIGURE_OTP without this check passing).
func (s *MFAService) VerifyOTP(ctx context.Context, sessionID uuid.UUID, code string) (AuthenticateResult, error) {
	s.mu.Lock()
	pending, ok := s.pendingOTP[sessionID]
	if ok && time.Now().After(pending.expiresAt) {
		delete(s.pendingOTP, sessionID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return AuthenticateResult{}, core.InvalidState("no pending OTP enrollment for this session, call setup-otp first")
	}

	_, _, user, err := s.resolveSessionUser(ctx, sessionID)
	if err != nil {
		return AuthenticateResult{}, err
	}
	if !credential.VerifyTOTP(code, pending.secret, time.Now()) {
		return AuthenticateResult{}, core.InvalidRequest("invalid or expired code")
	}

	if _, err := s.credentials.Create(ctx, domain.Credential{
		UserID:     user.ID,
		Type:       domain.CredentialTOTP,
		SecretData: pending.secret,
	}); err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	s.mu.Lock()
	delete(s.pendingOTP, sessionID)
	s.mu.Unlock()

	return s.authSession.clearRequiredAction(ctx, sessionID, domain.RequiredActionConfigureOTP)
}

// ChallengeOTP re-verifies an already-enrolled TOTP factor — used when a user
// who previously completed CONFIGURE_OTP must prove possession again (e.g. a
// broker-linked or magic-link session that still wants a second factor),
// as opposed to VerifyOTP's one-time enrollment confirmation.
func (s *MFAService) ChallengeOTP(ctx context.Context, sessionID uuid.UUID, code string) (AuthenticateResult, error) {
	session, _, user, err := s.resolveSessionUser(ctx, sessionID)
	if err != nil {
		return AuthenticateResult{}, err
	}

	creds, err := s.credentials.ListByUserAndType(ctx, user.ID, domain.CredentialTOTP)
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}
	if len(creds) == 0 || !credential.VerifyTOTP(code, creds[0].SecretData, time.Now()) {
		return AuthenticateResult{}, core.InvalidRequest("invalid or expired code")
	}

	if user.HasRequiredActions() {
		return AuthenticateResult{RequiresActions: true, RequiredActions: user.RequiredActions}, nil
	}
	return s.authSession.issueCode(ctx, session)
}

// GenerateRecoveryCodes mints n single-use codes for the session's user,
// hashes and persists each (never the plaintext), and returns the plaintext
// set exactly once for display (spec §4.2 "Recovery codes").
func (s *MFAService) GenerateRecoveryCodes(ctx context.Context, sessionID uuid.UUID, n int, format credential.RecoveryCodeFormat) ([]string, error) {
	_, _, user, err := s.resolveSessionUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	codes, err := credential.GenerateRecoveryCodes(n, format)
	if err != nil {
		return nil, core.Internal(err)
	}

	for _, code := range codes {
		hash, err := credential.HashPassword(code, s.argon2)
		if err != nil {
			return nil, core.Internal(err)
		}
		if _, err := s.credentials.Create(ctx, domain.Credential{
			UserID:     user.ID,
			Type:       domain.CredentialRecoveryCode,
			SecretData: hash,
		}); err != nil {
			return nil, translateRepoErr(err)
		}
	}

	return codes, nil
}

// BurnRecoveryCode authenticates sessionID's user with a recovery code
// instead of a password: it resolves the user by username (mirroring
// Authenticate), tries code against every unused recovery-code credential,
// and on the first match burns it via the repository's race-safe
// conditional update. A successful burn upgrades the session exactly like a
// successful password check (spec §4.2: "a successful burn upgrades that
// session to authenticated").
func (s *MFAService) BurnRecoveryCode(ctx context.Context, sessionID uuid.UUID, username, code string) (AuthenticateResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return AuthenticateResult{}, core.InvalidState("session not found or expired")
	}

	limiterKey := session.RealmID.String() + ":" + username
	if s.authSession.loginLimiter != nil {
		allowed, _, resetAt, err := s.authSession.loginLimiter.Check(limiterKey)
		if err != nil {
			return AuthenticateResult{}, core.Internal(err)
		}
		if !allowed {
			return AuthenticateResult{}, core.RateLimited(fmt.Sprintf("too many attempts, retry after %s", resetAt.Format(time.RFC3339)))
		}
	}

	user, err := s.users.GetByUsername(ctx, session.RealmID, username)
	if err != nil || !user.Enabled {
		return AuthenticateResult{}, core.InvalidUser("invalid credentials")
	}

	creds, err := s.credentials.ListByUserAndType(ctx, user.ID, domain.CredentialRecoveryCode)
	if err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	for _, c := range creds {
		if c.UsedAt != nil {
			continue
		}
		if err := credential.VerifyRecoveryCode(code, c.SecretData); err != nil {
			continue
		}
		burned, err := s.credentials.MarkUsed(ctx, c.ID, time.Now())
		if err != nil {
			return AuthenticateResult{}, translateRepoErr(err)
		}
		if !burned {
			// Another request burned it first; treat as an invalid code
			// rather than let the same code authenticate twice.
			continue
		}

		if s.authSession.loginLimiter != nil {
			s.authSession.loginLimiter.Clear(limiterKey)
		}

		session.UserID = &user.ID
		if _, err := s.sessions.Update(ctx, session); err != nil {
			return AuthenticateResult{}, translateRepoErr(err)
		}
		if user.HasRequiredActions() {
			return AuthenticateResult{RequiresActions: true, RequiredActions: user.RequiredActions}, nil
		}
		return s.authSession.issueCode(ctx, session)
	}

	return AuthenticateResult{}, core.InvalidUser("invalid credentials")
}

func (s *MFAService) relyingParty(realm domain.Realm) (*webauthn.WebAuthn, error) {
	origin := s.issuerBase(realm.Name)
	parsed, err := url.Parse(origin)
	if err != nil {
		return nil, core.Internal(fmt.Errorf("parse issuer origin: %w", err))
	}
	rp, err := credential.NewRelyingParty(credential.RelyingPartyInfo{
		DisplayName:    realm.Name,
		RPID:           parsed.Hostname(),
		AllowedOrigins: []string{parsed.Scheme + "://" + parsed.Host},
	})
	if err != nil {
		return nil, core.Internal(err)
	}
	return rp, nil
}

func (s *MFAService) webAuthnUser(ctx context.Context, user domain.User) (credential.WebAuthnUser, error) {
	creds, err := s.credentials.ListByUserAndType(ctx, user.ID, domain.CredentialWebAuthn)
	if err != nil {
		return credential.WebAuthnUser{}, translateRepoErr(err)
	}
	registered := make([]webauthn.Credential, 0, len(creds))
	for _, c := range creds {
		wc, err := credential.UnmarshalCredentialData(c.CredentialData)
		if err != nil {
			return credential.WebAuthnUser{}, core.Internal(err)
		}
		registered = append(registered, wc)
	}
	return credential.WebAuthnUser{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.Firstname + " " + user.Lastname,
		Credentials: registered,
	}, nil
}

// BeginWebAuthnRegistration starts the registration ceremony for the
// session's user, returning the challenge to hand to navigator.credentials.create
// (spec §4.2 "WebAuthn").
func (s *MFAService) BeginWebAuthnRegistration(ctx context.Context, sessionID uuid.UUID) (*protocol.CredentialCreation, error) {
	_, realm, user, err := s.resolveSessionUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rp, err := s.relyingParty(realm)
	if err != nil {
		return nil, err
	}
	waUser, err := s.webAuthnUser(ctx, user)
	if err != nil {
		return nil, err
	}

	creation, sessionData, err := credential.BeginRegistration(rp, waUser)
	if err != nil {
		return nil, core.Internal(err)
	}

	s.mu.Lock()
	s.pendingWebAuthn[sessionID] = pendingWebAuthnCeremony{data: *sessionData, expiresAt: time.Now().Add(webauthnCeremonyTTL)}
	s.mu.Unlock()

	return creation, nil
}

// FinishWebAuthnRegistration completes the ceremony BeginWebAuthnRegistration
// started: parsed must carry the browser's parsed attestation response. Only
// on a successful attestation check is the credential persisted and
// CONFIGURE_OTP cleared from the user's pending actions (a no-op when it was
// not pending) — WebAuthn registration is also offered as a standalone
// self-service action, not only as a required-action ceremony.
func (s *MFAService) FinishWebAuthnRegistration(ctx context.Context, sessionID uuid.UUID, parsed *protocol.ParsedCredentialCreationData) (AuthenticateResult, error) {
	s.mu.Lock()
	pending, ok := s.pendingWebAuthn[sessionID]
	if ok && time.Now().After(pending.expiresAt) {
		delete(s.pendingWebAuthn, sessionID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return AuthenticateResult{}, core.InvalidState("no pending WebAuthn ceremony for this session, call webauthn-public-key-create first")
	}

	_, realm, user, err := s.resolveSessionUser(ctx, sessionID)
	if err != nil {
		return AuthenticateResult{}, err
	}

	rp, err := s.relyingParty(realm)
	if err != nil {
		return AuthenticateResult{}, err
	}
	waUser, err := s.webAuthnUser(ctx, user)
	if err != nil {
		return AuthenticateResult{}, err
	}

	cred, err := credential.FinishRegistration(rp, waUser, pending.data, parsed)
	if err != nil {
		return AuthenticateResult{}, core.InvalidRequest("webauthn registration failed: " + err.Error())
	}

	data, err := credential.MarshalCredentialData(cred)
	if err != nil {
		return AuthenticateResult{}, core.Internal(err)
	}
	if _, err := s.credentials.Create(ctx, domain.Credential{
		UserID:         user.ID,
		Type:           domain.CredentialWebAuthn,
		CredentialData: data,
	}); err != nil {
		return AuthenticateResult{}, translateRepoErr(err)
	}

	s.mu.Lock()
	delete(s.pendingWebAuthn, sessionID)
	s.mu.Unlock()

	// WebAuthn registration satisfies the same "configure a second factor"
	// gate as TOTP enrollment; clearRequiredAction is a harmless no-op if
	// CONFIGURE_OTP was never pending (e.g. this was a standalone
	// self-service registration outside the required-action flow) and
	// correctly resumes the session either way.
	return s.authSession.clearRequiredAction(ctx, sessionID, domain.RequiredActionConfigureOTP)
}
