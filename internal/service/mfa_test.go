package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
)

type mfaFixture struct {
	realm     domain.Realm
	userID    uuid.UUID
	sessionID uuid.UUID
	creds     *fakeCredentials
	sessions  *fakeAuthSessions
	authSvc   *AuthSessionService
	mfaSvc    *MFAService
}

// newMFAFixture builds a session already authenticated as a user pending
// the given required actions, mirroring the state Authenticate leaves
// behind once it has verified the password but before the gate clears.
func newMFAFixture(t *testing.T, requiredActions ...domain.RequiredAction) *mfaFixture {
	t.Helper()
	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	realms := newFakeRealms(realm)
	clients := fakeClients{byID: map[uuid.UUID]domain.Client{}}
	userID := uuid.New()
	users := fakeUsers{byID: map[uuid.UUID]domain.User{
		userID: {ID: userID, RealmID: realm.ID, Username: "alice", Email: "alice@example.com", Enabled: true, RequiredActions: requiredActions},
	}}
	creds := newFakeCredentials()
	sessions := newFakeAuthSessions()

	authSvc := NewAuthSessionService(realms, clients, users, creds, sessions, testIssuer)
	mfaSvc := NewMFAService(realms, users, creds, sessions, authSvc, testIssuer)

	session, err := sessions.Create(context.Background(), domain.AuthSession{
		RealmID: realm.ID, ClientID: uuid.New(), RedirectURI: "https://app.example.com/cb",
		ResponseType: "code", State: "xyz", UserID: &userID,
	})
	require.NoError(t, err)

	return &mfaFixture{
		realm: realm, userID: userID, sessionID: session.ID,
		creds: creds, sessions: sessions, authSvc: authSvc, mfaSvc: mfaSvc,
	}
}

func TestMFAService_SetupThenVerifyOTP_ClearsRequiredAction(t *testing.T) {
	fx := newMFAFixture(t, domain.RequiredActionConfigureOTP)

	enrollment, err := fx.mfaSvc.SetupOTP(context.Background(), fx.sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	result, err := fx.mfaSvc.VerifyOTP(context.Background(), fx.sessionID, code)
	require.NoError(t, err)
	assert.False(t, result.RequiresActions)
	assert.Contains(t, result.RedirectURL, "code=")

	creds, err := fx.creds.ListByUserAndType(context.Background(), fx.userID, domain.CredentialTOTP)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestMFAService_VerifyOTP_WrongCode_Fails(t *testing.T) {
	fx := newMFAFixture(t, domain.RequiredActionConfigureOTP)

	_, err := fx.mfaSvc.SetupOTP(context.Background(), fx.sessionID)
	require.NoError(t, err)

	_, err = fx.mfaSvc.VerifyOTP(context.Background(), fx.sessionID, "000000")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidRequest, core.KindOf(err))

	creds, err := fx.creds.ListByUserAndType(context.Background(), fx.userID, domain.CredentialTOTP)
	require.NoError(t, err)
	assert.Empty(t, creds, "a rejected code must never persist a credential")
}

func TestMFAService_VerifyOTP_WithoutSetup_Fails(t *testing.T) {
	fx := newMFAFixture(t, domain.RequiredActionConfigureOTP)

	_, err := fx.mfaSvc.VerifyOTP(context.Background(), fx.sessionID, "123456")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidState, core.KindOf(err))
}

func TestMFAService_ChallengeOTP_WrongCode_Fails(t *testing.T) {
	fx := newMFAFixture(t)
	secret := enrollAndPersistTOTP(t, fx)

	_, err := fx.mfaSvc.ChallengeOTP(context.Background(), fx.sessionID, "000000")
	require.Error(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	result, err := fx.mfaSvc.ChallengeOTP(context.Background(), fx.sessionID, code)
	require.NoError(t, err)
	assert.Contains(t, result.RedirectURL, "code=")
}

func TestMFAService_GenerateRecoveryCodes_ThenBurn_Succeeds(t *testing.T) {
	fx := newMFAFixture(t)

	codes, err := fx.mfaSvc.GenerateRecoveryCodes(context.Background(), fx.sessionID, 5, credential.RecoveryAlphanumeric)
	require.NoError(t, err)
	require.Len(t, codes, 5)

	// BurnRecoveryCode resolves the user independently of any existing
	// session.UserID, mirroring a fresh, not-yet-authenticated session.
	unauthSession, err := fx.sessions.Create(context.Background(), domain.AuthSession{
		RealmID: fx.realm.ID, ClientID: uuid.New(), RedirectURI: "https://app.example.com/cb",
		ResponseType: "code", State: "abc",
	})
	require.NoError(t, err)

	result, err := fx.mfaSvc.BurnRecoveryCode(context.Background(), unauthSession.ID, "alice", codes[2])
	require.NoError(t, err)
	assert.Contains(t, result.RedirectURL, "code=")
}

func TestMFAService_BurnRecoveryCode_SameCodeTwice_SecondFails(t *testing.T) {
	fx := newMFAFixture(t)
	codes, err := fx.mfaSvc.GenerateRecoveryCodes(context.Background(), fx.sessionID, 3, credential.RecoveryNumeric)
	require.NoError(t, err)

	session1, err := fx.sessions.Create(context.Background(), domain.AuthSession{
		RealmID: fx.realm.ID, ClientID: uuid.New(), RedirectURI: "https://app.example.com/cb", ResponseType: "code",
	})
	require.NoError(t, err)
	_, err = fx.mfaSvc.BurnRecoveryCode(context.Background(), session1.ID, "alice", codes[0])
	require.NoError(t, err)

	session2, err := fx.sessions.Create(context.Background(), domain.AuthSession{
		RealmID: fx.realm.ID, ClientID: uuid.New(), RedirectURI: "https://app.example.com/cb", ResponseType: "code",
	})
	require.NoError(t, err)
	_, err = fx.mfaSvc.BurnRecoveryCode(context.Background(), session2.ID, "alice", codes[0])
	require.Error(t, err, "a burned recovery code must not authenticate twice")
}

func TestMFAService_BeginWebAuthnRegistration_ReturnsChallenge(t *testing.T) {
	fx := newMFAFixture(t)

	creation, err := fx.mfaSvc.BeginWebAuthnRegistration(context.Background(), fx.sessionID)
	require.NoError(t, err)
	require.NotNil(t, creation)
	assert.NotEmpty(t, creation.Response.Challenge)
}

func TestMFAService_FinishWebAuthnRegistration_WithoutBegin_Fails(t *testing.T) {
	fx := newMFAFixture(t)

	_, err := fx.mfaSvc.FinishWebAuthnRegistration(context.Background(), fx.sessionID, nil)
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidState, core.KindOf(err))
}

// enrollAndPersistTOTP bypasses SetupOTP/VerifyOTP to seed an already-confirmed
// TOTP credential for ChallengeOTP tests, which exercise an existing factor
// rather than first-time enrollment.
func enrollAndPersistTOTP(t *testing.T, fx *mfaFixture) string {
	t.Helper()
	enrollment, err := credential.EnrollTOTP(fx.realm.Name, "alice@example.com")
	require.NoError(t, err)
	_, err = fx.creds.Create(context.Background(), domain.Credential{
		UserID: fx.userID, Type: domain.CredentialTOTP, SecretData: enrollment.Secret,
	})
	require.NoError(t, err)
	return enrollment.Secret
}
