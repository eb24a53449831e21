package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// ErrWebAuthnCeremony wraps a failure from the underlying ceremony library.
var ErrWebAuthnCeremony = errors.New("credential: webauthn ceremony failed")

// RelyingPartyInfo configures the WebAuthn relying party for a realm (spec
// §4.2 MFA). Each realm is its own RP since WebAuthn origins are
// realm-scoped in a multi-tenant deployment.
type RelyingPartyInfo struct {
	DisplayName    string
	RPID           string
	AllowedOrigins []string
}

// WebAuthnUser adapts a domain user (plus already-registered credentials)
// to the webauthn.User interface required by the ceremony library.
type WebAuthnUser struct {
	ID          uuid.UUID
	Username    string
	DisplayName string
	Credentials []webauthn.Credential
}

func (u WebAuthnUser) WebAuthnID() []byte                         { return u.ID[:] }
func (u WebAuthnUser) WebAuthnName() string                       { return u.Username }
func (u WebAuthnUser) WebAuthnDisplayName() string                { return u.DisplayName }
func (u WebAuthnUser) WebAuthnCredentials() []webauthn.Credential { return u.Credentials }
func (u WebAuthnUser) WebAuthnIcon() string                       { return "" }

// NewRelyingParty builds a *webauthn.WebAuthn for a single realm.
func NewRelyingParty(info RelyingPartyInfo) (*webauthn.WebAuthn, error) {
	config := &webauthn.Config{
		RPDisplayName: info.DisplayName,
		RPID:          info.RPID,
		RPOrigins:     info.AllowedOrigins,
	}
	instance, err := webauthn.New(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	return instance, nil
}

// BeginRegistration starts a WebAuthn registration ceremony for user against
// rp, returning the challenge to send to navigator.credentials.create and the
// session state the caller must hold until FinishRegistration.
func BeginRegistration(rp *webauthn.WebAuthn, user WebAuthnUser) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	creation, session, err := rp.BeginRegistration(user)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	return creation, session, nil
}

// FinishRegistration validates the browser's attestation response against
// the session BeginRegistration produced and returns the credential to
// persist.
func FinishRegistration(rp *webauthn.WebAuthn, user WebAuthnUser, session webauthn.SessionData, parsed *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	cred, err := rp.CreateCredential(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	return cred, nil
}

// MarshalCredentialData serializes a registered webauthn.Credential for
// storage in Credential.CredentialData.
func MarshalCredentialData(cred *webauthn.Credential) (map[string]interface{}, error) {
	raw, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	return out, nil
}

// UnmarshalCredentialData reconstructs a webauthn.Credential from persisted
// CredentialData for use during authentication ceremonies.
func UnmarshalCredentialData(data map[string]interface{}) (webauthn.Credential, error) {
	var cred webauthn.Credential
	raw, err := json.Marshal(data)
	if err != nil {
		return cred, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	if err := json.Unmarshal(raw, &cred); err != nil {
		return cred, fmt.Errorf("%w: %v", ErrWebAuthnCeremony, err)
	}
	return cred, nil
}
