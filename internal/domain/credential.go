package domain

import (
	"time"

	"github.com/google/uuid"
)

// CredentialType enumerates the factor kinds a user may hold. Passwords are
// one-per-user; the others may coexist (spec §3).
type CredentialType string

const (
	CredentialPassword     CredentialType = "password"
	CredentialTOTP         CredentialType = "totp"
	CredentialWebAuthn     CredentialType = "webauthn"
	CredentialRecoveryCode CredentialType = "recovery_code"
)

// Credential is a stored authentication factor for a user.
type Credential struct {
	ID             uuid.UUID              `json:"id"`
	UserID         uuid.UUID              `json:"user_id"`
	Type           CredentialType         `json:"type"`
	SecretData     string                 `json:"-"`
	CredentialData map[string]interface{} `json:"credential_data,omitempty"`
	Salt           string                 `json:"-"`
	Label          string                 `json:"label,omitempty"`
	Temporary      bool                   `json:"temporary"`
	UsedAt         *time.Time             `json:"used_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
