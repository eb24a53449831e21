package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthSession is the browser-side state of an in-progress login, keyed by
// the SESSION cookie UUID (spec §3, §4.3).
type AuthSession struct {
	ID             uuid.UUID  `json:"id"`
	RealmID        uuid.UUID  `json:"realm_id"`
	ClientID       uuid.UUID  `json:"client_id"`
	RedirectURI    string     `json:"redirect_uri"`
	ResponseType   string     `json:"response_type"`
	Scope          string     `json:"scope,omitempty"`
	State          string     `json:"state,omitempty"`
	Nonce          string     `json:"nonce,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Code           *string    `json:"-"`
	CodeExpiresAt  *time.Time `json:"-"`
	MagicToken     *string    `json:"-"`
	MagicTokenExpiresAt *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CodeValid reports whether the session's authorization code is present and
// unexpired at t (spec §3 invariant: single-use, 60s lifetime from §4.3).
func (s AuthSession) CodeValid(t time.Time) bool {
	return s.Code != nil && s.CodeExpiresAt != nil && !t.After(*s.CodeExpiresAt)
}

// RefreshToken tracks a single issued refresh token by its JTI. Presence of
// a non-revoked, non-expired record is the sole validity criterion
// (spec §3).
type RefreshToken struct {
	JTI       uuid.UUID  `json:"jti"`
	UserID    uuid.UUID  `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"created_at"`
}

// Valid reports whether the refresh token record is usable at time t.
func (r RefreshToken) Valid(t time.Time) bool {
	if r.Revoked {
		return false
	}
	if r.ExpiresAt != nil && t.After(*r.ExpiresAt) {
		return false
	}
	return true
}
