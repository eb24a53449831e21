// Package domain holds the plain data types shared across the IAM core:
// realms, clients, users, credentials, roles, sessions and the federation
// aggregates. Types here carry json tags matching their wire DTOs, the same
// way the teacher's storage layer shapes its row structs.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MasterRealmName is the immutable, undeletable bootstrap realm.
const MasterRealmName = "master"

// RealmSettings holds the per-realm toggles spec §3 names.
type RealmSettings struct {
	DefaultSigningAlgorithm string `json:"default_signing_algorithm"`
	RegistrationAllowed     bool   `json:"registration_allowed"`
	ForgotPasswordAllowed   bool   `json:"forgot_password_allowed"`
	RememberMeAllowed       bool   `json:"remember_me_allowed"`
	MagicLinkAllowed        bool   `json:"magic_link_allowed"`
}

// DefaultRealmSettings mirrors the defaults a freshly created realm gets.
func DefaultRealmSettings() RealmSettings {
	return RealmSettings{
		DefaultSigningAlgorithm: "RS256",
		RegistrationAllowed:     false,
		ForgotPasswordAllowed:   false,
		RememberMeAllowed:       false,
		MagicLinkAllowed:        false,
	}
}

// Realm is the isolation tenant. name="master" is immutable and undeletable.
type Realm struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Settings  RealmSettings `json:"settings"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsMaster reports whether r is the immutable bootstrap realm.
func (r Realm) IsMaster() bool { return r.Name == MasterRealmName }

// RealmClientScopeName is the naming convention for the client-scoped role
// namespace used by the policy engine when resolving a user's effective
// permissions "as seen from the target realm" (spec §4.4 step 3).
func RealmClientScopeName(realmName string) string {
	return realmName + "-realm"
}
