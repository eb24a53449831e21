package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdentityProvider is a configured external IdP within a realm (spec §3).
type IdentityProvider struct {
	ID         uuid.UUID              `json:"id"`
	RealmID    uuid.UUID              `json:"realm_id"`
	Alias      string                 `json:"alias"`
	ProviderID string                 `json:"provider_id"`
	Enabled    bool                   `json:"enabled"`
	TrustEmail bool                   `json:"trust_email"`
	LinkOnly   bool                   `json:"link_only"`
	StoreToken bool                   `json:"store_token"`
	Config     IdentityProviderConfig `json:"config"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// IdentityProviderConfig carries the external OAuth2/OIDC endpoint wiring.
type IdentityProviderConfig struct {
	ClientID          string `json:"client_id"`
	ClientSecret      string `json:"client_secret"`
	AuthorizationURL  string `json:"authorization_url"`
	TokenURL          string `json:"token_url"`
	UserInfoURL       string `json:"user_info_url,omitempty"`
	Scopes            []string `json:"scopes,omitempty"`
}

// BrokerAuthSession pins the CSRF/PKCE state for one external-IdP login
// attempt (spec §3, §4.7).
type BrokerAuthSession struct {
	ID                 uuid.UUID  `json:"id"`
	RealmID            uuid.UUID  `json:"realm_id"`
	IdentityProviderID uuid.UUID  `json:"identity_provider_id"`
	ClientID           uuid.UUID  `json:"client_id"`
	RedirectURI        string     `json:"redirect_uri"`
	ResponseType       string     `json:"response_type"`
	Scope              string     `json:"scope,omitempty"`
	State              string     `json:"state,omitempty"`
	Nonce              string     `json:"nonce,omitempty"`
	BrokerState        string     `json:"broker_state"`
	CodeVerifier       string     `json:"-"`
	AuthSessionID      *uuid.UUID `json:"auth_session_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
}

// Expired reports whether the broker session has passed its 10 minute TTL
// (spec §4.7, §5).
func (b BrokerAuthSession) Expired(t time.Time) bool { return t.After(b.ExpiresAt) }

// BrokeredUserInfo is what the broker extracts from the IdP's userinfo
// response after token exchange (spec §4.7).
type BrokeredUserInfo struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// IdentityProviderLink maps a brokered external identity to a local user.
// Named in spec §4.7 without a shape; restored here.
type IdentityProviderLink struct {
	ID                 uuid.UUID `json:"id"`
	IdentityProviderID uuid.UUID `json:"identity_provider_id"`
	UserID             uuid.UUID `json:"user_id"`
	ExternalID         string    `json:"external_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// FederationProvider is a batch user-source (LDAP/Kerberos) directory
// (spec §3).
type FederationProvider struct {
	ID           uuid.UUID              `json:"id"`
	RealmID      uuid.UUID              `json:"realm_id"`
	Name         string                 `json:"name"`
	ProviderType string                 `json:"provider_type"`
	Enabled      bool                   `json:"enabled"`
	Priority     int                    `json:"priority"`
	Config       map[string]interface{} `json:"config"`
	SyncSettings map[string]interface{} `json:"sync_settings"`
	LastSyncAt   *time.Time             `json:"last_sync_at,omitempty"`
	LastSyncErr  string                 `json:"last_sync_error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
