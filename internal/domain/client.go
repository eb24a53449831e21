package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClientType distinguishes clients that must authenticate with a secret from
// those that cannot hold one.
type ClientType string

const (
	ClientConfidential ClientType = "confidential"
	ClientPublic       ClientType = "public"
)

// Client is an OAuth2/OIDC relying party registered within a realm.
type Client struct {
	ID                         uuid.UUID  `json:"id"`
	RealmID                    uuid.UUID  `json:"realm_id"`
	ClientID                   string     `json:"client_id"`
	Secret                     string     `json:"-"`
	PublicClient               bool       `json:"public_client"`
	ServiceAccountEnabled      bool       `json:"service_account_enabled"`
	DirectAccessGrantsEnabled  bool       `json:"direct_access_grants_enabled"`
	ClientType                 ClientType `json:"client_type"`
	Protocol                   string     `json:"protocol"`
	Enabled                    bool       `json:"enabled"`
	RedirectURIs               []string   `json:"redirect_uris"`
	PostLogoutRedirectURIs     []string   `json:"post_logout_redirect_uris"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
}

// IsConfidential reports whether the client must present a client_secret.
func (c Client) IsConfidential() bool {
	return c.ClientType == ClientConfidential && !c.PublicClient
}

// MatchesRedirectURI requires an exact match against one of the client's
// enabled redirect URIs (spec §3 invariant).
func (c Client) MatchesRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// MatchesPostLogoutRedirectURI mirrors MatchesRedirectURI for logout.
func (c Client) MatchesPostLogoutRedirectURI(uri string) bool {
	for _, u := range c.PostLogoutRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// ServiceAccountUsername is the fixed username convention for a client's
// service-account user (spec §3 invariant).
func ServiceAccountUsername(clientID string) string {
	return "service-account-" + clientID
}
