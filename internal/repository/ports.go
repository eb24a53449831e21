// Package repository declares the storage-facing ports every service
// depends on. Concrete Postgres implementations live in
// internal/storage; services depend only on these interfaces so that
// business logic never imports a driver package directly.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/domain"
)

// ErrNotFound is the sentinel every repository implementation returns when
// a lookup finds no row, so service code can branch on it without
// importing a storage driver package.
var ErrNotFound = errors.New("repository: not found")

// RealmRepository persists realms and their per-realm settings.
type RealmRepository interface {
	Create(ctx context.Context, realm domain.Realm) (domain.Realm, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Realm, error)
	GetByName(ctx context.Context, name string) (domain.Realm, error)
	List(ctx context.Context) ([]domain.Realm, error)
	Update(ctx context.Context, realm domain.Realm) (domain.Realm, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ClientRepository persists OAuth2/OIDC clients.
type ClientRepository interface {
	Create(ctx context.Context, client domain.Client) (domain.Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error)
	GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (domain.Client, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Client, error)
	Update(ctx context.Context, client domain.Client) (domain.Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository persists users, including client service accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByUsername(ctx context.Context, realmID uuid.UUID, username string) (domain.User, error)
	GetByEmail(ctx context.Context, realmID uuid.UUID, email string) (domain.User, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RoleRepository persists realm- and client-scoped roles.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) (domain.Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Role, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Role, error)
	AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error
	RemoveFromUser(ctx context.Context, userID, roleID uuid.UUID) error
	Update(ctx context.Context, role domain.Role) (domain.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CredentialRepository persists password/TOTP/WebAuthn/recovery-code
// credentials for a user.
type CredentialRepository interface {
	Create(ctx context.Context, cred domain.Credential) (domain.Credential, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Credential, error)
	ListByUserAndType(ctx context.Context, userID uuid.UUID, kind domain.CredentialType) ([]domain.Credential, error)
	// MarkUsed performs a single-use burn: it succeeds only if the
	// credential's UsedAt was still nil, racing safely against concurrent
	// redemption attempts via a conditional update.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ClientScopeRepository persists client scopes, protocol mappers, and
// client-to-scope bindings.
type ClientScopeRepository interface {
	Create(ctx context.Context, scope domain.ClientScope) (domain.ClientScope, error)
	GetByName(ctx context.Context, realmID uuid.UUID, name string) (domain.ClientScope, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.ClientScope, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.ClientScope, error)
	Bind(ctx context.Context, mapping domain.ClientScopeMapping) error
	AddProtocolMapper(ctx context.Context, mapper domain.ProtocolMapper) (domain.ProtocolMapper, error)
	ListProtocolMappers(ctx context.Context, clientScopeID uuid.UUID) ([]domain.ProtocolMapper, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// KeyStoreRepository persists each realm's RSA signing key, PEM-encoded.
type KeyStoreRepository interface {
	// GetOrGenerate returns the realm's current key, generating and
	// persisting one the first time a realm is used. Concurrent callers
	// racing to create the first key must converge on a single winner.
	GetOrGenerate(ctx context.Context, realmID uuid.UUID, generate func() ([]byte, error)) ([]byte, uuid.UUID, error)
}

// RefreshTokenRepository tracks issued refresh tokens by JTI so they can be
// looked up, rotated, and revoked.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetByJTI(ctx context.Context, jti uuid.UUID) (domain.RefreshToken, error)
	Revoke(ctx context.Context, jti uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, jti uuid.UUID) error
}

// TokenRevoker tracks revoked access-token jtis in between issuance and
// natural expiry. Unlike refresh tokens, access tokens are never persisted,
// so RFC 7009 revocation and password-change invalidation need this side
// channel checked by both the OIDC service and the bearer-auth middleware.
type TokenRevoker interface {
	RevokeToken(jti string, expiresAt time.Time)
	IsRevoked(jti string) bool
}

// AuthSessionRepository persists in-flight authorization-code sessions.
type AuthSessionRepository interface {
	Create(ctx context.Context, session domain.AuthSession) (domain.AuthSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.AuthSession, error)
	GetByCode(ctx context.Context, code string) (domain.AuthSession, error)
	Update(ctx context.Context, session domain.AuthSession) (domain.AuthSession, error)
	// ConsumeCode atomically clears the code so it cannot be redeemed twice.
	ConsumeCode(ctx context.Context, code string, at time.Time) (domain.AuthSession, bool, error)
	// ConsumeMagicToken atomically clears a pending magic-link token,
	// mirroring ConsumeCode's single-use guarantee (spec §4.5 magic_link).
	ConsumeMagicToken(ctx context.Context, token string, at time.Time) (domain.AuthSession, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// IdentityProviderRepository persists configured external identity
// providers and the links resolving their users to local accounts.
type IdentityProviderRepository interface {
	Create(ctx context.Context, idp domain.IdentityProvider) (domain.IdentityProvider, error)
	GetByAlias(ctx context.Context, realmID uuid.UUID, alias string) (domain.IdentityProvider, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.IdentityProvider, error)
	Update(ctx context.Context, idp domain.IdentityProvider) (domain.IdentityProvider, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateLink(ctx context.Context, link domain.IdentityProviderLink) (domain.IdentityProviderLink, error)
	GetLinkByExternalID(ctx context.Context, idpID uuid.UUID, externalID string) (domain.IdentityProviderLink, error)
	DeleteLink(ctx context.Context, id uuid.UUID) error
}

// BrokerAuthSessionRepository persists in-flight external-IdP login
// sessions (spec §4.7 broker state machine).
type BrokerAuthSessionRepository interface {
	Create(ctx context.Context, session domain.BrokerAuthSession) (domain.BrokerAuthSession, error)
	GetByBrokerState(ctx context.Context, state string) (domain.BrokerAuthSession, error)
	Update(ctx context.Context, session domain.BrokerAuthSession) (domain.BrokerAuthSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FederationProviderRepository persists configured federation (e.g. LDAP)
// providers and their sync state.
type FederationProviderRepository interface {
	Create(ctx context.Context, provider domain.FederationProvider) (domain.FederationProvider, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.FederationProvider, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.FederationProvider, error)
	Update(ctx context.Context, provider domain.FederationProvider) (domain.FederationProvider, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SecurityEventRepository persists the audit/event log.
type SecurityEventRepository interface {
	Record(ctx context.Context, event domain.SecurityEvent) error
	ListByRealm(ctx context.Context, realmID uuid.UUID, limit int) ([]domain.SecurityEvent, error)
}

// WebhookRepository persists realm webhook subscriptions.
type WebhookRepository interface {
	Create(ctx context.Context, hook domain.Webhook) (domain.Webhook, error)
	ListByRealmAndEvent(ctx context.Context, realmID uuid.UUID, eventType string) ([]domain.Webhook, error)
	ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Webhook, error)
	Update(ctx context.Context, hook domain.Webhook) (domain.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
