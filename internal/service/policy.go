// Package service implements the IAM business logic: identity resolution,
// permission aggregation, realm/client/user management, the OAuth2/OIDC
// grant dispatcher, and MFA orchestration. Each service depends only on
// internal/repository ports, never on internal/storage directly.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/repository"
)

// translateRepoErr maps a repository-layer failure to the unified error
// taxonomy: a missing row becomes core.NotFound, anything else is internal.
func translateRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return core.NotFound()
	}
	return core.Internal(err)
}

// PolicyEngine resolves an Identity to its effective permission Set "as
// seen from" a target realm, mirroring Keycloak's cross-realm admin model:
// a user's own-realm roles always apply, and any role bound to a client
// named "{target_realm.name}-realm" grants that user permissions over the
// target realm regardless of which realm the user actually lives in.
type PolicyEngine struct {
	users   repository.UserRepository
	clients repository.ClientRepository
	roles   repository.RoleRepository
}

// NewPolicyEngine builds a PolicyEngine.
func NewPolicyEngine(users repository.UserRepository, clients repository.ClientRepository, roles repository.RoleRepository) *PolicyEngine {
	return &PolicyEngine{users: users, clients: clients, roles: roles}
}

// ResolveIdentity loads the domain.User behind an Identity. Client
// (service-account) identities resolve to their service-account user.
func (p *PolicyEngine) ResolveIdentity(ctx context.Context, identity domain.Identity) (domain.User, error) {
	switch identity.Kind {
	case domain.IdentityUser:
		user, err := p.users.GetByID(ctx, identity.UserID)
		if err != nil {
			return domain.User{}, translateRepoErr(err)
		}
		return user, nil
	case domain.IdentityClient:
		client, err := p.clients.GetByID(ctx, identity.ClientID)
		if err != nil {
			return domain.User{}, translateRepoErr(err)
		}
		user, err := p.users.GetByUsername(ctx, client.RealmID, domain.ServiceAccountUsername(client.ClientID))
		if err != nil {
			return domain.User{}, translateRepoErr(err)
		}
		return user, nil
	default:
		return domain.User{}, core.InvalidRequest("unknown identity kind")
	}
}

// PermissionsForRealm aggregates user's effective permission Set as seen
// from targetRealm: every realm-scoped role the user holds in their own
// realm if it is targetRealm, plus every role bound to the
// "{targetRealm.Name}-realm" client regardless of the user's home realm.
func (p *PolicyEngine) PermissionsForRealm(ctx context.Context, user domain.User, targetRealm domain.Realm) (policy.Set, error) {
	roles, err := p.roles.ListByUser(ctx, user.ID)
	if err != nil {
		return 0, translateRepoErr(err)
	}

	scopeClientName := domain.RealmClientScopeName(targetRealm.Name)
	clientNames := make(map[uuid.UUID]string)

	var set policy.Set
	for _, role := range roles {
		if role.ClientID == nil {
			if user.RealmID == targetRealm.ID {
				set = set.Union(role.Permissions)
			}
			continue
		}

		name, ok := clientNames[*role.ClientID]
		if !ok {
			client, err := p.clients.GetByID(ctx, *role.ClientID)
			if err != nil {
				return 0, translateRepoErr(err)
			}
			name = client.ClientID
			clientNames[*role.ClientID] = name
		}
		if name == scopeClientName {
			set = set.Union(role.Permissions)
		}
	}
	return set, nil
}

// CanOneOf reports whether identity holds at least one of want over
// targetRealm.
func (p *PolicyEngine) CanOneOf(ctx context.Context, identity domain.Identity, targetRealm domain.Realm, want ...policy.Permission) (bool, error) {
	user, err := p.ResolveIdentity(ctx, identity)
	if err != nil {
		return false, err
	}
	set, err := p.PermissionsForRealm(ctx, user, targetRealm)
	if err != nil {
		return false, err
	}
	return set.HasOneOf(want...), nil
}

// Require returns core.Forbidden if identity lacks any of want over
// targetRealm; callers use it at the top of a service operation.
func (p *PolicyEngine) Require(ctx context.Context, identity domain.Identity, targetRealm domain.Realm, want ...policy.Permission) error {
	ok, err := p.CanOneOf(ctx, identity, targetRealm, want...)
	if err != nil {
		return err
	}
	if !ok {
		return core.Forbidden("insufficient permissions")
	}
	return nil
}
