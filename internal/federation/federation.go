// Package federation syncs users in from external directories. The wire
// protocol of each directory type is hidden behind the Connector port;
// internal/federation/ldap.go is the only concrete implementation.
package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/repository"
)

// Connector abstracts a federated directory's bind/search/sync surface so
// Service never imports a protocol-specific driver directly.
type Connector interface {
	// Bind authenticates against the directory using the provider's
	// configured service credentials.
	Bind(ctx context.Context, provider domain.FederationProvider) error
	// Sync pulls the full set of directory entries that should exist as
	// local users, without persisting anything itself.
	Sync(ctx context.Context, provider domain.FederationProvider) ([]domain.User, error)
}

// Service orchestrates federation providers: registering them and running
// on-demand or scheduled sync passes that upsert users into the realm.
type Service struct {
	providers  repository.FederationProviderRepository
	users      repository.UserRepository
	connectors map[string]Connector
}

func NewService(providers repository.FederationProviderRepository, users repository.UserRepository, connectors map[string]Connector) *Service {
	return &Service{providers: providers, users: users, connectors: connectors}
}

// Sync runs one synchronous sync pass for the given provider: it resolves
// the configured Connector by ProviderType, binds, pulls the remote user
// set, and upserts each by username within the provider's realm.
func (s *Service) Sync(ctx context.Context, provider domain.FederationProvider) (created, updated int, err error) {
	connector, ok := s.connectors[provider.ProviderType]
	if !ok {
		return 0, 0, core.InvalidRequest(fmt.Sprintf("no connector registered for provider type %q", provider.ProviderType))
	}

	if err := connector.Bind(ctx, provider); err != nil {
		s.markFailure(ctx, provider, err)
		return 0, 0, core.BadGateway("federation directory bind failed").Wrap(err)
	}

	remoteUsers, err := connector.Sync(ctx, provider)
	if err != nil {
		s.markFailure(ctx, provider, err)
		return 0, 0, core.BadGateway("federation directory sync failed").Wrap(err)
	}

	for _, ru := range remoteUsers {
		ru.RealmID = provider.RealmID
		if existing, err := s.users.GetByUsername(ctx, provider.RealmID, ru.Username); err == nil {
			existing.Email = ru.Email
			existing.Firstname = ru.Firstname
			existing.Lastname = ru.Lastname
			if _, err := s.users.Update(ctx, existing); err != nil {
				continue
			}
			updated++
			continue
		}
		if _, err := s.users.Create(ctx, ru); err == nil {
			created++
		}
	}

	now := time.Now()
	provider.LastSyncAt = &now
	provider.LastSyncErr = ""
	_, _ = s.providers.Update(ctx, provider)

	return created, updated, nil
}

// SyncByID resolves a provider by ID before running Sync, which is what an
// admin-triggered sync endpoint or scheduled job needs instead of the raw
// domain.FederationProvider Sync takes.
func (s *Service) SyncByID(ctx context.Context, providerID uuid.UUID) (created, updated int, err error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, 0, core.NotFound()
		}
		return 0, 0, core.Internal(err)
	}
	return s.Sync(ctx, provider)
}

func (s *Service) markFailure(ctx context.Context, provider domain.FederationProvider, cause error) {
	now := time.Now()
	provider.LastSyncAt = &now
	provider.LastSyncErr = cause.Error()
	_, _ = s.providers.Update(ctx, provider)
}
