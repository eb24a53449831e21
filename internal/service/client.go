package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/repository"
)

// ClientService implements the client CRUD aggregate (spec §4.8). A client's
// target realm is always its own RealmID field; cross-realm writes are
// rejected by resolving the realm before the policy check.
type ClientService struct {
	realms  repository.RealmRepository
	clients repository.ClientRepository
	policy  *PolicyEngine
}

func NewClientService(realms repository.RealmRepository, clients repository.ClientRepository, policy *PolicyEngine) *ClientService {
	return &ClientService{realms: realms, clients: clients, policy: policy}
}

func (s *ClientService) resolveRealm(ctx context.Context, realmID uuid.UUID) (domain.Realm, error) {
	realm, err := s.realms.GetByID(ctx, realmID)
	if err != nil {
		if core.KindOf(translateRepoErr(err)) == core.KindNotFound {
			return domain.Realm{}, core.InvalidRealm("realm not found")
		}
		return domain.Realm{}, translateRepoErr(err)
	}
	return realm, nil
}

type CreateClientInput struct {
	RealmID                   uuid.UUID
	ClientID                  string
	Secret                    string
	PublicClient              bool
	ServiceAccountEnabled     bool
	DirectAccessGrantsEnabled bool
	RedirectURIs              []string
	PostLogoutRedirectURIs    []string
}

func (s *ClientService) Create(ctx context.Context, identity domain.Identity, in CreateClientInput) (domain.Client, error) {
	realm, err := s.resolveRealm(ctx, in.RealmID)
	if err != nil {
		return domain.Client{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageClients, policy.CreateClient); err != nil {
		return domain.Client{}, err
	}

	clientType := domain.ClientConfidential
	if in.PublicClient {
		clientType = domain.ClientPublic
	}

	client, err := s.clients.Create(ctx, domain.Client{
		RealmID:                   realm.ID,
		ClientID:                  in.ClientID,
		Secret:                    in.Secret,
		PublicClient:              in.PublicClient,
		ServiceAccountEnabled:     in.ServiceAccountEnabled,
		DirectAccessGrantsEnabled: in.DirectAccessGrantsEnabled,
		ClientType:                clientType,
		Protocol:                  "openid-connect",
		Enabled:                   true,
		RedirectURIs:              in.RedirectURIs,
		PostLogoutRedirectURIs:    in.PostLogoutRedirectURIs,
	})
	if err != nil {
		return domain.Client{}, translateRepoErr(err)
	}
	return client, nil
}

// Get loads a client by ID, enforcing that it belongs to realmID — a
// mismatch returns NotFound rather than leaking the client's true realm.
func (s *ClientService) Get(ctx context.Context, identity domain.Identity, realmID, clientID uuid.UUID) (domain.Client, error) {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return domain.Client{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ViewClients, policy.ManageClients); err != nil {
		return domain.Client{}, err
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return domain.Client{}, translateRepoErr(err)
	}
	if client.RealmID != realm.ID {
		return domain.Client{}, core.NotFound()
	}
	return client, nil
}

func (s *ClientService) List(ctx context.Context, identity domain.Identity, realmID uuid.UUID) ([]domain.Client, error) {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ViewClients, policy.ManageClients); err != nil {
		return nil, err
	}
	clients, err := s.clients.ListByRealm(ctx, realm.ID)
	if err != nil {
		return nil, translateRepoErr(err)
	}
	return clients, nil
}

type UpdateClientInput struct {
	RealmID                   uuid.UUID
	ClientID                  uuid.UUID
	Enabled                   bool
	ServiceAccountEnabled     bool
	DirectAccessGrantsEnabled bool
	RedirectURIs              []string
	PostLogoutRedirectURIs    []string
}

func (s *ClientService) Update(ctx context.Context, identity domain.Identity, in UpdateClientInput) (domain.Client, error) {
	realm, err := s.resolveRealm(ctx, in.RealmID)
	if err != nil {
		return domain.Client{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageClients); err != nil {
		return domain.Client{}, err
	}

	client, err := s.clients.GetByID(ctx, in.ClientID)
	if err != nil {
		return domain.Client{}, translateRepoErr(err)
	}
	if client.RealmID != realm.ID {
		return domain.Client{}, core.NotFound()
	}

	client.Enabled = in.Enabled
	client.ServiceAccountEnabled = in.ServiceAccountEnabled
	client.DirectAccessGrantsEnabled = in.DirectAccessGrantsEnabled
	client.RedirectURIs = in.RedirectURIs
	client.PostLogoutRedirectURIs = in.PostLogoutRedirectURIs

	updated, err := s.clients.Update(ctx, client)
	if err != nil {
		return domain.Client{}, translateRepoErr(err)
	}
	return updated, nil
}

func (s *ClientService) Delete(ctx context.Context, identity domain.Identity, realmID, clientID uuid.UUID) error {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageClients); err != nil {
		return err
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return translateRepoErr(err)
	}
	if client.RealmID != realm.ID {
		return core.NotFound()
	}
	if err := s.clients.Delete(ctx, clientID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}
