package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/repository"
)

// RealmService implements the realm CRUD aggregate (spec §4.8): resolve
// target realm, run the policy check, perform the repository call.
type RealmService struct {
	realms   repository.RealmRepository
	policy   *PolicyEngine
}

func NewRealmService(realms repository.RealmRepository, policy *PolicyEngine) *RealmService {
	return &RealmService{realms: realms, policy: policy}
}

// CreateRealmInput describes a new realm. Only master-realm users holding
// ManageRealm may create realms (there is no "target realm" yet, so the
// check runs against the master realm itself).
type CreateRealmInput struct {
	Name     string
	Settings domain.RealmSettings
}

func (s *RealmService) Create(ctx context.Context, identity domain.Identity, in CreateRealmInput) (domain.Realm, error) {
	master, err := s.realms.GetByName(ctx, domain.MasterRealmName)
	if err != nil {
		return domain.Realm{}, translateRepoErr(err)
	}
	if err := s.policy.Require(ctx, identity, master, policy.ManageRealm); err != nil {
		return domain.Realm{}, err
	}

	settings := in.Settings
	if settings == (domain.RealmSettings{}) {
		settings = domain.DefaultRealmSettings()
	}

	realm, err := s.realms.Create(ctx, domain.Realm{Name: in.Name, Settings: settings})
	if err != nil {
		return domain.Realm{}, translateRepoErr(err)
	}
	return realm, nil
}

func (s *RealmService) Get(ctx context.Context, identity domain.Identity, realmID uuid.UUID) (domain.Realm, error) {
	realm, err := s.realms.GetByID(ctx, realmID)
	if err != nil {
		return domain.Realm{}, translateRepoErr(err)
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ViewRealm, policy.ManageRealm); err != nil {
		return domain.Realm{}, err
	}
	return realm, nil
}

// List returns every realm the identity is permitted to view. Unlike the
// other operations it has no single target realm, so it filters per-realm
// rather than running one policy check.
func (s *RealmService) List(ctx context.Context, identity domain.Identity) ([]domain.Realm, error) {
	realms, err := s.realms.List(ctx)
	if err != nil {
		return nil, translateRepoErr(err)
	}

	visible := make([]domain.Realm, 0, len(realms))
	for _, realm := range realms {
		ok, err := s.policy.CanOneOf(ctx, identity, realm, policy.ViewRealm, policy.ManageRealm)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, realm)
		}
	}
	return visible, nil
}

type UpdateRealmInput struct {
	RealmID  uuid.UUID
	Settings domain.RealmSettings
}

func (s *RealmService) Update(ctx context.Context, identity domain.Identity, in UpdateRealmInput) (domain.Realm, error) {
	realm, err := s.realms.GetByID(ctx, in.RealmID)
	if err != nil {
		return domain.Realm{}, translateRepoErr(err)
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageRealm); err != nil {
		return domain.Realm{}, err
	}

	realm.Settings = in.Settings
	updated, err := s.realms.Update(ctx, realm)
	if err != nil {
		return domain.Realm{}, translateRepoErr(err)
	}
	return updated, nil
}

// Delete removes a realm. The master realm is immutable and can never be
// deleted, regardless of the caller's permissions.
func (s *RealmService) Delete(ctx context.Context, identity domain.Identity, realmID uuid.UUID) error {
	realm, err := s.realms.GetByID(ctx, realmID)
	if err != nil {
		return translateRepoErr(err)
	}
	if realm.IsMaster() {
		return core.InvalidRequest("the master realm cannot be deleted")
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageRealm); err != nil {
		return err
	}
	if err := s.realms.Delete(ctx, realmID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}
