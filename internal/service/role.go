package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/repository"
)

// RoleService implements the role CRUD aggregate (spec §4.8), including
// assignment, the mechanism that actually grants permissions to users.
type RoleService struct {
	realms repository.RealmRepository
	roles  repository.RoleRepository
	users  repository.UserRepository
	policy *PolicyEngine
}

func NewRoleService(
	realms repository.RealmRepository,
	roles repository.RoleRepository,
	users repository.UserRepository,
	policy *PolicyEngine,
) *RoleService {
	return &RoleService{realms: realms, roles: roles, users: users, policy: policy}
}

func (s *RoleService) resolveRealm(ctx context.Context, realmID uuid.UUID) (domain.Realm, error) {
	realm, err := s.realms.GetByID(ctx, realmID)
	if err != nil {
		if core.KindOf(translateRepoErr(err)) == core.KindNotFound {
			return domain.Realm{}, core.InvalidRealm("realm not found")
		}
		return domain.Realm{}, translateRepoErr(err)
	}
	return realm, nil
}

type CreateRoleInput struct {
	RealmID     uuid.UUID
	ClientID    *uuid.UUID
	Name        string
	Description string
	Permissions []string
}

func (s *RoleService) Create(ctx context.Context, identity domain.Identity, in CreateRoleInput) (domain.Role, error) {
	realm, err := s.resolveRealm(ctx, in.RealmID)
	if err != nil {
		return domain.Role{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageAuthorization, policy.ManageRealm); err != nil {
		return domain.Role{}, err
	}

	role, err := s.roles.Create(ctx, domain.Role{
		RealmID:     realm.ID,
		ClientID:    in.ClientID,
		Name:        in.Name,
		Description: in.Description,
		Permissions: policy.FromNames(in.Permissions),
	})
	if err != nil {
		return domain.Role{}, translateRepoErr(err)
	}
	return role, nil
}

func (s *RoleService) List(ctx context.Context, identity domain.Identity, realmID uuid.UUID) ([]domain.Role, error) {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ViewAuthorization, policy.ManageAuthorization, policy.ManageRealm); err != nil {
		return nil, err
	}
	roles, err := s.roles.ListByRealm(ctx, realm.ID)
	if err != nil {
		return nil, translateRepoErr(err)
	}
	return roles, nil
}

type UpdateRoleInput struct {
	RealmID     uuid.UUID
	RoleID      uuid.UUID
	Description string
	Permissions []string
}

func (s *RoleService) Update(ctx context.Context, identity domain.Identity, in UpdateRoleInput) (domain.Role, error) {
	realm, err := s.resolveRealm(ctx, in.RealmID)
	if err != nil {
		return domain.Role{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageAuthorization, policy.ManageRealm); err != nil {
		return domain.Role{}, err
	}

	role, err := s.roles.GetByID(ctx, in.RoleID)
	if err != nil {
		return domain.Role{}, translateRepoErr(err)
	}
	if role.RealmID != realm.ID {
		return domain.Role{}, core.NotFound()
	}

	role.Description = in.Description
	role.Permissions = policy.FromNames(in.Permissions)

	updated, err := s.roles.Update(ctx, role)
	if err != nil {
		return domain.Role{}, translateRepoErr(err)
	}
	return updated, nil
}

func (s *RoleService) Delete(ctx context.Context, identity domain.Identity, realmID, roleID uuid.UUID) error {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageAuthorization, policy.ManageRealm); err != nil {
		return err
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return translateRepoErr(err)
	}
	if role.RealmID != realm.ID {
		return core.NotFound()
	}
	if err := s.roles.Delete(ctx, roleID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}

// Assign grants roleID to userID. Both must belong to realmID; a role or
// user from a different realm is treated as not found.
func (s *RoleService) Assign(ctx context.Context, identity domain.Identity, realmID, userID, roleID uuid.UUID) error {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageUsers, policy.ManageAuthorization); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return translateRepoErr(err)
	}
	if user.RealmID != realm.ID {
		return core.NotFound()
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return translateRepoErr(err)
	}
	if role.RealmID != realm.ID {
		return core.NotFound()
	}

	if err := s.roles.AssignToUser(ctx, userID, roleID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}

func (s *RoleService) Unassign(ctx context.Context, identity domain.Identity, realmID, userID, roleID uuid.UUID) error {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageUsers, policy.ManageAuthorization); err != nil {
		return err
	}
	if err := s.roles.RemoveFromUser(ctx, userID, roleID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}
