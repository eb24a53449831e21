package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/repository"
)

// UserService implements the user CRUD aggregate (spec §4.8) plus password
// credential management, since issuing a password is how most users are
// created in practice.
type UserService struct {
	realms      repository.RealmRepository
	users       repository.UserRepository
	credentials repository.CredentialRepository
	policy      *PolicyEngine
	argon2      credential.Argon2Params
}

func NewUserService(
	realms repository.RealmRepository,
	users repository.UserRepository,
	credentials repository.CredentialRepository,
	policy *PolicyEngine,
) *UserService {
	return &UserService{
		realms:      realms,
		users:       users,
		credentials: credentials,
		policy:      policy,
		argon2:      credential.DefaultArgon2Params(),
	}
}

func (s *UserService) resolveRealm(ctx context.Context, realmID uuid.UUID) (domain.Realm, error) {
	realm, err := s.realms.GetByID(ctx, realmID)
	if err != nil {
		if core.KindOf(translateRepoErr(err)) == core.KindNotFound {
			return domain.Realm{}, core.InvalidRealm("realm not found")
		}
		return domain.Realm{}, translateRepoErr(err)
	}
	return realm, nil
}

type CreateUserInput struct {
	RealmID         uuid.UUID
	Username        string
	Email           string
	Firstname       string
	Lastname        string
	Password        string
	Temporary       bool // true sets UPDATE_PASSWORD as a required action
	RequiredActions []domain.RequiredAction
}

func (s *UserService) Create(ctx context.Context, identity domain.Identity, in CreateUserInput) (domain.User, error) {
	realm, err := s.resolveRealm(ctx, in.RealmID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageUsers); err != nil {
		return domain.User{}, err
	}

	requiredActions := in.RequiredActions
	if in.Temporary {
		requiredActions = append(requiredActions, domain.RequiredActionUpdatePassword)
	}

	user, err := s.users.Create(ctx, domain.User{
		RealmID:         realm.ID,
		Username:        in.Username,
		Email:           in.Email,
		Enabled:         true,
		Firstname:       in.Firstname,
		Lastname:        in.Lastname,
		RequiredActions: requiredActions,
	})
	if err != nil {
		return domain.User{}, translateRepoErr(err)
	}

	if in.Password != "" {
		if err := credential.ValidatePassword(in.Password); err != nil {
			return domain.User{}, core.InvalidPassword(err.Error())
		}
		hash, err := credential.HashPassword(in.Password, s.argon2)
		if err != nil {
			return domain.User{}, core.Internal(err)
		}
		if _, err := s.credentials.Create(ctx, domain.Credential{
			UserID:     user.ID,
			Type:       domain.CredentialPassword,
			SecretData: hash,
			Temporary:  in.Temporary,
		}); err != nil {
			return domain.User{}, translateRepoErr(err)
		}
	}

	return user, nil
}

func (s *UserService) Get(ctx context.Context, identity domain.Identity, realmID, userID uuid.UUID) (domain.User, error) {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ViewUsers, policy.ManageUsers); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, translateRepoErr(err)
	}
	if user.RealmID != realm.ID {
		return domain.User{}, core.NotFound()
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, identity domain.Identity, realmID uuid.UUID) ([]domain.User, error) {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ViewUsers, policy.ManageUsers, policy.QueryUsers); err != nil {
		return nil, err
	}
	users, err := s.users.ListByRealm(ctx, realm.ID)
	if err != nil {
		return nil, translateRepoErr(err)
	}
	return users, nil
}

type UpdateUserInput struct {
	RealmID   uuid.UUID
	UserID    uuid.UUID
	Email     string
	Firstname string
	Lastname  string
	Enabled   bool
}

func (s *UserService) Update(ctx context.Context, identity domain.Identity, in UpdateUserInput) (domain.User, error) {
	realm, err := s.resolveRealm(ctx, in.RealmID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageUsers); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return domain.User{}, translateRepoErr(err)
	}
	if user.RealmID != realm.ID {
		return domain.User{}, core.NotFound()
	}

	user.Email = in.Email
	user.Firstname = in.Firstname
	user.Lastname = in.Lastname
	user.Enabled = in.Enabled

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return domain.User{}, translateRepoErr(err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, identity domain.Identity, realmID, userID uuid.UUID) error {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageUsers); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return translateRepoErr(err)
	}
	if user.RealmID != realm.ID {
		return core.NotFound()
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}

// SetPassword replaces a user's password credential (the admin "reset
// password" operation; the caller needs ManageUsers). A temporary password
// adds UPDATE_PASSWORD to the user's required actions; a non-temporary one
// leaves the required actions unchanged, so a pending UPDATE_PASSWORD is not
// cleared.
func (s *UserService) SetPassword(ctx context.Context, identity domain.Identity, realmID, userID uuid.UUID, newPassword string, temporary bool) error {
	realm, err := s.resolveRealm(ctx, realmID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(ctx, identity, realm, policy.ManageUsers); err != nil {
		return err
	}
	if err := credential.ValidatePassword(newPassword); err != nil {
		return core.InvalidPassword(err.Error())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return translateRepoErr(err)
	}
	if user.RealmID != realm.ID {
		return core.NotFound()
	}

	hash, err := credential.HashPassword(newPassword, s.argon2)
	if err != nil {
		return core.Internal(err)
	}
	if _, err := s.credentials.Create(ctx, domain.Credential{
		UserID:     userID,
		Type:       domain.CredentialPassword,
		SecretData: hash,
		Temporary:  temporary,
	}); err != nil {
		return translateRepoErr(err)
	}

	if temporary {
		user.RequiredActions = append(user.RequiredActions, domain.RequiredActionUpdatePassword)
		if _, err := s.users.Update(ctx, user); err != nil {
			return translateRepoErr(err)
		}
	}
	return nil
}
