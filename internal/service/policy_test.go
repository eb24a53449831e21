package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/repository"
)

type fakeUsers struct {
	byID map[uuid.UUID]domain.User
}

func (f fakeUsers) Create(ctx context.Context, u domain.User) (domain.User, error) { return u, nil }
func (f fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}
func (f fakeUsers) GetByUsername(ctx context.Context, realmID uuid.UUID, username string) (domain.User, error) {
	for _, u := range f.byID {
		if u.RealmID == realmID && u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}
func (f fakeUsers) GetByEmail(ctx context.Context, realmID uuid.UUID, email string) (domain.User, error) {
	return domain.User{}, repository.ErrNotFound
}
func (f fakeUsers) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.User, error) {
	return nil, nil
}
func (f fakeUsers) Update(ctx context.Context, u domain.User) (domain.User, error) { return u, nil }
func (f fakeUsers) Delete(ctx context.Context, id uuid.UUID) error                 { return nil }

type fakeClients struct {
	byID map[uuid.UUID]domain.Client
}

func (f fakeClients) Create(ctx context.Context, c domain.Client) (domain.Client, error) {
	return c, nil
}
func (f fakeClients) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	c, ok := f.byID[id]
	if !ok {
		return domain.Client{}, repository.ErrNotFound
	}
	return c, nil
}
func (f fakeClients) GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (domain.Client, error) {
	for _, c := range f.byID {
		if c.RealmID == realmID && c.ClientID == clientID {
			return c, nil
		}
	}
	return domain.Client{}, repository.ErrNotFound
}
func (f fakeClients) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Client, error) {
	return nil, nil
}
func (f fakeClients) Update(ctx context.Context, c domain.Client) (domain.Client, error) {
	return c, nil
}
func (f fakeClients) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeRoles struct {
	byUser map[uuid.UUID][]domain.Role
}

func (f fakeRoles) Create(ctx context.Context, r domain.Role) (domain.Role, error) { return r, nil }
func (f fakeRoles) GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	return domain.Role{}, repository.ErrNotFound
}
func (f fakeRoles) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Role, error) {
	return nil, nil
}
func (f fakeRoles) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Role, error) {
	return f.byUser[userID], nil
}
func (f fakeRoles) AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error    { return nil }
func (f fakeRoles) RemoveFromUser(ctx context.Context, userID, roleID uuid.UUID) error  { return nil }
func (f fakeRoles) Update(ctx context.Context, r domain.Role) (domain.Role, error)      { return r, nil }
func (f fakeRoles) Delete(ctx context.Context, id uuid.UUID) error                      { return nil }

func TestPolicyEngine_OwnRealmRole(t *testing.T) {
	realmID := uuid.New()
	userID := uuid.New()
	realm := domain.Realm{ID: realmID, Name: "acme"}

	users := fakeUsers{byID: map[uuid.UUID]domain.User{
		userID: {ID: userID, RealmID: realmID, Username: "alice"},
	}}
	roles := fakeRoles{byUser: map[uuid.UUID][]domain.Role{
		userID: {{ID: uuid.New(), RealmID: realmID, Name: "admin", Permissions: policy.Set(0).With(policy.ManageUsers)}},
	}}
	engine := NewPolicyEngine(users, fakeClients{byID: map[uuid.UUID]domain.Client{}}, roles)

	ok, err := engine.CanOneOf(context.Background(), domain.NewUserIdentity(userID), realm, policy.ManageUsers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.CanOneOf(context.Background(), domain.NewUserIdentity(userID), realm, policy.ManageRealm)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicyEngine_CrossRealmAdminClient(t *testing.T) {
	masterRealmID := uuid.New()
	targetRealm := domain.Realm{ID: uuid.New(), Name: "acme"}
	userID := uuid.New()
	adminClientID := uuid.New()

	users := fakeUsers{byID: map[uuid.UUID]domain.User{
		userID: {ID: userID, RealmID: masterRealmID, Username: "admin"},
	}}
	clients := fakeClients{byID: map[uuid.UUID]domain.Client{
		adminClientID: {ID: adminClientID, RealmID: masterRealmID, ClientID: "acme-realm"},
	}}
	roles := fakeRoles{byUser: map[uuid.UUID][]domain.Role{
		userID: {{ID: uuid.New(), RealmID: masterRealmID, ClientID: &adminClientID, Name: "manage-realm",
			Permissions: policy.Set(0).With(policy.ManageRealm)}},
	}}
	engine := NewPolicyEngine(users, clients, roles)

	ok, err := engine.CanOneOf(context.Background(), domain.NewUserIdentity(userID), targetRealm, policy.ManageRealm)
	require.NoError(t, err)
	assert.True(t, ok, "a role bound to the {realm}-realm client must grant cross-realm permissions")
}

func TestPolicyEngine_Require_Forbidden(t *testing.T) {
	realm := domain.Realm{ID: uuid.New(), Name: "acme"}
	userID := uuid.New()
	users := fakeUsers{byID: map[uuid.UUID]domain.User{userID: {ID: userID, RealmID: realm.ID}}}
	engine := NewPolicyEngine(users, fakeClients{byID: map[uuid.UUID]domain.Client{}}, fakeRoles{byUser: map[uuid.UUID][]domain.Role{}})

	err := engine.Require(context.Background(), domain.NewUserIdentity(userID), realm, policy.ManageUsers)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.Forbidden(""))
}
