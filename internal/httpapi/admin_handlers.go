package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/service"
)

// realmFromPath resolves the realm_name URL segment to a domain.Realm so
// handlers can pass its UUID into the CRUD services, which operate only on
// IDs (spec §4.8).
func (h *handlers) realmFromPath(r *http.Request) (domain.Realm, error) {
	name := chi.URLParam(r, "realm_name")
	realm, err := h.svc.Realms.GetByName(r.Context(), name)
	if err != nil {
		return domain.Realm{}, core.InvalidRealm("unknown realm")
	}
	return realm, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// --- clients ---

type createClientRequest struct {
	ClientID                  string   `json:"client_id"`
	Secret                    string   `json:"secret"`
	PublicClient              bool     `json:"public_client"`
	ServiceAccountEnabled     bool     `json:"service_account_enabled"`
	DirectAccessGrantsEnabled bool     `json:"direct_access_grants_enabled"`
	RedirectURIs              []string `json:"redirect_uris"`
	PostLogoutRedirectURIs    []string `json:"post_logout_redirect_uris"`
}

func (h *handlers) createClient(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createClientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	client, err := h.svc.ClientSvc.Create(r.Context(), identityFromContext(r.Context()), service.CreateClientInput{
		RealmID:                   realm.ID,
		ClientID:                  req.ClientID,
		Secret:                    req.Secret,
		PublicClient:              req.PublicClient,
		ServiceAccountEnabled:     req.ServiceAccountEnabled,
		DirectAccessGrantsEnabled: req.DirectAccessGrantsEnabled,
		RedirectURIs:              req.RedirectURIs,
		PostLogoutRedirectURIs:    req.PostLogoutRedirectURIs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *handlers) listClients(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clients, err := h.svc.ClientSvc.List(r.Context(), identityFromContext(r.Context()), realm.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *handlers) getClient(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := pathUUID(r, "client_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid client_id"))
		return
	}
	client, err := h.svc.ClientSvc.Get(r.Context(), identityFromContext(r.Context()), realm.ID, clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

type updateClientRequest struct {
	Enabled                   bool     `json:"enabled"`
	ServiceAccountEnabled     bool     `json:"service_account_enabled"`
	DirectAccessGrantsEnabled bool     `json:"direct_access_grants_enabled"`
	RedirectURIs              []string `json:"redirect_uris"`
	PostLogoutRedirectURIs    []string `json:"post_logout_redirect_uris"`
}

func (h *handlers) updateClient(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := pathUUID(r, "client_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid client_id"))
		return
	}
	var req updateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	client, err := h.svc.ClientSvc.Update(r.Context(), identityFromContext(r.Context()), service.UpdateClientInput{
		RealmID:                   realm.ID,
		ClientID:                  clientID,
		Enabled:                   req.Enabled,
		ServiceAccountEnabled:     req.ServiceAccountEnabled,
		DirectAccessGrantsEnabled: req.DirectAccessGrantsEnabled,
		RedirectURIs:              req.RedirectURIs,
		PostLogoutRedirectURIs:    req.PostLogoutRedirectURIs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *handlers) deleteClient(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	clientID, err := pathUUID(r, "client_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid client_id"))
		return
	}
	if err := h.svc.ClientSvc.Delete(r.Context(), identityFromContext(r.Context()), realm.ID, clientID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- users ---

type createUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Firstname string `json:"first_name"`
	Lastname  string `json:"last_name"`
	Password  string `json:"password"`
	Temporary bool   `json:"temporary"`
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	user, err := h.svc.UserSvc.Create(r.Context(), identityFromContext(r.Context()), service.CreateUserInput{
		RealmID:   realm.ID,
		Username:  req.Username,
		Email:     req.Email,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Password:  req.Password,
		Temporary: req.Temporary,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := h.svc.UserSvc.List(r.Context(), identityFromContext(r.Context()), realm.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid user_id"))
		return
	}
	user, err := h.svc.UserSvc.Get(r.Context(), identityFromContext(r.Context()), realm.ID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Email     string `json:"email"`
	Firstname string `json:"first_name"`
	Lastname  string `json:"last_name"`
	Enabled   bool   `json:"enabled"`
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid user_id"))
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	user, err := h.svc.UserSvc.Update(r.Context(), identityFromContext(r.Context()), service.UpdateUserInput{
		RealmID:   realm.ID,
		UserID:    userID,
		Email:     req.Email,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Enabled:   req.Enabled,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid user_id"))
		return
	}
	if err := h.svc.UserSvc.Delete(r.Context(), identityFromContext(r.Context()), realm.ID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPasswordRequest struct {
	Password  string `json:"password"`
	Temporary bool   `json:"temporary"`
}

func (h *handlers) setUserPassword(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid user_id"))
		return
	}
	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	if err := h.svc.UserSvc.SetPassword(r.Context(), identityFromContext(r.Context()), realm.ID, userID, req.Password, req.Temporary); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) assignRole(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid user_id"))
		return
	}
	roleID, err := pathUUID(r, "role_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid role_id"))
		return
	}
	if err := h.svc.RoleSvc.Assign(r.Context(), identityFromContext(r.Context()), realm.ID, userID, roleID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) unassignRole(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid user_id"))
		return
	}
	roleID, err := pathUUID(r, "role_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid role_id"))
		return
	}
	if err := h.svc.RoleSvc.Unassign(r.Context(), identityFromContext(r.Context()), realm.ID, userID, roleID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- roles ---

type createRoleRequest struct {
	ClientID    *uuid.UUID `json:"client_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Permissions []string   `json:"permissions"`
}

func (h *handlers) createRole(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	role, err := h.svc.RoleSvc.Create(r.Context(), identityFromContext(r.Context()), service.CreateRoleInput{
		RealmID:     realm.ID,
		ClientID:    req.ClientID,
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roles, err := h.svc.RoleSvc.List(r.Context(), identityFromContext(r.Context()), realm.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

type updateRoleRequest struct {
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (h *handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roleID, err := pathUUID(r, "role_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid role_id"))
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	role, err := h.svc.RoleSvc.Update(r.Context(), identityFromContext(r.Context()), service.UpdateRoleInput{
		RealmID:     realm.ID,
		RoleID:      roleID,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *handlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roleID, err := pathUUID(r, "role_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid role_id"))
		return
	}
	if err := h.svc.RoleSvc.Delete(r.Context(), identityFromContext(r.Context()), realm.ID, roleID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- realms ---

type createRealmRequest struct {
	Name     string               `json:"name"`
	Settings domain.RealmSettings `json:"settings"`
}

func (h *handlers) createRealm(w http.ResponseWriter, r *http.Request) {
	var req createRealmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}
	realm, err := h.svc.RealmSvc.Create(r.Context(), identityFromContext(r.Context()), service.CreateRealmInput{
		Name:     req.Name,
		Settings: req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, realm)
}

func (h *handlers) listRealms(w http.ResponseWriter, r *http.Request) {
	realms, err := h.svc.RealmSvc.List(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, realms)
}

func (h *handlers) getRealm(w http.ResponseWriter, r *http.Request) {
	realmID, err := pathUUID(r, "realm_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid realm_id"))
		return
	}
	realm, err := h.svc.RealmSvc.Get(r.Context(), identityFromContext(r.Context()), realmID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, realm)
}

func (h *handlers) updateRealm(w http.ResponseWriter, r *http.Request) {
	realmID, err := pathUUID(r, "realm_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid realm_id"))
		return
	}
	var req struct {
		Settings domain.RealmSettings `json:"settings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}
	realm, err := h.svc.RealmSvc.Update(r.Context(), identityFromContext(r.Context()), service.UpdateRealmInput{
		RealmID:  realmID,
		Settings: req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, realm)
}

func (h *handlers) deleteRealm(w http.ResponseWriter, r *http.Request) {
	realmID, err := pathUUID(r, "realm_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid realm_id"))
		return
	}
	if err := h.svc.RealmSvc.Delete(r.Context(), identityFromContext(r.Context()), realmID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
