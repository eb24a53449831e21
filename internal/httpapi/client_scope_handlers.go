package httpapi

import (
	"net/http"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/service"
)

type createClientScopeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Protocol    string `json:"protocol"`
}

func (h *handlers) createClientScope(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createClientScopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}

	scope, err := h.svc.ClientScopeSvc.Create(r.Context(), identityFromContext(r.Context()), service.CreateClientScopeInput{
		RealmID:     realm.ID,
		Name:        req.Name,
		Description: req.Description,
		Protocol:    req.Protocol,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scope)
}

func (h *handlers) listClientScopes(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	scopes, err := h.svc.ClientScopeSvc.List(r.Context(), identityFromContext(r.Context()), realm.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scopes)
}

func (h *handlers) deleteClientScope(w http.ResponseWriter, r *http.Request) {
	realm, err := h.realmFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	scopeID, err := pathUUID(r, "scope_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid scope_id"))
		return
	}
	if err := h.svc.ClientScopeSvc.Delete(r.Context(), identityFromContext(r.Context()), realm.ID, scopeID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bindClientScopeRequest struct {
	Binding domain.MapperBindingType `json:"binding"`
}

func (h *handlers) bindClientScope(w http.ResponseWriter, r *http.Request) {
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
	scopeID, err := pathUUID(r, "scope_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid scope_id"))
		return
	}
	var req bindClientScopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.InvalidRequest("malformed request body"))
		return
	}
	binding := req.Binding
	if binding == "" {
		binding = domain.BindingDefault
	}

	if err := h.svc.ClientScopeSvc.Bind(r.Context(), identityFromContext(r.Context()), realm.ID, clientID, scopeID, binding); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
