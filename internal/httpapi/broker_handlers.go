package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ferriskey/iam/internal/broker"
	"github.com/ferriskey/iam/internal/core"
)

// brokerLogin redirects the browser to the external identity provider's
// authorization endpoint (spec §4.7 "Start").
func (h *handlers) brokerLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.Broker.Start(r.Context(), broker.StartInput{
		RealmName:             chi.URLParam(r, "realm_name"),
		IdentityProviderAlias: chi.URLParam(r, "alias"),
		ClientID:              q.Get("client_id"),
		RedirectURI:           q.Get("redirect_uri"),
		Scope:                 q.Get("scope"),
		State:                 q.Get("state"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, result.AuthorizationURL, http.StatusFound)
}

// brokerCallback is the redirect URI registered with the external IdP
// (spec §4.7 "Callback").
func (h *handlers) brokerCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		writeError(w, core.BadGateway("identity provider returned an error: "+errParam))
		return
	}

	redirectURL, err := h.svc.Broker.Callback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}
