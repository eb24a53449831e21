package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ferriskey/iam/internal/core"
	iammiddleware "github.com/ferriskey/iam/internal/middleware"
	"github.com/ferriskey/iam/internal/service"
)

func (h *handlers) discovery(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.OIDC.Discovery(r.Context(), chi.URLParam(r, "realm_name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) jwks(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.OIDC.JWKS(r.Context(), chi.URLParam(r, "realm_name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// authorize is the browser entry point for the authorization_code flow: it
// creates an auth session and redirects the user agent to the interactive
// login UI (spec §4.3 "Create").
func (h *handlers) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.AuthSession.CreateSession(r.Context(), service.CreateSessionInput{
		RealmName:    chi.URLParam(r, "realm_name"),
		ClientID:     q.Get("client_id"),
		RedirectURI:  q.Get("redirect_uri"),
		ResponseType: q.Get("response_type"),
		Scope:        q.Get("scope"),
		State:        q.Get("state"),
		Nonce:        q.Get("nonce"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "SESSION",
		Value:    result.SessionID.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	if err := iammiddleware.SetCSRFCookie(w, r); err != nil {
		writeError(w, core.Internal(err))
		return
	}
	http.Redirect(w, r, result.LoginURL, http.StatusFound)
}

type tokenForm struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	Username     string
	Password     string
	RefreshToken string
	Scope        string
}

func parseTokenForm(r *http.Request) tokenForm {
	_ = r.ParseForm()
	return tokenForm{
		GrantType:    r.PostForm.Get("grant_type"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Scope:        r.PostForm.Get("scope"),
	}
}

func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	form := parseTokenForm(r)
	resp, err := h.svc.Grant.Exchange(r.Context(), service.GrantRequest{
		RealmName:    chi.URLParam(r, "realm_name"),
		GrantType:    service.GrantType(form.GrantType),
		ClientID:     form.ClientID,
		ClientSecret: form.ClientSecret,
		Code:         form.Code,
		RedirectURI:  form.RedirectURI,
		Username:     form.Username,
		Password:     form.Password,
		RefreshToken: form.RefreshToken,
		Scope:        form.Scope,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// introspect implements RFC 7662: the caller authenticates as a confidential
// client via HTTP Basic or form credentials.
func (h *handlers) introspect(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostForm.Get("client_id")
		clientSecret = r.PostForm.Get("client_secret")
	}

	resp, err := h.svc.OIDC.Introspect(r.Context(), chi.URLParam(r, "realm_name"), clientID, clientSecret, r.PostForm.Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// revoke implements RFC 7009: always 200, revocation is idempotent.
func (h *handlers) revoke(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	_ = h.svc.OIDC.Revoke(r.Context(), chi.URLParam(r, "realm_name"), r.PostForm.Get("token"))
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) userinfo(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeError(w, core.InvalidRequest("missing bearer token"))
		return
	}

	info, err := h.svc.OIDC.Userinfo(r.Context(), chi.URLParam(r, "realm_name"), parts[1])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// logout clears the session/identity cookies. Keycloak-style OIDC RP-Initiated
// Logout additionally accepts id_token_hint + post_logout_redirect_uri, which
// the client-side flow supplies; the core itself has no session to revoke
// beyond the refresh token the caller should separately hit /revoke with.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "IDENTITY", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	iammiddleware.ClearCSRFCookie(w, r)

	if redirect := r.URL.Query().Get("post_logout_redirect_uri"); redirect != "" {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
