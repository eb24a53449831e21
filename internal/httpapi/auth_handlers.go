package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/service"
)

// sessionIDFrom resolves the auth-session id either from the SESSION cookie
// authorize() set or, failing that, an explicit session_id form field — the
// login UI may run on a different origin and prefer to pass it explicitly.
func sessionIDFrom(r *http.Request) (uuid.UUID, error) {
	if cookie, err := r.Cookie("SESSION"); err == nil && cookie.Value != "" {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id, nil
		}
	}
	if id := r.PostForm.Get("session_id"); id != "" {
		return uuid.Parse(id)
	}
	return uuid.Nil, core.InvalidState("no session")
}

func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.AuthSession.Authenticate(r.Context(), sessionID, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAuthenticateResult(w, r, result)
}

func (h *handlers) completeRequiredAction(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.AuthSession.CompleteRequiredAction(r.Context(), sessionID, domain.RequiredAction(r.PostForm.Get("action")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAuthenticateResult(w, r, result)
}

func (h *handlers) sendMagicLink(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.AuthSession.SendMagicLink(r.Context(), sessionID, r.PostForm.Get("email")); err != nil {
		writeError(w, err)
		return
	}
	// Never signal whether the email resolved to an account.
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) verifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	result, err := h.svc.AuthSession.VerifyMagicLink(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.RequiresActions {
		writeJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// writeAuthenticateResult either redirects the browser (code issued) or
// reports the outstanding required actions as JSON for the login UI to
// render the next step.
func writeAuthenticateResult(w http.ResponseWriter, r *http.Request, result service.AuthenticateResult) {
	if result.RequiresActions {
		writeJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}
