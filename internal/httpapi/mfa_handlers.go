package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/credential"
)

// setupOTP starts CONFIGURE_OTP enrollment and returns the secret/URI for
// the login UI to render as a QR code. The secret is not yet persisted —
// verifyOTP must prove possession before it becomes a real credential.
func (h *handlers) setupOTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	enrollment, err := h.svc.MFA.SetupOTP(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *handlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.MFA.VerifyOTP(r.Context(), sessionID, r.PostForm.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAuthenticateResult(w, r, result)
}

func (h *handlers) challengeOTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.MFA.ChallengeOTP(r.Context(), sessionID, r.PostForm.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAuthenticateResult(w, r, result)
}

func (h *handlers) generateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := strconv.Atoi(r.PostForm.Get("count"))
	if err != nil || n <= 0 {
		n = 10
	}
	format := credential.RecoveryCodeFormat(r.PostForm.Get("format"))
	if format == "" {
		format = credential.RecoveryAlphanumeric
	}

	codes, err := h.svc.MFA.GenerateRecoveryCodes(r.Context(), sessionID, n, format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Codes []string `json:"codes"`
	}{Codes: codes})
}

func (h *handlers) burnRecoveryCode(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.MFA.BurnRecoveryCode(r.Context(), sessionID, r.PostForm.Get("username"), r.PostForm.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAuthenticateResult(w, r, result)
}

// beginWebAuthnRegistration starts the ceremony; the login UI feeds the
// response straight into navigator.credentials.create().
func (h *handlers) beginWebAuthnRegistration(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	creation, err := h.svc.MFA.BeginWebAuthnRegistration(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creation)
}

// finishWebAuthnRegistration consumes the browser's attestation response
// body (the JSON produced by navigator.credentials.create()).
func (h *handlers) finishWebAuthnRegistration(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		writeError(w, core.InvalidRequest("malformed webauthn attestation response"))
		return
	}

	result, err := h.svc.MFA.FinishWebAuthnRegistration(r.Context(), sessionID, parsed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAuthenticateResult(w, r, result)
}
