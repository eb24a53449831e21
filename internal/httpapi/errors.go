package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ferriskey/iam/internal/core"
)

// statusFor maps a core.Kind to the HTTP status spec §7 assigns it.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindInvalidRealm, core.KindInvalidClient, core.KindInvalidUser,
		core.KindInvalidPassword, core.KindInvalidRefreshToken, core.KindInvalidState,
		core.KindInvalidRequest:
		return http.StatusBadRequest
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict, core.KindAlreadyExists:
		return http.StatusConflict
	case core.KindBadGateway:
		return http.StatusBadGateway
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeError maps err to a status code and writes a JSON body. Internal
// errors never leak their cause to the client (spec §7).
func writeError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	if kind == core.KindInternal {
		msg = "internal_server_error"
	}

	writeJSON(w, status, errorBody{Error: string(kind), ErrorDescription: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
