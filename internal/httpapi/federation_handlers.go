package httpapi

import (
	"net/http"

	"github.com/ferriskey/iam/internal/core"
)

type federationSyncResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// syncFederationProvider triggers an on-demand sync pass for one configured
// federation provider via federation.Service.SyncByID.
func (h *handlers) syncFederationProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathUUID(r, "provider_id")
	if err != nil {
		writeError(w, core.InvalidRequest("invalid provider_id"))
		return
	}

	created, updated, err := h.svc.Federation.SyncByID(r.Context(), providerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, federationSyncResponse{Created: created, Updated: updated})
}
