package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferriskey/iam/internal/core"
)

func TestStatusFor(t *testing.T) {
	cases := map[core.Kind]int{
		core.KindInvalidRealm:   400,
		core.KindInvalidRequest: 400,
		core.KindForbidden:      403,
		core.KindNotFound:       404,
		core.KindConflict:       409,
		core.KindAlreadyExists:  409,
		core.KindBadGateway:     502,
		core.KindInternal:       500,
		core.KindRateLimited:    429,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), "kind %s", kind)
	}
}

func TestWriteError_InternalNeverLeaksCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, core.Internal(assert.AnError))

	require.Equal(t, 500, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_server_error", body.Error)
	assert.Equal(t, "internal_server_error", body.ErrorDescription)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestWriteError_DomainErrorSurfacesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, core.InvalidClient("unknown or disabled client"))

	require.Equal(t, 400, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_client", body.Error)
	assert.Contains(t, body.ErrorDescription, "unknown or disabled client")
}
