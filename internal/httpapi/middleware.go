package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/jwtengine"
	"github.com/ferriskey/iam/internal/repository"
)

type ctxKey string

const identityCtxKey ctxKey = "identity"

// RequireBearer generalizes the teacher's middleware/auth.go JWT-extraction
// pattern to per-realm RS256 verification: it reads the realm name from
// the chi URL param, verifies the bearer token against that realm's own
// key via engine, and stores the resolved Identity in context.
func RequireBearer(realms repository.RealmRepository, engine *jwtengine.Engine, revoker repository.TokenRevoker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			realmName := chi.URLParam(r, "realm_name")
			realm, err := realms.GetByName(r.Context(), realmName)
			if err != nil {
				writeError(w, core.InvalidRealm("unknown realm"))
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, core.InvalidRequest("missing bearer token"))
				return
			}

			claims, err := engine.Verify(r.Context(), realm.ID, parts[1], jwtengine.TokenTypeAccess)
			if err != nil {
				writeError(w, core.InvalidRequest("invalid_token"))
				return
			}
			if revoker != nil && revoker.IsRevoked(claims.ID) {
				writeError(w, core.InvalidRequest("invalid_token"))
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, core.InvalidRequest("invalid_token"))
				return
			}

			identity := domain.NewUserIdentity(userID)
			ctx := context.WithValue(r.Context(), identityCtxKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext retrieves the Identity RequireBearer placed in ctx.
// Handlers mounted behind RequireBearer may call this unconditionally.
func identityFromContext(ctx context.Context) domain.Identity {
	identity, _ := ctx.Value(identityCtxKey).(domain.Identity)
	return identity
}
