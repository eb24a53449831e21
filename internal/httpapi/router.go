// Package httpapi mounts the full OIDC/IAM HTTP surface (spec §6) on a
// chi router, one subrouter per realm-scoped resource group.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ferriskey/iam/internal/broker"
	"github.com/ferriskey/iam/internal/federation"
	"github.com/ferriskey/iam/internal/jwtengine"
	iammiddleware "github.com/ferriskey/iam/internal/middleware"
	"github.com/ferriskey/iam/internal/ratelimit"
	"github.com/ferriskey/iam/internal/repository"
	"github.com/ferriskey/iam/internal/service"
)

// Services aggregates every service the HTTP layer calls into. main.go
// constructs one of these at startup and hands it to NewRouter.
type Services struct {
	Realms         repository.RealmRepository
	RealmSvc       *service.RealmService
	ClientSvc      *service.ClientService
	UserSvc        *service.UserService
	RoleSvc        *service.RoleService
	ClientScopeSvc *service.ClientScopeService
	AuthSession    *service.AuthSessionService
	MFA            *service.MFAService
	Grant          *service.GrantService
	OIDC           *service.OIDCService
	Broker         *broker.Service
	Federation     *federation.Service
	Engine         *jwtengine.Engine
	Revoker        repository.TokenRevoker
	TokenLimiter   ratelimit.Limiter
}

// NewRouter builds the full HTTP handler tree.
func NewRouter(svc *Services, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(iammiddleware.SecurityHeaders)
	r.Use(iammiddleware.MaxBodySize(iammiddleware.DefaultMaxBodySize))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	h := &handlers{svc: svc}

	r.Route("/realms/{realm_name}", func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", h.discovery)
		r.Get("/protocol/openid-connect/certs", h.jwks)
		r.Get("/protocol/openid-connect/jwks.json", h.jwks)
		r.Get("/protocol/openid-connect/auth", h.authorize)
		r.With(rateLimitByIP(svc.TokenLimiter)).Post("/protocol/openid-connect/token", h.token)
		r.Post("/protocol/openid-connect/token/introspect", h.introspect)
		r.Post("/protocol/openid-connect/revoke", h.revoke)
		r.Get("/protocol/openid-connect/userinfo", h.userinfo)
		r.Post("/protocol/openid-connect/userinfo", h.userinfo)
		r.Post("/protocol/openid-connect/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(iammiddleware.CSRFProtection)
			r.With(rateLimitByIP(svc.TokenLimiter)).Post("/login-actions/authenticate", h.authenticate)
			r.Post("/login-actions/required-action", h.completeRequiredAction)
			r.Post("/login-actions/send-magic-link", h.sendMagicLink)
			r.Post("/login-actions/setup-otp", h.setupOTP)
			r.Post("/login-actions/verify-otp", h.verifyOTP)
			r.Post("/login-actions/challenge-otp", h.challengeOTP)
			r.Post("/login-actions/generate-recovery-codes", h.generateRecoveryCodes)
			r.Post("/login-actions/burn-recovery-code", h.burnRecoveryCode)
			r.Get("/login-actions/webauthn-public-key-create", h.beginWebAuthnRegistration)
			r.Post("/login-actions/webauthn-public-key-create", h.finishWebAuthnRegistration)
		})
		r.Get("/login-actions/verify-magic-link", h.verifyMagicLink)

		r.Get("/broker/{alias}/login", h.brokerLogin)
		r.Get("/broker/{alias}/endpoint", h.brokerCallback)

		r.Group(func(r chi.Router) {
			r.Use(RequireBearer(svc.Realms, svc.Engine, svc.Revoker))

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.listClients)
				r.Post("/", h.createClient)
				r.Get("/{client_id}", h.getClient)
				r.Put("/{client_id}", h.updateClient)
				r.Delete("/{client_id}", h.deleteClient)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.listUsers)
				r.Post("/", h.createUser)
				r.Get("/{user_id}", h.getUser)
				r.Put("/{user_id}", h.updateUser)
				r.Delete("/{user_id}", h.deleteUser)
				r.Put("/{user_id}/password", h.setUserPassword)
				r.Post("/{user_id}/roles/{role_id}", h.assignRole)
				r.Delete("/{user_id}/roles/{role_id}", h.unassignRole)
			})

			r.Route("/roles", func(r chi.Router) {
				r.Get("/", h.listRoles)
				r.Post("/", h.createRole)
				r.Put("/{role_id}", h.updateRole)
				r.Delete("/{role_id}", h.deleteRole)
			})

			r.Post("/federation-providers/{provider_id}/sync", h.syncFederationProvider)

			r.Route("/client-scopes", func(r chi.Router) {
				r.Get("/", h.listClientScopes)
				r.Post("/", h.createClientScope)
				r.Delete("/{scope_id}", h.deleteClientScope)
				r.Post("/{scope_id}/clients/{client_id}", h.bindClientScope)
			})
		})
	})

	r.Route("/admin/realms", func(r chi.Router) {
		r.Use(RequireBearer(svc.Realms, svc.Engine, svc.Revoker))
		r.Get("/", h.listRealms)
		r.Post("/", h.createRealm)
		r.Get("/{realm_id}", h.getRealm)
		r.Put("/{realm_id}", h.updateRealm)
		r.Delete("/{realm_id}", h.deleteRealm)
	})

	return r
}

type handlers struct {
	svc *Services
}
