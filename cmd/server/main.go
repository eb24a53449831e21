package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ferriskey/iam/internal/broker"
	"github.com/ferriskey/iam/internal/credential"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/federation"
	"github.com/ferriskey/iam/internal/httpapi"
	"github.com/ferriskey/iam/internal/jwtengine"
	"github.com/ferriskey/iam/internal/policy"
	"github.com/ferriskey/iam/internal/ratelimit"
	"github.com/ferriskey/iam/internal/service"
	"github.com/ferriskey/iam/internal/storage"
	"github.com/ferriskey/iam/internal/webhook"
)

// version is stamped at build time via -ldflags; it has no default beyond
// "dev" so a developer build is obviously not a release.
var version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().
		Str("version", version).
		Str("service", "iam-server").
		Msg("IAM server starting")

	ctx := context.Background()
	if err := storage.InitDB(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer storage.CloseDB()

	if err := storage.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Repositories
	realmStore := storage.NewRealmStore()
	clientStore := storage.NewClientStore()
	clientScopeStore := storage.NewClientScopeStore()
	userStore := storage.NewUserStore()
	roleStore := storage.NewRoleStore()
	credentialStore := storage.NewCredentialStore()
	authSessionStore := storage.NewAuthSessionStore()
	refreshTokenStore := storage.NewRefreshTokenStore()
	realmKeyStore := storage.NewRealmKeyStore()
	idpStore := storage.NewIdentityProviderStore()
	brokerSessionStore := storage.NewBrokerAuthSessionStore()
	federationProviderStore := storage.NewFederationProviderStore()
	securityEventStore := storage.NewSecurityEventStore()
	webhookStore := storage.NewWebhookStore()

	issuerBase := issuerFunc()

	keys := jwtengine.NewKeyStore(realmKeyStore)
	engine := jwtengine.NewEngine(keys, issuerBase)

	if err := bootstrapMasterRealm(ctx, realmStore, userStore, roleStore, credentialStore); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap master realm")
	}

	policyEngine := service.NewPolicyEngine(userStore, clientStore, roleStore)

	realmSvc := service.NewRealmService(realmStore, policyEngine)
	clientSvc := service.NewClientService(realmStore, clientStore, policyEngine)
	userSvc := service.NewUserService(realmStore, userStore, credentialStore, policyEngine)
	roleSvc := service.NewRoleService(realmStore, roleStore, userStore, policyEngine)
	clientScopeSvc := service.NewClientScopeService(realmStore, clientScopeStore, policyEngine)

	authSessionSvc := service.NewAuthSessionService(
		realmStore, clientStore, userStore, credentialStore, authSessionStore, issuerBase,
	)
	authSessionSvc.WithLoginRateLimiter(ratelimit.NewLimiter(ratelimit.Config{
		MaxRequests: 5, WindowPeriod: 15 * time.Minute,
	}, "login"))

	mfaSvc := service.NewMFAService(
		realmStore, userStore, credentialStore, authSessionStore, authSessionSvc, issuerBase,
	)

	grantSvc := service.NewGrantService(
		realmStore, clientStore, userStore, credentialStore, authSessionStore, refreshTokenStore, securityEventStore, engine,
	)
	grantSvc.WithNotifier(webhook.NewHTTPNotifier(webhookStore))

	revocations := storage.NewTokenRevocationStore()
	defer revocations.Stop()

	oidcSvc := service.NewOIDCService(realmStore, clientStore, userStore, roleStore, refreshTokenStore, engine, issuerBase)
	oidcSvc.WithRevocationStore(revocations)

	brokerSvc := broker.NewService(realmStore, clientStore, idpStore, userStore, brokerSessionStore, authSessionSvc)

	federationSvc := federation.NewService(federationProviderStore, userStore, map[string]federation.Connector{
		"ldap": federation.NewLDAPConnector(),
	})

	tokenLimiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxRequests: 20, WindowPeriod: 15 * time.Minute,
	}, "token-ip")
	defer tokenLimiter.Stop()

	corsOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if env := os.Getenv("CORS_ALLOWED_ORIGINS"); env != "" {
		corsOrigins = strings.Split(env, ",")
		for i := range corsOrigins {
			corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
		}
	}

	router := httpapi.NewRouter(&httpapi.Services{
		Realms:         realmStore,
		RealmSvc:       realmSvc,
		ClientSvc:      clientSvc,
		UserSvc:        userSvc,
		RoleSvc:        roleSvc,
		ClientScopeSvc: clientScopeSvc,
		AuthSession:    authSessionSvc,
		MFA:            mfaSvc,
		Grant:          grantSvc,
		OIDC:           oidcSvc,
		Broker:         brokerSvc,
		Federation:     federationSvc,
		Engine:         engine,
		Revoker:        revocations,
		TokenLimiter:   tokenLimiter,
	}, corsOrigins)

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatal().Err(err).Str("PORT", portStr).Msg("invalid PORT value")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("event", "server_started").
			Str("version", version).
			Int("port", port).
			Msg("server listening")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited gracefully")
}

// issuerFunc builds the "iss" claim for a realm name. ISSUER_BASE_URL
// defaults to a loopback address suitable for local development only.
func issuerFunc() func(realmName string) string {
	base := os.Getenv("ISSUER_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	base = strings.TrimSuffix(base, "/")
	return func(realmName string) string {
		return fmt.Sprintf("%s/realms/%s", base, realmName)
	}
}

// bootstrapMasterRealm ensures the master realm and its first administrator
// exist, the same "nothing to log in as yet" problem the teacher solved with
// EnsureDefaultTenantExists — here resolved against the realm/user/role
// stores directly, since no Identity can satisfy PolicyEngine's checks
// before an admin user exists.
func bootstrapMasterRealm(
	ctx context.Context,
	realms *storage.RealmStore,
	users *storage.UserStore,
	roles *storage.RoleStore,
	credentials *storage.CredentialStore,
) error {
	realm, err := realms.GetByName(ctx, domain.MasterRealmName)
	if errors.Is(err, storage.ErrNotFound) {
		realm, err = realms.Create(ctx, domain.Realm{
			Name:     domain.MasterRealmName,
			Settings: domain.DefaultRealmSettings(),
		})
		if err != nil {
			return fmt.Errorf("create master realm: %w", err)
		}
		log.Info().Str("realm", realm.Name).Msg("master realm created")
	} else if err != nil {
		return fmt.Errorf("lookup master realm: %w", err)
	}

	adminUsername := os.Getenv("IAM_ADMIN_USERNAME")
	if adminUsername == "" {
		adminUsername = "admin"
	}

	if _, err := users.GetByUsername(ctx, realm.ID, adminUsername); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup admin user: %w", err)
	}

	adminPassword := os.Getenv("IAM_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = uuid.NewString()
		log.Warn().Str("username", adminUsername).Str("password", adminPassword).
			Msg("IAM_ADMIN_PASSWORD not set — generated a one-time bootstrap password, change it immediately")
	}

	admin, err := users.Create(ctx, domain.User{
		RealmID:       realm.ID,
		Username:      adminUsername,
		Email:         adminUsername + "@" + domain.MasterRealmName,
		EmailVerified: true,
		Enabled:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	hash, err := credential.HashPassword(adminPassword, credential.DefaultArgon2Params())
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := credentials.Create(ctx, domain.Credential{
		UserID:     admin.ID,
		Type:       domain.CredentialPassword,
		SecretData: hash,
	}); err != nil {
		return fmt.Errorf("store admin credential: %w", err)
	}

	adminRole, err := roles.Create(ctx, domain.Role{
		RealmID:     realm.ID,
		Name:        "admin",
		Description: "Full access over every realm",
		Permissions: allPermissions(),
	})
	if err != nil {
		return fmt.Errorf("create admin role: %w", err)
	}
	if err := roles.AssignToUser(ctx, admin.ID, adminRole.ID); err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}

	log.Info().Str("username", adminUsername).Msg("master realm administrator bootstrapped")
	return nil
}

// allPermissions grants every bit the policy engine understands, the master
// realm's admin role being the one place a superset makes sense.
func allPermissions() policy.Set {
	var set policy.Set
	for _, name := range []string{
		"create_client", "manage_authorization", "manage_clients", "manage_client_scopes",
		"manage_events", "manage_identity_providers", "manage_realm", "manage_users",
		"manage_webhooks", "manage_federation", "query_clients", "query_groups",
		"query_realms", "query_users", "view_authorization", "view_clients",
		"view_client_scopes", "view_events", "view_identity_providers", "view_realm",
		"view_users", "view_webhooks", "view_federation",
	} {
		if p, ok := policy.FromName(name); ok {
			set = set.With(p)
		}
	}
	return set
}
