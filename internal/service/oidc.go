package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/jwtengine"
	"github.com/ferriskey/iam/internal/repository"
)

// OIDCService implements the non-grant token endpoints of spec §4.6:
// introspection, revocation, userinfo, discovery and JWKS.
type OIDCService struct {
	realms        repository.RealmRepository
	clients       repository.ClientRepository
	users         repository.UserRepository
	roles         repository.RoleRepository
	refreshTokens repository.RefreshTokenRepository
	engine        *jwtengine.Engine
	issuerBase    func(realmName string) string
	revoker       repository.TokenRevoker
}

// WithRevocationStore wires in the access-token revocation side channel.
// Without it, Revoke and Introspect only honor refresh-token revocation.
func (s *OIDCService) WithRevocationStore(revoker repository.TokenRevoker) *OIDCService {
	s.revoker = revoker
	return s
}

func NewOIDCService(
	realms repository.RealmRepository,
	clients repository.ClientRepository,
	users repository.UserRepository,
	roles repository.RoleRepository,
	refreshTokens repository.RefreshTokenRepository,
	engine *jwtengine.Engine,
	issuerBase func(realmName string) string,
) *OIDCService {
	return &OIDCService{
		realms:        realms,
		clients:       clients,
		users:         users,
		roles:         roles,
		refreshTokens: refreshTokens,
		engine:        engine,
		issuerBase:    issuerBase,
	}
}

// IntrospectionResponse follows RFC 7662 §2.2. When Active is false every
// other field MUST be its zero value so the JSON is exactly {"active":false}.
type IntrospectionResponse struct {
	Active   bool   `json:"active"`
	Sub       string `json:"sub,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

// inactiveIntrospection is the sentinel RFC 7662 response for any failure
// path — unknown token, wrong caller, expired, whatever. The spec is
// explicit that inactive responses never leak a reason.
var inactiveIntrospection = IntrospectionResponse{Active: false}

// Introspect validates that the calling client is confidential and holds
// the "introspect" role on its own service account before examining token.
func (s *OIDCService) Introspect(ctx context.Context, realmName, callerClientID, callerClientSecret, token string) (IntrospectionResponse, error) {
	realm, err := s.realms.GetByName(ctx, realmName)
	if err != nil {
		return inactiveIntrospection, core.InvalidRealm("unknown realm")
	}

	caller, err := s.clients.GetByClientID(ctx, realm.ID, callerClientID)
	if err != nil || !caller.Enabled || !caller.IsConfidential() {
		return inactiveIntrospection, nil
	}
	if subtle.ConstantTimeCompare([]byte(caller.Secret), []byte(callerClientSecret)) != 1 {
		return inactiveIntrospection, nil
	}

	callerUser, err := s.users.GetByUsername(ctx, realm.ID, domain.ServiceAccountUsername(caller.ClientID))
	if err != nil {
		return inactiveIntrospection, nil
	}
	callerRoles, err := s.roles.ListByUser(ctx, callerUser.ID)
	if err != nil {
		return inactiveIntrospection, nil
	}
	if !hasRoleNamed(callerRoles, "introspect") {
		return inactiveIntrospection, core.Forbidden("client is not authorized to introspect tokens")
	}

	claims, err := s.engine.Verify(ctx, realm.ID, token, jwtengine.TokenTypeAccess)
	if err != nil {
		return inactiveIntrospection, nil
	}
	if s.revoker != nil && s.revoker.IsRevoked(claims.ID) {
		return inactiveIntrospection, nil
	}

	return IntrospectionResponse{
		Active:    true,
		Sub:       claims.Subject,
		ClientID:  claims.AuthorizedParty,
		Scope:     claims.Scope,
		Exp:       claims.Expiry.Time().Unix(),
		Iat:       claims.IssuedAt.Time().Unix(),
		TokenType: string(claims.Type),
	}, nil
}

func hasRoleNamed(roles []domain.Role, name string) bool {
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Revoke marks a token's jti revoked, trying it as a refresh token first
// and falling back to an access token (RFC 7009 §2.1 lets the caller submit
// either, and the server must find the right one on its own). It is
// idempotent: an unknown, malformed, or already-revoked token still reports
// success.
func (s *OIDCService) Revoke(ctx context.Context, realmName, token string) error {
	realm, err := s.realms.GetByName(ctx, realmName)
	if err != nil {
		return core.InvalidRealm("unknown realm")
	}

	if claims, err := s.engine.Verify(ctx, realm.ID, token, jwtengine.TokenTypeRefresh); err == nil {
		if jti, err := uuid.Parse(claims.ID); err == nil {
			_ = s.refreshTokens.Revoke(ctx, jti)
		}
		return nil
	}

	if claims, err := s.engine.Verify(ctx, realm.ID, token, jwtengine.TokenTypeAccess); err == nil && s.revoker != nil {
		s.revoker.RevokeToken(claims.ID, claims.Expiry.Time())
	}
	return nil
}

// UserinfoResponse is the OIDC UserInfo response, filtered by the
// requesting token's granted scopes (spec §4.6).
type UserinfoResponse struct {
	Sub               string `json:"sub"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
}

func (s *OIDCService) Userinfo(ctx context.Context, realmName, accessToken string) (UserinfoResponse, error) {
	realm, err := s.realms.GetByName(ctx, realmName)
	if err != nil {
		return UserinfoResponse{}, core.InvalidRealm("unknown realm")
	}

	claims, err := s.engine.Verify(ctx, realm.ID, accessToken, jwtengine.TokenTypeAccess)
	if err != nil {
		return UserinfoResponse{}, core.InvalidRequest("invalid_token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return UserinfoResponse{}, core.InvalidRequest("invalid_token")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserinfoResponse{}, translateRepoErr(err)
	}

	scopes := strings.Fields(claims.Scope)
	resp := UserinfoResponse{Sub: user.ID.String()}
	if hasScope(scopes, "email") {
		resp.Email = user.Email
		resp.EmailVerified = user.EmailVerified
	}
	if hasScope(scopes, "profile") {
		resp.PreferredUsername = user.Username
		resp.GivenName = user.Firstname
		resp.FamilyName = user.Lastname
	}
	return resp, nil
}

func hasScope(scopes []string, want string) bool {
	if len(scopes) == 0 {
		// No explicit scope on the token is treated as "all granted
		// scopes" — matches how the teacher's own default-scope clients
		// behave when a request omits the scope parameter entirely.
		return true
	}
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// DiscoveryDocument is the subset of RFC 8414 / OIDC Discovery fields the
// core can populate without transport-layer knowledge of the request host;
// Discovery derives every endpoint URL from issuerBase.
type DiscoveryDocument struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	IntrospectionEndpoint            string   `json:"introspection_endpoint"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

func (s *OIDCService) Discovery(ctx context.Context, realmName string) (DiscoveryDocument, error) {
	realm, err := s.realms.GetByName(ctx, realmName)
	if err != nil {
		return DiscoveryDocument{}, core.InvalidRealm("unknown realm")
	}

	base := s.issuerBase(realm.Name)
	return DiscoveryDocument{
		Issuer:                 base,
		AuthorizationEndpoint:  base + "/protocol/openid-connect/auth",
		TokenEndpoint:          base + "/protocol/openid-connect/token",
		UserinfoEndpoint:       base + "/protocol/openid-connect/userinfo",
		JWKSURI:                base + "/protocol/openid-connect/certs",
		IntrospectionEndpoint:  base + "/protocol/openid-connect/token/introspect",
		RevocationEndpoint:     base + "/protocol/openid-connect/revoke",
		GrantTypesSupported: []string{
			string(GrantAuthorizationCode), string(GrantPassword),
			string(GrantRefreshToken), string(GrantClientCredentials),
		},
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
	}, nil
}

func (s *OIDCService) JWKS(ctx context.Context, realmName string) (jose.JSONWebKeySet, error) {
	realm, err := s.realms.GetByName(ctx, realmName)
	if err != nil {
		return jose.JSONWebKeySet{}, core.InvalidRealm("unknown realm")
	}
	keys, err := s.engine.JWKS(ctx, realm.ID)
	if err != nil {
		return jose.JSONWebKeySet{}, core.Internal(err)
	}
	return keys, nil
}
