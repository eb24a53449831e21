package jwtengine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL is the lifetime of issued access tokens.
	AccessTokenTTL = 1 * time.Hour
	// RefreshTokenTTL is the default lifetime of issued refresh tokens.
	RefreshTokenTTL = 30 * 24 * time.Hour
	// IDTokenTTL mirrors the access token lifetime.
	IDTokenTTL = AccessTokenTTL
)

// Token is a signed JWT paired with its expiry, mirroring the shape the
// discovery/token endpoints hand back to clients.
type Token struct {
	Raw       string
	ExpiresAt time.Time
}

// Engine signs and verifies JWTs using each realm's RSA key, resolved
// lazily through a KeyStore.
type Engine struct {
	keys   *KeyStore
	issuer func(realmName string) string
}

// NewEngine builds an Engine. issuerFn computes the "iss" claim for a
// given realm name (typically "https://<host>/realms/<realm>").
func NewEngine(keys *KeyStore, issuerFn func(realmName string) string) *Engine {
	return &Engine{keys: keys, issuer: issuerFn}
}

// Sign issues a JWT of kind typ for realm (realmID, realmName), expiring
// after ttl from now.
func (e *Engine) Sign(ctx context.Context, realmID uuid.UUID, realmName string, claims Claims, typ TokenType, ttl time.Duration) (Token, error) {
	kp, err := e.keys.GetOrGenerate(ctx, realmID)
	if err != nil {
		return Token{}, err
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims.Type = typ
	claims.Realm = realmName
	claims.Issuer = e.issuer(realmName)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.Expiry = jwt.NewNumericDate(expiresAt)
	if claims.ID == "" {
		claims.ID = uuid.New().String()
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: kp.PrivateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kp.ID.String()),
	)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return Token{Raw: raw, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates a JWT for realmID, checking signature,
// expiry, and that typ matches the claimed token type.
func (e *Engine) Verify(ctx context.Context, realmID uuid.UUID, tokenString string, typ TokenType) (Claims, error) {
	kp, err := e.keys.GetOrGenerate(ctx, realmID)
	if err != nil {
		return Claims{}, err
	}

	token, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	if err := token.Claims(&kp.PrivateKey.PublicKey, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: signature verification failed", ErrValidationFailed)
	}

	if claims.Type != typ {
		return Claims{}, fmt.Errorf("%w: unexpected token type %q", ErrValidationFailed, claims.Type)
	}

	if claims.Expiry == nil || claims.Expiry.Time().Before(time.Now()) {
		return Claims{}, ErrExpired
	}

	return claims, nil
}

// JWKS returns the realm's public signing key as a RFC 7517 JSON Web Key
// Set, for the discovery document's jwks_uri.
func (e *Engine) JWKS(ctx context.Context, realmID uuid.UUID) (jose.JSONWebKeySet, error) {
	kp, err := e.keys.GetOrGenerate(ctx, realmID)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}

	jwk := jose.JSONWebKey{
		Key:       &kp.PrivateKey.PublicKey,
		KeyID:     kp.ID.String(),
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}, nil
}
