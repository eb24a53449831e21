package jwtengine

import (
	"github.com/go-jose/go-jose/v4/jwt"
)

// TokenType distinguishes the three JWT kinds issued by a realm, carried
// in the "typ" claim so a verifier can reject a refresh token presented
// where an access token is expected, and vice versa (spec §4.1).
type TokenType string

const (
	TokenTypeAccess  TokenType = "Bearer"
	TokenTypeRefresh TokenType = "Refresh"
	TokenTypeID      TokenType = "ID"
)

// Claims is the claim set every ferriskey-issued JWT carries. It embeds
// the registered claims (iss, sub, aud, exp, iat, jti) and adds the
// realm-specific private claims.
type Claims struct {
	jwt.Claims
	AuthorizedParty string    `json:"azp,omitempty"`
	Type            TokenType `json:"typ"`
	Email           string    `json:"email,omitempty"`
	Realm           string    `json:"realm"`
	Scope           string    `json:"scope,omitempty"`
}
