// Package jwtengine issues and verifies the RS256 JWTs used across every
// realm: access tokens, refresh tokens, and ID tokens all flow through
// here. Each realm owns its own RSA-2048 signing key (spec §4.1).
package jwtengine

import "errors"

var (
	// ErrGenerationFailed is returned when key or token generation fails.
	ErrGenerationFailed = errors.New("jwtengine: token generation failed")
	// ErrValidationFailed is returned when signature verification fails or
	// the token's typ claim is not the expected type.
	ErrValidationFailed = errors.New("jwtengine: token validation failed")
	// ErrExpired is returned when a token's exp claim is in the past.
	ErrExpired = errors.New("jwtengine: token expired")
	// ErrRealmKeyNotFound is returned when no signing key exists for a realm
	// and one could not be generated.
	ErrRealmKeyNotFound = errors.New("jwtengine: realm signing key not found")
	// ErrInvalidToken is returned for malformed or unparsable tokens.
	ErrInvalidToken = errors.New("jwtengine: invalid token")
	// ErrInvalidKey is returned when a stored key cannot be parsed as RSA.
	ErrInvalidKey = errors.New("jwtengine: invalid key material")
)
