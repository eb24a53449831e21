package service

import (
	"crypto/rand"
	"encoding/base64"
)

// randomTokenBytes controls the entropy of opaque tokens minted by the
// service layer (authorization codes, broker CSRF state, magic-link
// tokens) — 32 bytes of crypto/rand input, base64url-encoded.
const randomTokenBytes = 32

// generateOpaqueToken mints a URL-safe random token, the Go equivalent of
// the original's generate_random_string (core/src/domain/common/mod.rs),
// sized for use as a bearer secret rather than a short display code.
func generateOpaqueToken() (string, error) {
	buf := make([]byte, randomTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
