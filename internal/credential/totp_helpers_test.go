package credential

import (
	"time"

	"github.com/pquerna/otp/totp"
)

// generateCodeAt is a test-only helper that derives the TOTP code a real
// authenticator app would show for secret at time t.
func generateCodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCode(secret, t)
}
