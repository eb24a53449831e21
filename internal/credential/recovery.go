package credential

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// RecoveryCodeFormat selects the character set recovery codes are drawn
// from (spec §4.2).
type RecoveryCodeFormat string

const (
	RecoveryNumeric      RecoveryCodeFormat = "numeric"
	RecoveryAlphanumeric RecoveryCodeFormat = "alphanumeric"
)

const (
	numericAlphabet      = "0123456789"
	alphanumericAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no ambiguous chars
	recoveryCodeLength   = 10
)

// ErrRecoveryCodeUsed is returned when a recovery code has already been
// burned.
var ErrRecoveryCodeUsed = errors.New("credential: recovery code already used")

// GenerateRecoveryCodes produces n single-use codes in the given format.
// Codes are returned in plaintext for one-time display; callers must hash
// each with HashPassword before persisting.
func GenerateRecoveryCodes(n int, format RecoveryCodeFormat) ([]string, error) {
	alphabet := numericAlphabet
	if format == RecoveryAlphanumeric {
		alphabet = alphanumericAlphabet
	}
	codes := make([]string, n)
	for i := range codes {
		code, err := randomCode(alphabet, recoveryCodeLength)
		if err != nil {
			return nil, fmt.Errorf("credential: generate recovery code: %w", err)
		}
		codes[i] = code
	}
	return codes, nil
}

func randomCode(alphabet string, length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// VerifyRecoveryCode checks a plaintext code against its stored hash. The
// actual single-use "burn" semantics (mark-used-exactly-once) are a
// repository-level conditional update; this function only verifies the
// secret matches.
func VerifyRecoveryCode(code, hash string) error {
	if err := VerifyPassword(code, hash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
