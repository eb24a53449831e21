package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(10, RecoveryAlphanumeric)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]bool)
	for _, c := range codes {
		assert.Len(t, c, recoveryCodeLength)
		assert.False(t, seen[c], "codes must be unique")
		seen[c] = true
	}
}

func TestGenerateRecoveryCodes_Numeric(t *testing.T) {
	codes, err := GenerateRecoveryCodes(5, RecoveryNumeric)
	require.NoError(t, err)
	for _, c := range codes {
		for _, r := range c {
			assert.Contains(t, numericAlphabet, string(r))
		}
	}
}

func TestVerifyRecoveryCode(t *testing.T) {
	codes, err := GenerateRecoveryCodes(1, RecoveryAlphanumeric)
	require.NoError(t, err)
	code := codes[0]

	hash, err := HashPassword(code, testParams())
	require.NoError(t, err)

	assert.NoError(t, VerifyRecoveryCode(code, hash))
	assert.ErrorIs(t, VerifyRecoveryCode("wrong-code-x", hash), ErrPasswordMismatch)
}
