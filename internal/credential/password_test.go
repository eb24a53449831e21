package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams uses small Argon2 cost so the suite runs fast.
func testParams() Argon2Params {
	return Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		shouldError bool
		errType     error
	}{
		{name: "valid password", password: "securepassword123"},
		{name: "short password still hashes", password: "short"},
		{name: "empty password", password: "", shouldError: true, errType: ErrPasswordRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, testParams())
			if tt.shouldError {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.errType)
				assert.Empty(t, hash)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.Contains(t, hash, "argon2id$")
			assert.NotEqual(t, tt.password, hash)
		})
	}
}

func TestHashPasswordUniqueness(t *testing.T) {
	password := "testpassword123"

	hash1, err := HashPassword(password, testParams())
	require.NoError(t, err)
	hash2, err := HashPassword(password, testParams())
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "random salt should produce unique hashes")
}

func TestVerifyPassword(t *testing.T) {
	password := "securepassword123"
	hash, err := HashPassword(password, testParams())
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		assert.NoError(t, VerifyPassword(password, hash))
	})

	t.Run("wrong password fails", func(t *testing.T) {
		assert.ErrorIs(t, VerifyPassword("wrong-password", hash), ErrPasswordMismatch)
	})

	t.Run("empty password fails", func(t *testing.T) {
		assert.ErrorIs(t, VerifyPassword("", hash), ErrPasswordRequired)
	})

	t.Run("malformed hash fails closed", func(t *testing.T) {
		assert.ErrorIs(t, VerifyPassword(password, "not-a-hash"), ErrMalformedHash)
	})
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "too short", password: "abc123", wantErr: ErrPasswordTooShort},
		{name: "empty", password: "", wantErr: ErrPasswordRequired},
		{name: "valid", password: "goodenough", wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
