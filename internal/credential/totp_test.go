package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollAndVerifyTOTP(t *testing.T) {
	enrollment, err := EnrollTOTP("ferriskey", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.URI, "otpauth://totp/")
	assert.Contains(t, enrollment.URI, "algorithm=SHA1")
	assert.Contains(t, enrollment.URI, "digits=6")
	assert.Contains(t, enrollment.URI, "period=30")
}

func TestVerifyTOTP_DriftWindow(t *testing.T) {
	enrollment, err := EnrollTOTP("ferriskey", "alice@example.com")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	code, err := generateCodeAt(enrollment.Secret, now)
	require.NoError(t, err)

	assert.True(t, VerifyTOTP(code, enrollment.Secret, now), "code must verify at generation time")
	assert.True(t, VerifyTOTP(code, enrollment.Secret, now.Add(30*time.Second)), "one step of drift must be tolerated")
	assert.False(t, VerifyTOTP(code, enrollment.Secret, now.Add(90*time.Second)), "outside the drift window must fail")
}

func TestVerifyTOTP_WrongCode(t *testing.T) {
	enrollment, err := EnrollTOTP("ferriskey", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, VerifyTOTP("000000", enrollment.Secret, time.Now()))
}
