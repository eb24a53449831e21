package credential

import (
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidCode is returned when a submitted TOTP code fails verification.
var ErrInvalidCode = errors.New("credential: invalid or expired code")

// TOTPEnrollment is the result of starting OTP enrollment for a user: the
// raw secret to persist as a Credential, and the otpauth:// URI to render
// as a QR code (spec §4.2).
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// EnrollTOTP generates a new 20-byte base32 secret for email under issuer,
// following RFC 6238 defaults: SHA1, 6 digits, 30s period.
func EnrollTOTP(issuer, email string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  20,
	})
	if err != nil {
		return TOTPEnrollment{}, err
	}
	return TOTPEnrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyTOTP validates code against secret at time t, allowing one 30s step
// of clock drift in either direction (spec §4.2, testable property 5).
func VerifyTOTP(code, secret string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
