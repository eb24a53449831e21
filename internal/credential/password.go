// Package credential implements the credential and MFA machinery of spec
// §4.2: password hashing, TOTP, recovery codes and WebAuthn registration.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Password validation errors.
var (
	ErrPasswordTooShort  = errors.New("credential: password must be at least 8 characters")
	ErrPasswordTooLong   = errors.New("credential: password must not exceed 128 characters")
	ErrPasswordRequired  = errors.New("credential: password is required")
	ErrPasswordMismatch  = errors.New("credential: password does not match")
	ErrMalformedHash     = errors.New("credential: stored hash is malformed")
	ErrIncompatibleHash  = errors.New("credential: incompatible hash version")
)

// Argon2Params controls the cost of HashPassword. Defaults follow the OWASP
// recommendation for Argon2id (19 MiB memory is the library-minimum sane
// floor for interactive logins; production deployments should raise this).
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params mirrors the OWASP cheat-sheet baseline for Argon2id.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      19 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

const hashFormat = "argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"

// HashPassword hashes pw with Argon2id using p, returning an encoded string
// that carries its own parameters (so a later cost bump never breaks
// existing hashes), the same way the teacher's BcryptCost is read back out
// of bcrypt's own prefix.
func HashPassword(pw string, p Argon2Params) (string, error) {
	if pw == "" {
		return "", ErrPasswordRequired
	}
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credential: generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(pw), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf(hashFormat, argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		b64Encode(salt), b64Encode(hash)), nil
}

// VerifyPassword compares pw against an encoded hash produced by
// HashPassword. Uses a constant-time comparison on the decoded digest.
func VerifyPassword(pw, encoded string) error {
	if pw == "" {
		return ErrPasswordRequired
	}
	p, salt, hash, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	computed := argon2.IDKey([]byte(pw), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(hash)))
	if subtle.ConstantTimeCompare(hash, computed) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return Argon2Params{}, nil, nil, ErrIncompatibleHash
	}
	var p Argon2Params
	fields := strings.Split(parts[2], ",")
	if len(fields) != 3 {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return Argon2Params{}, nil, nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return Argon2Params{}, nil, nil, ErrMalformedHash
		}
		switch kv[0] {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Iterations = uint32(n)
		case "p":
			p.Parallelism = uint8(n)
		default:
			return Argon2Params{}, nil, nil, ErrMalformedHash
		}
	}
	salt, err := b64Decode(parts[3])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}
	hash, err := b64Decode(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrMalformedHash
	}
	return p, salt, hash, nil
}

// ValidatePassword enforces the length bounds used across the realm's
// interactive registration/reset flows.
func ValidatePassword(pw string) error {
	if pw == "" {
		return ErrPasswordRequired
	}
	n := 0
	for range pw {
		n++
	}
	if n < 8 {
		return ErrPasswordTooShort
	}
	if n > 128 {
		return ErrPasswordTooLong
	}
	return nil
}
