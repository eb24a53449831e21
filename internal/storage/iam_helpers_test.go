package storage

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

// Note: Full integration tests for the IAM repositories require a database
// connection; these unit tests only exercise the pure helpers.

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestIsUniqueViolation_Wrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("insert realm"), &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))
}

func TestNullableUUID(t *testing.T) {
	assert.Nil(t, nullableUUID(uuid.Nil))

	id := uuid.New()
	assert.Equal(t, id, nullableUUID(id))
}
