package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenRevocationStore_RevokeThenIsRevoked(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Stop()

	assert.False(t, store.IsRevoked("jti-1"))
	store.RevokeToken("jti-1", time.Now().Add(time.Hour))
	assert.True(t, store.IsRevoked("jti-1"))
	assert.False(t, store.IsRevoked("jti-2"))
}

func TestTokenRevocationStore_RevokeAllForUser(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Stop()

	issuedBefore := time.Now()
	store.RevokeAllForUser("user-1", time.Now().Add(time.Minute))

	assert.True(t, store.IsUserRevoked("user-1", issuedBefore))
	assert.False(t, store.IsUserRevoked("user-2", issuedBefore))
}

func TestTokenRevocationStore_CleanupRemovesExpiredEntries(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Stop()

	store.RevokeToken("expired", time.Now().Add(-time.Minute))
	store.RevokeToken("still-valid", time.Now().Add(time.Hour))

	store.cleanup()

	assert.False(t, store.IsRevoked("expired"))
	assert.True(t, store.IsRevoked("still-valid"))
}
