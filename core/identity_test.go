package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIdentityGeneratesOnce(t *testing.T) {
	store := NewMemoryIdentityStore()

	first, err := GetOrCreateIdentity(store)
	require.NoError(t, err)
	assert.False(t, IsZeroKey(first.Public[:]))

	second, err := GetOrCreateIdentity(store)
	require.NoError(t, err)
	assert.Equal(t, first.Public, second.Public)
	assert.Equal(t, first.Secret, second.Secret)
}

func TestFileIdentityStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var salt [32]byte
	salt[0] = 0x42

	store := NewFileIdentityStore(dir, "alice", salt)

	original, err := GetOrCreateIdentity(store)
	require.NoError(t, err)

	reopened := NewFileIdentityStore(dir, "alice", salt)
	loaded, ok, err := reopened.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, original.Public, loaded.Public)
	assert.Equal(t, original.Secret, loaded.Secret)
}

func TestFileIdentityStoreLoadMissingReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	var salt [32]byte

	store := NewFileIdentityStore(dir, "bob", salt)
	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileIdentityStoreDifferentIdentifiersDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	var salt [32]byte

	alice := NewFileIdentityStore(dir, "alice", salt)
	bob := NewFileIdentityStore(dir, "bob", salt)

	aliceKP, err := GetOrCreateIdentity(alice)
	require.NoError(t, err)
	bobKP, err := GetOrCreateIdentity(bob)
	require.NoError(t, err)

	assert.NotEqual(t, aliceKP.Public, bobKP.Public)
}
