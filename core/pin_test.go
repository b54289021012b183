package core

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPinnedIdentityFirstContact(t *testing.T) {
	store := NewMemoryPinStore()
	var key [PublicKeyLength]byte
	key[0] = 0xAA

	outcome, err := VerifyPinnedIdentity(store, "PEER01", key)
	require.NoError(t, err)
	assert.Equal(t, PinOutcomePinned, outcome.Kind)

	rec, ok, err := store.GetPin("PEER01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, rec.IdentityPub)
	assert.False(t, rec.Verified)
}

func TestVerifyPinnedIdentityMatchingReturnsVerifiedFlag(t *testing.T) {
	store := NewMemoryPinStore()
	var key [PublicKeyLength]byte
	key[0] = 0xAA
	require.NoError(t, store.SetPin("PEER01", key, true))

	outcome, err := VerifyPinnedIdentity(store, "PEER01", key)
	require.NoError(t, err)
	assert.Equal(t, PinOutcomeVerified, outcome.Kind)
	assert.True(t, outcome.Verified)
}

func TestVerifyPinnedIdentityMismatchIsTerminal(t *testing.T) {
	store := NewMemoryPinStore()
	var k1, k2 [PublicKeyLength]byte
	k1[0] = 0xAA
	k2[0] = 0xBB
	require.NoError(t, store.SetPin("PEER01", k1, false))

	_, err := VerifyPinnedIdentity(store, "PEER01", k2)
	require.Error(t, err)

	var mismatch *KeyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "PEER01", mismatch.PeerCode)
	assert.Equal(t, k1[:], mismatch.Expected)
	assert.Equal(t, k2[:], mismatch.Received)
}

func TestMarkVerifiedNoOpForUnknownPeer(t *testing.T) {
	store := NewMemoryPinStore()
	assert.NoError(t, store.MarkVerified("NOBODY"))
}

func TestFilePinStoreMigratesLegacyEntry(t *testing.T) {
	dir := t.TempDir()
	store := NewFilePinStore(dir)

	var key [PublicKeyLength]byte
	key[0] = 0xCC
	legacy, err := json.Marshal(base64.StdEncoding.EncodeToString(key[:]))
	require.NoError(t, err)
	require.NoError(t, writeRecordFile(store.path("PEER02"), legacy))

	rec, ok, err := store.GetPin("PEER02")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, rec.IdentityPub)
	assert.False(t, rec.Verified)

	// migrated in place: a second read must use the current schema path
	raw, err := readFile(store.path("PEER02"))
	require.NoError(t, err)
	var entry filePinEntry
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, 1, entry.Schema)
}

func TestFilePinStoreMarkVerified(t *testing.T) {
	dir := t.TempDir()
	store := NewFilePinStore(dir)
	var key [PublicKeyLength]byte
	key[0] = 0xDD

	require.NoError(t, store.SetPin("PEER03", key, false))
	require.NoError(t, store.MarkVerified("PEER03"))

	rec, ok, err := store.GetPin("PEER03")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Verified)
}

func TestFilePinStoreRemovePin(t *testing.T) {
	dir := t.TempDir()
	store := NewFilePinStore(dir)
	var key [PublicKeyLength]byte

	require.NoError(t, store.SetPin("PEER04", key, false))
	require.NoError(t, store.RemovePin("PEER04"))

	_, ok, err := store.GetPin("PEER04")
	require.NoError(t, err)
	assert.False(t, ok)
}
