package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedPeerCodeUsesOnlyAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateSecurePeerCode()
		require.NoError(t, err)
		assert.Len(t, code, PeerCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(PeerCodeAlphabet, c))
		}
		assert.False(t, strings.ContainsAny(code, "0O1IL"))
	}
}

func TestGeneratedLongPeerCodeHasDash(t *testing.T) {
	code, err := GenerateSecurePeerCodeLong()
	require.NoError(t, err)
	assert.Len(t, code, PeerCodeLength+3)
	assert.True(t, IsValidPeerCode(code))
}

func TestIsValidPeerCode(t *testing.T) {
	assert.True(t, IsValidPeerCode("ABCDEF"))
	assert.True(t, IsValidPeerCode("abcdef"))
	assert.True(t, IsValidPeerCode("ABCD-EFGH"))
	assert.True(t, IsValidPeerCode("ABCDEFGH"))
	assert.False(t, IsValidPeerCode("ABCDE")) // too short
	assert.False(t, IsValidPeerCode("ABCDE0")) // contains 0
	assert.False(t, IsValidPeerCode("ABCDEI")) // contains I
	assert.False(t, IsValidPeerCode(""))
}

func TestNormalizePeerCode(t *testing.T) {
	assert.Equal(t, "ABCDEFGH", NormalizePeerCode("abcd-efgh"))
	assert.Equal(t, "ABCDEF", NormalizePeerCode(" abcdef "))
}
