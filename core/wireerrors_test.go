package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWireErrorRegistryHasExactly22Codes(t *testing.T) {
	assert.Len(t, wireErrorRegistry, WireErrorCodeCount)
}

func TestIsValidWireErrorCodeAcceptsCanonicalCodes(t *testing.T) {
	for code := range wireErrorRegistry {
		assert.True(t, IsValidWireErrorCode(string(code)))
	}
}

func TestIsValidWireErrorCodeRejectsUnknown(t *testing.T) {
	assert.False(t, IsValidWireErrorCode(""))
	assert.False(t, IsValidWireErrorCode("NOT_A_REAL_CODE"))
	assert.False(t, IsValidWireErrorCode("version_mismatch")) // case sensitive
}
