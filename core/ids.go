package core

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateTransferID returns a fresh 32-hex-character transfer identifier
// (spec §4.5.5 step 2): 16 cryptographically random bytes, hex encoded.
func GenerateTransferID() (string, error) {
	buf := make([]byte, TransferIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", NewEncryptionError("failed to generate transfer id")
	}
	return hex.EncodeToString(buf), nil
}
