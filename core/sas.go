package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeSAS computes the 6-uppercase-hex-character short authentication
// string from both identity keys and both ephemeral keys:
//
//	SAS_INPUT = sha256( sort32(idA, idB) ‖ sort32(ephA, ephB) )
//	SAS       = uppercase_hex(SAS_INPUT[0..3])
//
// It is symmetric in role (computeSAS(a,b,c,d) == computeSAS(b,a,d,c)) and
// sensitive to any single-byte change in any input.
func ComputeSAS(idA, idB, ephA, ephB []byte) (string, error) {
	for _, k := range [][]byte{idA, idB, ephA, ephB} {
		if len(k) != PublicKeyLength {
			return "", NewEncryptionError("SAS input must be 32 bytes")
		}
	}

	idLo, idHi := sort32(idA, idB)
	ephLo, ephHi := sort32(ephA, ephB)

	h := sha256.New()
	h.Write(idLo)
	h.Write(idHi)
	h.Write(ephLo)
	h.Write(ephHi)
	digest := h.Sum(nil)

	encoded := hex.EncodeToString(digest[:3])
	return strings.ToUpper(encoded), nil
}

// sort32 lexicographically orders two 32-byte values, returning
// (smaller, larger). If equal, it returns them as given.
func sort32(a, b []byte) (lo, hi []byte) {
	if bytes.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}
