package core

import (
	"crypto/rand"
	"strings"
)

// randomAlphabetChars draws n unbiased characters from PeerCodeAlphabet
// using rejection sampling: random bytes are over-requested in batches so
// the loop terminates in expected near-constant time even though some
// bytes are discarded.
func randomAlphabetChars(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)

	// Over-request: with a 31/256 alphabet about 3% of bytes are
	// rejected, so batches of 2n leave ample headroom.
	batch := make([]byte, n*2)
	for b.Len() < n {
		if _, err := rand.Read(batch); err != nil {
			return "", NewEncryptionError("could not read random bytes for peer code")
		}
		for _, raw := range batch {
			if b.Len() == n {
				break
			}
			if int(raw) >= peerCodeRejectionCutoff {
				continue
			}
			b.WriteByte(PeerCodeAlphabet[int(raw)%len(PeerCodeAlphabet)])
		}
	}
	return b.String(), nil
}

// GenerateSecurePeerCode returns a 6-character peer code drawn from the
// 31-character unambiguous alphabet via rejection sampling.
func GenerateSecurePeerCode() (string, error) {
	return randomAlphabetChars(PeerCodeLength)
}

// GenerateSecurePeerCodeLong returns an 8-character "XXXX-XXXX" variant of
// the peer code for easier human transcription.
func GenerateSecurePeerCodeLong() (string, error) {
	raw, err := randomAlphabetChars(PeerCodeLength + 2)
	if err != nil {
		return "", err
	}
	return raw[:4] + "-" + raw[4:], nil
}

// IsValidPeerCode accepts 6- or 8-char codes (optional dash separator in
// the 8-char form), case-insensitive, with every character drawn from the
// peer-code alphabet.
func IsValidPeerCode(code string) bool {
	normalized := NormalizePeerCode(code)
	if len(normalized) != PeerCodeLength && len(normalized) != PeerCodeLength+2 {
		return false
	}
	for _, c := range normalized {
		if !strings.ContainsRune(PeerCodeAlphabet, c) {
			return false
		}
	}
	return true
}

// NormalizePeerCode removes dash separators and uppercases the input.
func NormalizePeerCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToUpper(strings.TrimSpace(code))
}
