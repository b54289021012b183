package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a 32-byte X25519 public/secret pair. Used for both the
// long-lived identity keypair and the per-session ephemeral keypair.
type KeyPair struct {
	Public [PublicKeyLength]byte
	Secret [SecretKeyLength]byte
}

// GenerateKeyPair produces a fresh X25519 keypair via box.GenerateKey. It
// is used both for identity keys (persisted) and ephemeral keys (session
// scoped, zeroized on disconnect).
func GenerateKeyPair() (KeyPair, error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, NewEncryptionError("could not generate key pair")
	}
	return KeyPair{Public: *pub, Secret: *sec}, nil
}

// Zeroize overwrites the secret half of the pair with zeros. Callers MUST
// call this before releasing a KeyPair, per the session-wide invariant
// that secret keys are always zeroized on session end.
func (kp *KeyPair) Zeroize() {
	for i := range kp.Secret {
		kp.Secret[i] = 0
	}
}

// ZeroizeBytes overwrites a byte slice in place. Used for remotePublicKey
// and remoteIdentityKey buffers on disconnect (spec §4.5.8).
func ZeroizeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// IsZeroKey reports whether a 32-byte key buffer is all zeros, constant
// time so that checking a secret buffer does not leak timing.
func IsZeroKey(b []byte) bool {
	zero := make([]byte, len(b))
	return subtle.ConstantTimeCompare(b, zero) == 1
}

// SealBoxPayload authenticated-encrypts plaintext for remotePub using
// senderSecret, with a fresh uniformly random 24-byte nonce per call, and
// returns base64(nonce‖ciphertext). Every call produces distinct
// ciphertext for identical plaintext because the nonce is freshly drawn
// from crypto/rand rather than derived deterministically.
func SealBoxPayload(plaintext []byte, remotePub, senderSecret *[PublicKeyLength]byte) (string, error) {
	var nonce [NonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", NewEncryptionError("could not generate nonce")
	}

	sealed := box.Seal(nonce[:], plaintext, &nonce, remotePub, senderSecret)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenBoxPayload decodes a base64(nonce‖ciphertext) payload produced by
// SealBoxPayload and authenticated-decrypts it for receiverSecret using
// senderPub.
func OpenBoxPayload(sealedB64 string, senderPub, receiverSecret *[PublicKeyLength]byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealedB64)
	if err != nil {
		return nil, NewEncryptionError("sealed payload is not valid base64")
	}
	if len(raw) < NonceLength {
		return nil, NewEncryptionError("sealed payload too short")
	}

	var nonce [NonceLength]byte
	copy(nonce[:], raw[:NonceLength])
	ciphertext := raw[NonceLength:]

	plaintext, ok := box.Open(nil, ciphertext, &nonce, senderPub, receiverSecret)
	if !ok {
		return nil, NewEncryptionError("decryption failed")
	}
	return plaintext, nil
}

// SHA256 returns the 32-byte SHA-256 digest of data, the file-hash
// algorithm named in spec §4.1.
func SHA256(data []byte) [FileHashLength]byte {
	return sha256.Sum256(data)
}
