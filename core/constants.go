// Package core implements the stateless cryptographic primitives, wire
// constants, peer-code/SAS helpers, and identity/pin persistence contracts
// that the Bolt protocol's session engine is built on.
package core

// Fixed protocol constants. These are wire-visible and MUST NOT change
// without bumping BoltVersion.
const (
	NonceLength     = 24 // NaCl box nonce size
	PublicKeyLength = 32 // X25519 public key size
	SecretKeyLength = 32 // X25519 secret key size

	DefaultChunkSize = 16384 // plaintext bytes per file-chunk message

	PeerCodeLength          = 6
	PeerCodeAlphabet        = "ABCDEFGHJKMNPQRSTUVWXYZ23456789" // 31 unambiguous characters
	peerCodeRejectionCutoff = (256 / len(PeerCodeAlphabet)) * len(PeerCodeAlphabet)

	SASLength  = 6  // uppercase hex characters
	SASEntropy = 24 // bits

	FileHashAlgorithm = "SHA-256"
	FileHashLength    = 32

	BoltVersion = 1

	TransferIDLength = 16 // random bytes; hex-encoded to 32 characters

	CapabilityNamespace  = "bolt."
	CapabilityFileHash   = "bolt.file-hash"
	CapabilityEnvelopeV1 = "bolt.profile-envelope-v1"

	MaxCapabilities       = 32
	MaxCapabilityBytesLen = 64
)

// Capabilities is the canonical set this engine advertises in HELLO.
// Order matters for wire compatibility with peers that parse positionally,
// so this is declared as a slice, not a set.
var Capabilities = []string{CapabilityFileHash, CapabilityEnvelopeV1}
