package core

import "fmt"

// BoltError is the root of the internal error hierarchy (see spec §7).
// It is disjoint from WireCode: BoltError values are surfaced to the
// embedder via onError, WireCode values are what travels on the wire.
type BoltError struct {
	Message string
	Details string
}

func (e *BoltError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

func newBoltError(message, details string) BoltError {
	return BoltError{Message: message, Details: details}
}

// EncryptionError wraps NaCl box/secretbox seal and open failures.
type EncryptionError struct{ BoltError }

func NewEncryptionError(message string) *EncryptionError {
	return &EncryptionError{newBoltError(message, "")}
}

// ConnectionError covers handshake timeouts and transport-level failures.
type ConnectionError struct{ BoltError }

func NewConnectionError(message string) *ConnectionError {
	return &ConnectionError{newBoltError(message, "")}
}

// TransferError covers sender/receiver file-transfer failures that are not
// integrity failures (those are IntegrityError, which is always terminal).
type TransferError struct{ BoltError }

func NewTransferError(message string) *TransferError {
	return &TransferError{newBoltError(message, "")}
}

// IntegrityError is raised when the assembled blob's SHA-256 does not match
// the sender-provided fileHash. It is always terminal (§4.5.6, §7).
type IntegrityError struct{ BoltError }

func NewIntegrityError(message string) *IntegrityError {
	return &IntegrityError{newBoltError(message, "")}
}

// KeyMismatchError is raised by verifyPinnedIdentity when a pinned
// identity key disagrees with the one just presented over HELLO. It is
// terminal: the caller MUST emit KEY_MISMATCH and disconnect.
type KeyMismatchError struct {
	PeerCode string
	Expected []byte
	Received []byte
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("identity key mismatch for peer %s", e.PeerCode)
}

func NewKeyMismatchError(peerCode string, expected, received []byte) *KeyMismatchError {
	return &KeyMismatchError{PeerCode: peerCode, Expected: expected, Received: received}
}
