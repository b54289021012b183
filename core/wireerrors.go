package core

// WireCode is a canonical on-the-wire error code (spec §4.1). It is a
// distinct type from the Go error hierarchy in errors.go: WireCode values
// are what the protocol's {"type":"error","code":...} frame carries.
type WireCode string

// Protocol-class codes.
const (
	VersionMismatch  WireCode = "VERSION_MISMATCH"
	EncryptionFailed WireCode = "ENCRYPTION_FAILED"
	IntegrityFailed  WireCode = "INTEGRITY_FAILED"
	ReplayDetected   WireCode = "REPLAY_DETECTED"
	TransferFailed   WireCode = "TRANSFER_FAILED"
	LimitExceeded    WireCode = "LIMIT_EXCEEDED"
	ConnectionLost   WireCode = "CONNECTION_LOST"
	PeerNotFound     WireCode = "PEER_NOT_FOUND"
	AlreadyConnected WireCode = "ALREADY_CONNECTED"
	InvalidState     WireCode = "INVALID_STATE"
	KeyMismatch      WireCode = "KEY_MISMATCH"
)

// Enforcement-class codes.
const (
	DuplicateHello       WireCode = "DUPLICATE_HELLO"
	EnvelopeRequired     WireCode = "ENVELOPE_REQUIRED"
	EnvelopeUnnegotiated WireCode = "ENVELOPE_UNNEGOTIATED"
	EnvelopeDecryptFail  WireCode = "ENVELOPE_DECRYPT_FAIL"
	EnvelopeInvalid      WireCode = "ENVELOPE_INVALID"
	HelloParseError      WireCode = "HELLO_PARSE_ERROR"
	HelloDecryptFail     WireCode = "HELLO_DECRYPT_FAIL"
	HelloSchemaError     WireCode = "HELLO_SCHEMA_ERROR"
	InvalidMessage       WireCode = "INVALID_MESSAGE"
	UnknownMessageType   WireCode = "UNKNOWN_MESSAGE_TYPE"
	ProtocolViolation    WireCode = "PROTOCOL_VIOLATION"
)

// wireErrorRegistry is the exhaustive set of 22 canonical codes. Any code
// on the wire that is not a key of this map is invalid.
var wireErrorRegistry = map[WireCode]struct{}{
	VersionMismatch:  {},
	EncryptionFailed: {},
	IntegrityFailed:  {},
	ReplayDetected:   {},
	TransferFailed:   {},
	LimitExceeded:    {},
	ConnectionLost:   {},
	PeerNotFound:     {},
	AlreadyConnected: {},
	InvalidState:     {},
	KeyMismatch:      {},

	DuplicateHello:       {},
	EnvelopeRequired:     {},
	EnvelopeUnnegotiated: {},
	EnvelopeDecryptFail:  {},
	EnvelopeInvalid:      {},
	HelloParseError:      {},
	HelloDecryptFail:     {},
	HelloSchemaError:     {},
	InvalidMessage:       {},
	UnknownMessageType:   {},
	ProtocolViolation:    {},
}

// IsValidWireErrorCode gates both outbound emission and inbound parsing of
// error frames. Inbound error frames carrying any code that fails this
// check yield PROTOCOL_VIOLATION per the dispatcher table in §4.5.1.
func IsValidWireErrorCode(code string) bool {
	if code == "" {
		return false
	}
	_, ok := wireErrorRegistry[WireCode(code)]
	return ok
}

// WireErrorCodeCount is exported for tests asserting the registry's fixed
// size (22: 11 protocol + 11 enforcement).
const WireErrorCodeCount = 22
