package engine

import (
	"encoding/json"

	"github.com/sec51/bolt/core"
)

// onMessageLocked implements the inbound dispatcher table of spec
// §4.5.1. Must be called with mu held (it is registered as the
// DataChannel's OnMessage handler, which always acquires mu first).
func (e *Engine) onMessageLocked(raw []byte) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		e.fail(core.ProtocolViolation, core.NewConnectionError("malformed top-level message"))
		return
	}

	if probe.Type == "hello" {
		if e.state != StatePreHello {
			e.fail(core.DuplicateHello, core.NewConnectionError("duplicate HELLO frame"))
			return
		}
		var wire helloWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			e.fail(core.HelloParseError, core.NewConnectionError("malformed HELLO frame"))
			return
		}
		e.processHello(wire)
		return
	}

	if e.state == StatePreHello {
		e.fail(core.InvalidState, core.NewConnectionError("message received before handshake"))
		return
	}

	if probe.Type == "profile-envelope" {
		e.handleEnvelopeLocked(raw)
		return
	}

	// From here on, every remaining type is plaintext (non-HELLO,
	// non-envelope). If envelope is negotiated, no plaintext message is
	// ever acceptable post-handshake.
	if e.envelopeNegotiated() {
		e.fail(core.EnvelopeRequired, core.NewConnectionError("plaintext message received after envelope negotiation"))
		return
	}

	e.dispatchPlaintext(probe.Type, raw)
}

// dispatchPlaintext handles legacy (non-enveloped) messages once we know
// envelope is not negotiated. Must be called with mu held.
func (e *Engine) dispatchPlaintext(msgType string, raw []byte) {
	switch msgType {
	case "error":
		var frame errorWire
		if err := json.Unmarshal(raw, &frame); err != nil {
			e.fail(core.ProtocolViolation, core.NewConnectionError("malformed error frame"))
			return
		}
		e.handleInboundErrorLocked(frame)

	case "file-chunk":
		var fc fileChunkWire
		if err := json.Unmarshal(raw, &fc); err != nil {
			e.fail(core.InvalidMessage, core.NewConnectionError("malformed file-chunk message"))
			return
		}
		if fc.Filename == "" {
			e.fail(core.InvalidMessage, core.NewConnectionError("file-chunk missing filename"))
			return
		}
		e.handleFileChunkLocked(fc, nil)

	case "":
		e.fail(core.UnknownMessageType, core.NewConnectionError("empty message type"))

	default:
		e.fail(core.UnknownMessageType, core.NewConnectionError("unknown message type: "+msgType))
	}
}

// handleEnvelopeLocked implements rows 4-6 and 11-12 of the dispatcher
// table: validating, decrypting, and recursing into a Profile Envelope
// v1 wrapper. Must be called with mu held.
func (e *Engine) handleEnvelopeLocked(raw []byte) {
	if !e.envelopeNegotiated() {
		e.fail(core.EnvelopeUnnegotiated, core.NewConnectionError("profile-envelope received but not negotiated"))
		return
	}

	var env envelopeWire
	if err := json.Unmarshal(raw, &env); err != nil {
		e.fail(core.EnvelopeInvalid, core.NewConnectionError("malformed profile-envelope frame"))
		return
	}
	if env.Version != core.BoltVersion || env.Encoding != "base64" || env.Payload == "" {
		e.fail(core.EnvelopeInvalid, core.NewConnectionError("profile-envelope failed validation"))
		return
	}
	if !e.haveRemoteEphemeral || core.IsZeroKey(e.ephemeral.Secret[:]) {
		e.fail(core.EnvelopeDecryptFail, core.NewConnectionError("no keys available to decrypt envelope"))
		return
	}

	plaintext, err := core.OpenBoxPayload(env.Payload, &e.remoteEphemeralPub, &e.ephemeral.Secret)
	if err != nil {
		e.fail(core.EnvelopeDecryptFail, core.NewConnectionError("envelope decryption failed"))
		return
	}

	var inner typeProbe
	if err := json.Unmarshal(plaintext, &inner); err != nil {
		e.fail(core.InvalidMessage, core.NewConnectionError("malformed enveloped message"))
		return
	}

	switch inner.Type {
	case "error":
		var frame errorWire
		if err := json.Unmarshal(plaintext, &frame); err != nil {
			e.fail(core.InvalidMessage, core.NewConnectionError("malformed enveloped error frame"))
			return
		}
		e.handleInboundErrorLocked(frame)

	case "file-chunk":
		var fc fileChunkWire
		if err := json.Unmarshal(plaintext, &fc); err != nil {
			e.fail(core.InvalidMessage, core.NewConnectionError("malformed enveloped file-chunk"))
			return
		}
		if fc.Filename == "" {
			e.fail(core.InvalidMessage, core.NewConnectionError("enveloped file-chunk missing filename"))
			return
		}
		e.handleFileChunkLocked(fc, e.remoteIdentityKey)

	default:
		e.fail(core.UnknownMessageType, core.NewConnectionError("unknown enveloped message type: "+inner.Type))
	}
}

// handleInboundErrorLocked implements spec §4.5.1's error-frame row,
// applied identically whether the error arrived plaintext or enveloped.
func (e *Engine) handleInboundErrorLocked(frame errorWire) {
	if !core.IsValidWireErrorCode(frame.Code) {
		e.fail(core.ProtocolViolation, core.NewConnectionError("invalid wire error code received: "+frame.Code))
		return
	}
	message := frame.Message
	if message == "" {
		message = string(frame.Code)
	}
	e.callbacks.error(core.NewConnectionError("remote closed with " + frame.Code + ": " + message))
	e.disconnectLocked()
}
