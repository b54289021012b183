package engine

import (
	"encoding/json"

	"github.com/sec51/bolt/core"
)

// sendRaw writes data directly to the data channel, ignoring envelope
// negotiation. The HELLO frame is sent through it directly; every other
// outbound frame reaches it via sendEnvelopeAware, already wrapped or not.
func (e *Engine) sendRaw(data []byte) error {
	if e.dc == nil || !e.dc.IsOpen() {
		return core.NewConnectionError("data channel not open")
	}
	return e.dc.Send(data)
}

// sendEnvelopeAware marshals inner as JSON and sends it wrapped in a
// Profile Envelope v1 when negotiated and keys are available, or as
// plaintext otherwise (spec §4.5.4). Must be called with mu held.
func (e *Engine) sendEnvelopeAware(inner any) error {
	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return core.NewEncryptionError("could not marshal outbound message")
	}

	if e.envelopeNegotiated() && e.haveRemoteEphemeral {
		sealed, err := core.SealBoxPayload(innerJSON, &e.remoteEphemeralPub, &e.ephemeral.Secret)
		if err != nil {
			return err
		}
		wire := envelopeWire{Type: "profile-envelope", Version: core.BoltVersion, Encoding: "base64", Payload: sealed}
		data, err := json.Marshal(wire)
		if err != nil {
			return core.NewEncryptionError("could not marshal envelope")
		}
		return e.sendRaw(data)
	}

	return e.sendRaw(innerJSON)
}

// emitWireError sends a {"type":"error",...} frame (enveloped if
// negotiated) and MUST only be called with a code validated by
// core.IsValidWireErrorCode. Must be called with mu held.
func (e *Engine) emitWireError(code core.WireCode, message string) {
	if !core.IsValidWireErrorCode(string(code)) {
		e.logger.Error().Str("code", string(code)).Msg("refusing to emit invalid wire error code")
		return
	}
	frame := errorWire{Type: "error", Code: string(code), Message: message}
	if err := e.sendEnvelopeAware(frame); err != nil {
		e.logger.Warn().Err(err).Str("code", string(code)).Msg("failed to emit wire error")
	}
}

// fail emits the given wire error, surfaces localErr to the embedder, and
// disconnects. This is the single choke point for "terminal and
// fail-closed" (spec §7) protocol violations. Must be called with mu
// held; disconnectLocked leaves mu held, so callers of fail still own
// the lock on return (see disconnect.go).
func (e *Engine) fail(code core.WireCode, localErr error) {
	e.emitWireError(code, localErr.Error())
	e.callbacks.error(localErr)
	e.disconnectLocked()
}
