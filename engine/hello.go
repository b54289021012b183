package engine

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/sec51/bolt/core"
)

// armHelloFlow runs once the data channel is open and the remote
// ephemeral public key is known (spec §4.5.2). If identity is configured
// it sends the encrypted HELLO and arms the 5s timeout; otherwise it
// transitions immediately to a legacy post_hello session. Must be called
// with mu held.
func (e *Engine) armHelloFlow() {
	if !e.identityConfigured {
		e.capabilities = nil // legacy sessions negotiate nothing
		e.state = StatePostHello
		e.callbacks.verificationState(VerificationEvent{State: VerificationLegacy})
		e.logger.Debug().Msg("legacy session: no identity configured, skipping HELLO")
		return
	}

	if err := e.sendHelloLocked(); err != nil {
		e.callbacks.error(core.NewConnectionError("failed to send HELLO: " + err.Error()))
		e.disconnectLocked()
		return
	}

	gen := e.generation
	e.helloTimer = time.AfterFunc(e.cfg.HelloTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.staleGeneration(gen) || e.helloComplete {
			return
		}
		e.callbacks.error(core.NewConnectionError("HELLO handshake timed out while identity is required"))
		e.disconnectLocked()
	})
}

func (e *Engine) sendHelloLocked() error {
	inner := helloInner{
		Type:              "hello",
		Version:           core.BoltVersion,
		IdentityPublicKey: base64.StdEncoding.EncodeToString(e.identity.Public[:]),
		Capabilities:      append([]string(nil), e.localCapabilities...),
	}
	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return core.NewEncryptionError("could not marshal HELLO payload")
	}

	sealed, err := core.SealBoxPayload(innerJSON, &e.remoteEphemeralPub, &e.ephemeral.Secret)
	if err != nil {
		return err
	}

	wire := helloWire{Type: "hello", Payload: sealed}
	data, err := json.Marshal(wire)
	if err != nil {
		return core.NewEncryptionError("could not marshal HELLO frame")
	}
	return e.sendRaw(data)
}

// waitForHello blocks the calling goroutine until the HELLO handshake
// completes (or the session closes). Used by sendFile (spec §4.5.5 step
// 1). Safe to call from outside the engine's own callback goroutines.
func (e *Engine) waitForHello() {
	e.mu.Lock()
	if e.helloComplete || e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	e.helloWaiters = append(e.helloWaiters, ch)
	e.mu.Unlock()

	<-ch
}

// processHello implements spec §4.5.3: a strictly single-entry, fail-
// closed handler for the inbound HELLO frame. Must be called with mu
// held. Reentrancy is ruled out by dispatch.go's own state check
// (onMessageLocked rejects a second "hello" frame once state has left
// StatePreHello) combined with mu serializing every call into this
// function in the first place.
func (e *Engine) processHello(wire helloWire) {
	// Step 1: keys present?
	if !e.identityConfigured || core.IsZeroKey(e.ephemeral.Secret[:]) || !e.haveRemoteEphemeral {
		e.fail(core.HelloDecryptFail, core.NewConnectionError("no local keys available to process HELLO"))
		return
	}

	// Step 2: decrypt.
	plaintext, err := core.OpenBoxPayload(wire.Payload, &e.remoteEphemeralPub, &e.ephemeral.Secret)
	if err != nil {
		e.fail(core.HelloDecryptFail, core.NewConnectionError("could not decrypt HELLO payload"))
		return
	}

	// Step 3: parse.
	var inner helloInner
	if err := json.Unmarshal(plaintext, &inner); err != nil {
		e.fail(core.HelloParseError, core.NewConnectionError("could not parse HELLO payload"))
		return
	}

	// Step 4: schema.
	if inner.Type != "hello" || inner.Version != core.BoltVersion || inner.IdentityPublicKey == "" {
		e.fail(core.HelloSchemaError, core.NewConnectionError("HELLO payload failed schema validation"))
		return
	}

	// Step 5: decode identity public key.
	remoteIdentity, err := base64.StdEncoding.DecodeString(inner.IdentityPublicKey)
	if err != nil || len(remoteIdentity) != core.PublicKeyLength {
		e.fail(core.HelloSchemaError, core.NewConnectionError("HELLO identityPublicKey is not a valid 32-byte key"))
		return
	}

	// Step 6: capability bounds.
	capabilities := inner.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}
	if len(capabilities) > core.MaxCapabilities {
		e.fail(core.ProtocolViolation, core.NewConnectionError("too many capabilities in HELLO"))
		return
	}
	for _, c := range capabilities {
		// len(c) is the UTF-8 byte length of a Go string, matching the
		// spec's "64 UTF-8 bytes" bound directly.
		if len(c) > core.MaxCapabilityBytesLen {
			e.fail(core.ProtocolViolation, core.NewConnectionError("capability too long"))
			return
		}
	}

	// Step 7: downgrade defence.
	if e.identityConfigured && !hasCapability(capabilities, core.CapabilityEnvelopeV1) {
		e.fail(core.ProtocolViolation, core.NewConnectionError("missing required capability: "+core.CapabilityEnvelopeV1))
		return
	}

	// Step 8: negotiate, immutable from here on.
	e.capabilities = negotiateCapabilities(capabilities, e.localCapabilities)

	// Step 9: TOFU pin check.
	verification := VerificationEvent{}
	if e.pinStore != nil && e.remotePeerCode != "" {
		var remoteIdentityKey [core.PublicKeyLength]byte
		copy(remoteIdentityKey[:], remoteIdentity)

		outcome, err := core.VerifyPinnedIdentity(e.pinStore, e.remotePeerCode, remoteIdentityKey)
		if err != nil {
			if mismatch, ok := err.(*core.KeyMismatchError); ok {
				e.fail(core.KeyMismatch, mismatch)
				return
			}
			e.fail(core.ProtocolViolation, err)
			return
		}
		switch outcome.Kind {
		case core.PinOutcomePinned:
			verification.State = VerificationUnverified
		case core.PinOutcomeVerified:
			if outcome.Verified {
				verification.State = VerificationVerified
			} else {
				verification.State = VerificationUnverified
			}
		}
	} else {
		verification.State = VerificationUnverified
	}

	e.remoteIdentityKey = remoteIdentity

	// Step 10: SAS.
	sas, err := core.ComputeSAS(e.identity.Public[:], remoteIdentity, e.ephemeral.Public[:], e.remoteEphemeralPub[:])
	if err != nil {
		e.fail(core.ProtocolViolation, err)
		return
	}
	verification.SASCode = sas

	// Step 11: emit onVerificationState exactly once per session.
	if !e.verificationSent {
		e.verificationSent = true
		e.callbacks.verificationState(verification)
	}

	// Step 12: clear timeout, transition, resolve waiters.
	if e.helloTimer != nil {
		e.helloTimer.Stop()
		e.helloTimer = nil
	}
	e.state = StatePostHello
	e.helloComplete = true
	for _, w := range e.helloWaiters {
		close(w)
	}
	e.helloWaiters = nil
}
