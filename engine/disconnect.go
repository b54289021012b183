package engine

import (
	"time"

	"github.com/sec51/bolt/core"
)

// Disconnect tears the session down. It is idempotent: calling it after
// the session is already closed is a safe no-op (spec §4.5.8).
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnectLocked()
}

// disconnectLocked performs teardown in the exact order spec §4.5.8
// prescribes. Must be called with mu held; leaves mu held on return (the
// caller releases it).
func (e *Engine) disconnectLocked() {
	if e.state == StateClosed {
		return
	}

	// 1. increment session generation so stale callbacks become no-ops.
	e.generation++

	// 2. unregister the signaling listener.
	if e.unsubscribeSignal != nil {
		e.unsubscribeSignal()
		e.unsubscribeSignal = nil
	}

	// 3. zeroize and drop the ephemeral secret key.
	e.ephemeral.Zeroize()

	// 4. cancel any pending back-pressure wait with a rejection.
	for _, w := range e.drainWaiters {
		select {
		case w.done <- core.NewConnectionError("session disconnected"):
		default:
		}
	}
	e.drainWaiters = nil

	// 5. clear the completion timer(s) and the HELLO timer.
	for _, t := range e.completionTimers {
		t.Stop()
	}
	e.completionTimers = make(map[string]*time.Timer)
	if e.helloTimer != nil {
		e.helloTimer.Stop()
		e.helloTimer = nil
	}

	// 6-8. null handlers before closing the data channel, then close the
	// data channel and the peer connection underneath it.
	if e.dc != nil {
		e.dc.OnMessage(nil)
		e.dc.OnOpen(nil)
		e.dc.OnClose(nil)
		e.dc.OnError(nil)
		e.dc.SetLowWatermarkHandler(0, nil)
		_ = e.dc.Close()
		e.dc = nil
	}
	if e.pc != nil {
		_ = e.pc.Close()
		e.pc = nil
	}

	// 9. zeroize and drop remotePublicKey and remoteIdentityKey buffers.
	core.ZeroizeBytes(e.remoteEphemeralPub[:])
	e.haveRemoteEphemeral = false
	if e.remoteIdentityKey != nil {
		core.ZeroizeBytes(e.remoteIdentityKey)
		e.remoteIdentityKey = nil
	}

	// 10. clear all transfer maps.
	e.sendTransferIDs = make(map[string]string)
	e.activeTransfers = make(map[string]*activeTransfer)
	e.legacyTransfers = make(map[string]*activeTransfer)
	e.pausedFiles = make(map[string]bool)
	e.cancelledFiles = make(map[string]bool)

	// 11. reset metrics.
	e.metrics.Reset()

	// 12. set state to closed.
	e.state = StateClosed

	// 13. clear capability sets.
	e.capabilities = nil

	// Wake any waitForHello() waiters so they observe the terminal state
	// rather than hanging forever.
	for _, w := range e.helloWaiters {
		close(w)
	}
	e.helloWaiters = nil
}
