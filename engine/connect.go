package engine

import (
	"context"
	"encoding/base64"

	"golang.org/x/sync/errgroup"

	"github.com/sec51/bolt/core"
)

// Connect drives ephemeral-key generation, signaling exchange, and
// WebRTC negotiation for one session, then opens the data channel and
// hands control to the HELLO handshake (spec §1 data flow, §5c). offerer
// selects which side creates the SDP offer; peerCode identifies the
// remote side on the signaling transport. Connect blocks until the data
// channel is open (at which point the HELLO handshake proceeds
// asynchronously) or cfg.ConnectTimeout elapses.
func (e *Engine) Connect(ctx context.Context, pc PeerConnection, peerCode string, offerer bool) error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return core.NewConnectionError("engine already closed")
	}
	keyPair, err := core.GenerateKeyPair()
	if err != nil {
		e.mu.Unlock()
		return core.NewEncryptionError("failed to generate ephemeral keypair")
	}
	e.ephemeral = keyPair
	e.remotePeerCode = peerCode
	e.pc = pc
	localEphB64 := base64.StdEncoding.EncodeToString(e.ephemeral.Public[:])
	e.mu.Unlock()

	opened := make(chan struct{})
	var openedOnce bool

	unsubscribe := e.signaling.OnSignal(func(sig Signal) {
		e.handleSignalLocked(pc, sig)
	})
	e.mu.Lock()
	e.unsubscribeSignal = unsubscribe
	e.mu.Unlock()

	pc.OnICECandidate(func(candidate string) {
		if candidate == "" {
			return
		}
		_ = e.signaling.SendSignal(NewSignal(SignalICECandidate, candidate, peerCode, ""))
	})

	bindDataChannel := func(dc DataChannel) {
		e.mu.Lock()
		e.dc = dc
		e.mu.Unlock()

		dc.OnOpen(func() {
			e.mu.Lock()
			if !openedOnce {
				openedOnce = true
				close(opened)
			}
			e.armHelloFlow()
			e.mu.Unlock()
		})
		dc.OnMessage(func(data []byte) {
			e.mu.Lock()
			e.onMessageLocked(data)
			e.mu.Unlock()
		})
		dc.OnClose(func() {
			e.mu.Lock()
			e.disconnectLocked()
			e.mu.Unlock()
		})
		dc.OnError(func(transportErr error) {
			e.mu.Lock()
			e.callbacks.error(core.NewConnectionError("transport error: " + transportErr.Error()))
			e.disconnectLocked()
			e.mu.Unlock()
		})
	}

	if offerer {
		dc, err := pc.CreateDataChannel("bolt")
		if err != nil {
			return core.NewConnectionError("failed to create data channel: " + err.Error())
		}
		bindDataChannel(dc)

		offerSDP, err := pc.CreateOffer()
		if err != nil {
			return core.NewConnectionError("failed to create offer: " + err.Error())
		}
		if err := e.signaling.SendSignal(NewSignal(SignalOffer, offerSDP, peerCode, localEphB64)); err != nil {
			return core.NewConnectionError("failed to send offer: " + err.Error())
		}
	} else {
		pc.OnDataChannel(bindDataChannel)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		timeoutCtx, cancel := context.WithTimeout(groupCtx, e.cfg.ConnectTimeout)
		defer cancel()
		select {
		case <-opened:
			return nil
		case <-timeoutCtx.Done():
			return core.NewConnectionError("connect timed out negotiating transport")
		}
	})

	if err := group.Wait(); err != nil {
		e.mu.Lock()
		e.disconnectLocked()
		e.mu.Unlock()
		return err
	}
	return nil
}

// handleSignalLocked processes one inbound signaling message. It takes
// mu only for the portion that touches Engine state, since
// PeerConnection calls (SDP/ICE processing) may themselves block on I/O
// and must not be made while holding mu.
func (e *Engine) handleSignalLocked(pc PeerConnection, sig Signal) {
	switch sig.Kind {
	case SignalOffer:
		if err := pc.SetRemoteDescription(sig.Data, true); err != nil {
			e.logger.Warn().Err(err).Msg("failed to apply remote offer")
			return
		}
		e.captureRemoteEphemeral(sig.EphemeralPublicKey)

		answerSDP, err := pc.CreateAnswer(sig.Data)
		if err != nil {
			e.logger.Warn().Err(err).Msg("failed to create answer")
			return
		}
		e.mu.Lock()
		localEphB64 := base64.StdEncoding.EncodeToString(e.ephemeral.Public[:])
		e.mu.Unlock()
		_ = e.signaling.SendSignal(NewSignal(SignalAnswer, answerSDP, sig.To, localEphB64))

	case SignalAnswer:
		if err := pc.SetRemoteDescription(sig.Data, false); err != nil {
			e.logger.Warn().Err(err).Msg("failed to apply remote answer")
			return
		}
		e.captureRemoteEphemeral(sig.EphemeralPublicKey)

	case SignalICECandidate:
		if err := pc.AddICECandidate(sig.Data); err != nil {
			e.logger.Debug().Err(err).Msg("failed to add remote ICE candidate")
		}
	}
}

func (e *Engine) captureRemoteEphemeral(b64 string) {
	if b64 == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw) != core.PublicKeyLength {
		e.logger.Warn().Msg("received malformed remote ephemeral public key")
		return
	}
	e.mu.Lock()
	copy(e.remoteEphemeralPub[:], raw)
	e.haveRemoteEphemeral = true
	e.mu.Unlock()
}
