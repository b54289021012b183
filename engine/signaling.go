package engine

import (
	"github.com/google/uuid"
)

// SignalKind enumerates the signal message types that pass through the
// engine during connection setup (spec §6.2). The signaling transport
// itself -- how these are exchanged out of band -- is an external
// collaborator outside this module's scope.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// Signal is one message exchanged through a SignalingProvider. ID is a
// correlation identifier distinct from the protocol's own peer codes and
// transfer IDs -- it exists purely so an embedder's signaling transport
// can match requests to responses, deduplicate retransmits, and log
// end-to-end without parsing SDP/ICE payloads.
type Signal struct {
	ID   string
	Kind SignalKind
	Data string // opaque SDP or ICE candidate payload
	To   string // destination peer code, empty for broadcast/answer-to-sender

	// EphemeralPublicKey rides alongside an offer/answer signal, base64
	// encoded. It is not identity key material -- spec §3's invariant
	// that identity keys never leave the encrypted HELLO does not apply
	// to it -- it is the per-session key both ends need in hand before
	// either can seal a HELLO payload for the other.
	EphemeralPublicKey string
}

// NewSignal constructs a Signal with a fresh correlation ID.
func NewSignal(kind SignalKind, data, to, ephemeralPublicKeyB64 string) Signal {
	return Signal{ID: uuid.NewString(), Kind: kind, Data: data, To: to, EphemeralPublicKey: ephemeralPublicKeyB64}
}

// SignalingProvider is the external collaborator that exchanges
// session-description and ICE candidates with the remote peer (spec §1
// "out of scope", §6.2). The engine registers exactly one listener and
// unregisters it on disconnect; a SignalingProvider instance MAY be
// shared across multiple sequential Engine instances, and unregistering
// one Engine's listener MUST NOT affect another's.
type SignalingProvider interface {
	Connect() error
	Disconnect() error
	SendSignal(signal Signal) error
	// OnSignal registers cb to be invoked for every inbound Signal and
	// returns an idempotent unsubscribe function.
	OnSignal(cb func(Signal)) (unsubscribe func())
}

// PeerConnection is the local WebRTC peer connection abstraction the
// engine drives while it "performs WebRTC negotiation" (spec §1 data
// flow). engine/transport provides a pion/webrtc-backed implementation;
// tests use an in-memory pair that short-circuits negotiation.
type PeerConnection interface {
	CreateDataChannel(label string) (DataChannel, error)
	CreateOffer() (sdp string, err error)
	CreateAnswer(remoteOfferSDP string) (sdp string, err error)
	SetRemoteDescription(sdp string, isOffer bool) error
	AddICECandidate(candidate string) error
	OnICECandidate(cb func(candidate string))
	OnDataChannel(cb func(DataChannel))
	Close() error
}

// DataChannel is the boundary interface over the underlying reliable,
// ordered, bidirectional transport (spec §1: "typically a WebRTC data
// channel"). engine/transport provides a pion/webrtc-backed
// implementation; tests use an in-memory pipe implementation.
type DataChannel interface {
	// Send writes one framed message. It MUST NOT block past the point
	// where the implementation's own backpressure mechanism would;
	// callers use BufferedAmount/SetLowWatermarkHandler to wait for
	// drain themselves (spec §4.5.5).
	Send(data []byte) error

	// BufferedAmount reports the transport's current outbound backlog in
	// bytes, for the back-pressure check in spec §4.5.5.
	BufferedAmount() uint64

	// SetLowWatermarkHandler registers a callback fired whenever
	// BufferedAmount drops to or below watermark. Only one handler is
	// active at a time; registering a new one replaces the prior one.
	SetLowWatermarkHandler(watermark uint64, cb func())

	// OnMessage registers the inbound message handler.
	OnMessage(cb func(data []byte))

	// OnOpen/OnClose/OnError register transport lifecycle handlers.
	OnOpen(cb func())
	OnClose(cb func())
	OnError(cb func(err error))

	// IsOpen reports whether Send would currently succeed.
	IsOpen() bool

	Close() error
}
