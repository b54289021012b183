package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sec51/bolt/core"
	"github.com/sec51/bolt/metrics"
)

// activeTransfer is the receiver-side reconstruction state for one
// transfer (spec §3 "Active transfer (receiver side)").
type activeTransfer struct {
	transferID        string
	filename          string
	totalChunks       int
	fileSize          int
	buffer            [][]byte
	received          map[int]struct{}
	remoteIdentityKey []byte // nil on the legacy path
	expectedHash      []byte // nil unless bolt.file-hash negotiated
}

func newActiveTransfer(transferID, filename string, totalChunks, fileSize int, remoteIdentityKey []byte) *activeTransfer {
	return &activeTransfer{
		transferID:        transferID,
		filename:          filename,
		totalChunks:       totalChunks,
		fileSize:          fileSize,
		buffer:            make([][]byte, totalChunks),
		received:          make(map[int]struct{}),
		remoteIdentityKey: remoteIdentityKey,
	}
}

func (t *activeTransfer) complete() bool {
	return len(t.received) == t.totalChunks
}

func (t *activeTransfer) assemble() []byte {
	out := make([]byte, 0, t.fileSize)
	for _, chunk := range t.buffer {
		out = append(out, chunk...)
	}
	return out
}

// drainWaiter holds the single-shot completion slot for one pending
// back-pressure wait (spec §4.5.5). disconnect() cancels any pending
// waiter with a rejection.
type drainWaiter struct {
	generation uint64
	done       chan error
}

// Engine is the per-session state machine and file-transfer engine (spec
// §4.5). All mutation happens under mu, which stands in for the
// single-threaded cooperative task the spec describes: every public
// entry point and every transport callback holds mu around each step that
// reads or mutates session state (SendFile releases it while it waits for
// HELLO, drain, pause or the rate limiter), so no two mutations of session
// state ever interleave, matching §5's
// requirement that multi-threaded runtimes serialize callbacks into the
// engine's task.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	callbacks Callbacks
	logger    zerolog.Logger

	signaling         SignalingProvider
	unsubscribeSignal func()
	dc                DataChannel
	pc                PeerConnection

	state      SessionState
	generation uint64

	identityConfigured bool
	identity           core.IdentityKeyPair
	ephemeral          core.KeyPair

	remoteEphemeralPub  [core.PublicKeyLength]byte
	remoteIdentityKey   []byte // nil until known
	remotePeerCode      string
	haveRemoteEphemeral bool

	pinStore core.PinPersistence

	localCapabilities []string
	capabilities      []string // negotiated; immutable after post_hello

	helloTimer    *time.Timer
	helloComplete bool
	helloWaiters  []chan struct{}

	verificationSent bool

	sendTransferIDs map[string]string          // filename -> transferId (sender side)
	activeTransfers map[string]*activeTransfer // transferId -> state (guarded path)
	legacyTransfers map[string]*activeTransfer // filename -> state (legacy path)

	pausedFiles    map[string]bool
	cancelledFiles map[string]bool

	completionTimers map[string]*time.Timer

	drainWaiters []*drainWaiter
	limiter      *rate.Limiter

	metrics *metrics.Registry
}

// New constructs an Engine in StatePreHello. identity is the caller's
// long-lived keypair when IdentityConfigured is true; pinStore may be nil
// to disable TOFU pinning.
func New(cfg Config, callbacks Callbacks, signaling SignalingProvider, identity core.IdentityKeyPair, pinStore core.PinPersistence) *Engine {
	e := &Engine{
		cfg:                cfg,
		callbacks:          callbacks,
		logger:             log.With().Str("component", "bolt.engine").Logger(),
		signaling:          signaling,
		identityConfigured: cfg.IdentityConfigured,
		identity:           identity,
		pinStore:           pinStore,
		localCapabilities:  append([]string(nil), core.Capabilities...),
		sendTransferIDs:    make(map[string]string),
		activeTransfers:    make(map[string]*activeTransfer),
		legacyTransfers:    make(map[string]*activeTransfer),
		pausedFiles:        make(map[string]bool),
		cancelledFiles:     make(map[string]bool),
		completionTimers:   make(map[string]*time.Timer),
		limiter:            rate.NewLimiter(rate.Inf, 1),
		metrics:            metrics.NewRegistry(cfg.MetricsEnabled),
	}
	return e
}

// State returns the current session state.
func (e *Engine) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Generation returns the current session-generation counter (spec §3,
// §4.5.1, §9). Exposed for tests asserting stale-callback suppression.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Capabilities returns the negotiated capability set, or nil before
// post_hello.
func (e *Engine) Capabilities() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.capabilities...)
}

// currentGeneration must be called with mu held.
func (e *Engine) currentGeneration() uint64 {
	return e.generation
}

// staleGeneration reports whether gen no longer matches the live
// session. Must be called with mu held.
func (e *Engine) staleGeneration(gen uint64) bool {
	return gen != e.generation
}

func (e *Engine) envelopeNegotiated() bool {
	return hasCapability(e.capabilities, core.CapabilityEnvelopeV1)
}

func (e *Engine) fileHashNegotiated() bool {
	return hasCapability(e.capabilities, core.CapabilityFileHash)
}

// SetChunkRateLimit caps how many chunks per second SendFile may emit,
// layered underneath the transport's own drain-signal back-pressure
// (spec §4.5.5). The default Engine has no limit (rate.Inf).
func (e *Engine) SetChunkRateLimit(chunksPerSecond rate.Limit, burst int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limiter = rate.NewLimiter(chunksPerSecond, burst)
}
