package engine

import (
	"time"

	"github.com/sec51/bolt/core"
)

// Config configures an Engine instance. NewConfig returns the documented
// defaults; callers start from it and override fields. Fields are used as
// given: apart from a non-positive ChunkSize, which SendFile replaces with
// core.DefaultChunkSize, a zero value is not replaced by its default.
type Config struct {
	// ChunkSize is the plaintext byte size of each file-chunk (spec
	// §4.1: default 16384).
	ChunkSize int

	// HelloTimeout is how long the engine waits for the peer's HELLO
	// before failing closed (spec §4.5.2: 5s).
	HelloTimeout time.Duration

	// ConnectTimeout bounds the signaling + ICE negotiation performed by
	// Connect (spec §5c: 30s).
	ConnectTimeout time.Duration

	// CompletionDelay is the delay before the sender emits its
	// "completed" progress event after the final chunk (spec §4.5.5
	// step 6: ~50ms).
	CompletionDelay time.Duration

	// PausePollInterval is the cadence at which a paused sender polls
	// for resume (spec §4.5.5 step 5: ~100ms).
	PausePollInterval time.Duration

	// BackpressureLowWatermark is the buffered-byte threshold below
	// which the transport is considered drained (spec §4.5.5).
	BackpressureLowWatermark uint64

	// IdentityConfigured gates whether this instance performs the
	// encrypted HELLO handshake at all, or runs as a legacy session
	// (spec §4.5.2).
	IdentityConfigured bool

	// MetricsEnabled feature-flags the metrics package (spec §9).
	MetricsEnabled bool
}

// NewConfig returns a Config populated with spec-mandated defaults.
func NewConfig() Config {
	return Config{
		ChunkSize:                core.DefaultChunkSize,
		HelloTimeout:             5 * time.Second,
		ConnectTimeout:           30 * time.Second,
		CompletionDelay:          50 * time.Millisecond,
		PausePollInterval:        100 * time.Millisecond,
		BackpressureLowWatermark: 512 * 1024,
		IdentityConfigured:       true,
		MetricsEnabled:           false,
	}
}
