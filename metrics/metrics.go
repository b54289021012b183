// Package metrics implements passive, feature-flagged transfer
// instrumentation (spec §4, §9). Nothing in this package may influence
// wire behavior: the engine calls into it only to record observations,
// never to make protocol decisions.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StallThreshold is the gap between consecutive chunk arrivals on a
// transfer above which the sample is flagged as stalled (spec §9).
const StallThreshold = 500 * time.Millisecond

// ringCapacity bounds memory use: only the most recent samples across all
// transfers are retained.
const ringCapacity = 1024

// Sample is one observed chunk event.
type Sample struct {
	TransferID string
	ChunkIndex int
	At         time.Time
	Stalled    bool
}

// Registry is a ring-buffer of recent chunk samples plus per-transfer
// bookkeeping needed to detect stalls. It is safe for concurrent use,
// though the engine itself is single-threaded cooperative and will only
// ever call it from its own task.
type Registry struct {
	mu          sync.Mutex
	enabled     bool
	buf         [ringCapacity]Sample
	next        int
	count       int
	lastArrival map[string]time.Time

	collectors *prometheusCollectors
}

// NewRegistry returns a Registry. When enabled is false, every method is
// a cheap no-op: the caller is expected to check Enabled() itself before
// doing any work to build arguments, but Registry also tolerates being
// called unconditionally.
func NewRegistry(enabled bool) *Registry {
	r := &Registry{
		enabled:     enabled,
		lastArrival: make(map[string]time.Time),
	}
	if enabled {
		r.collectors = newPrometheusCollectors()
	}
	return r
}

func (r *Registry) Enabled() bool {
	return r != nil && r.enabled
}

// RecordChunk records the arrival of chunkIndex for transferID at "now".
// Stall detection compares against the previous arrival for the same
// transferID; the first chunk of a transfer is never flagged.
func (r *Registry) RecordChunk(transferID string, chunkIndex int, now time.Time) {
	if !r.Enabled() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stalled := false
	if prev, ok := r.lastArrival[transferID]; ok {
		if now.Sub(prev) > StallThreshold {
			stalled = true
		}
	}
	r.lastArrival[transferID] = now

	r.buf[r.next] = Sample{TransferID: transferID, ChunkIndex: chunkIndex, At: now, Stalled: stalled}
	r.next = (r.next + 1) % ringCapacity
	if r.count < ringCapacity {
		r.count++
	}

	if r.collectors != nil {
		r.collectors.chunksTotal.Inc()
		if stalled {
			r.collectors.stallsTotal.Inc()
		}
	}
}

// RecordTransferStart/RecordTransferEnd adjust the active-transfer gauge
// and clear per-transfer stall bookkeeping.
func (r *Registry) RecordTransferStart(transferID string) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collectors != nil {
		r.collectors.activeTransfers.Inc()
	}
}

func (r *Registry) RecordTransferEnd(transferID string) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastArrival, transferID)
	if r.collectors != nil {
		r.collectors.activeTransfers.Dec()
	}
}

// Snapshot returns a copy of the currently retained samples, oldest
// first. Intended for tests and diagnostic tooling, not the hot path.
func (r *Registry) Snapshot() []Sample {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sample, r.count)
	start := (r.next - r.count + ringCapacity) % ringCapacity
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%ringCapacity]
	}
	return out
}

// Reset clears all retained samples and per-transfer state. Called by the
// engine on disconnect (spec §4.5.8: "reset metrics").
func (r *Registry) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.count = 0
	r.lastArrival = make(map[string]time.Time)
}

// prometheusCollectors holds the registry's exported metrics. Kept
// separate from Registry's core fields so the ring buffer itself never
// depends on prometheus types.
type prometheusCollectors struct {
	registry        *prometheus.Registry
	chunksTotal     prometheus.Counter
	stallsTotal     prometheus.Counter
	activeTransfers prometheus.Gauge
}

func newPrometheusCollectors() *prometheusCollectors {
	reg := prometheus.NewRegistry()
	c := &prometheusCollectors{
		registry: reg,
		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bolt_transfer_chunks_total",
			Help: "Total file-chunk messages received across all transfers.",
		}),
		stallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bolt_transfer_stalls_total",
			Help: "Chunk arrivals observed more than 500ms after the previous chunk on the same transfer.",
		}),
		activeTransfers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bolt_active_transfers",
			Help: "Number of in-flight sender-side transfers.",
		}),
	}
	reg.MustRegister(c.chunksTotal, c.stallsTotal, c.activeTransfers)
	return c
}

// PrometheusGatherer exposes the registry's Prometheus collectors for an
// HTTP exporter (e.g. promhttp.HandlerFor), or nil if metrics are
// disabled. See cmd/boltctl's serve-metrics subcommand.
func (r *Registry) PrometheusGatherer() prometheus.Gatherer {
	if !r.Enabled() || r.collectors == nil {
		return nil
	}
	return r.collectors.registry
}
