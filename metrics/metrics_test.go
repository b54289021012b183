package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledRegistryIsNoOp(t *testing.T) {
	r := NewRegistry(false)
	r.RecordChunk("t1", 0, time.Now())
	assert.Nil(t, r.Snapshot())
	assert.Nil(t, r.PrometheusGatherer())
}

func TestRecordChunkDetectsStall(t *testing.T) {
	r := NewRegistry(true)
	base := time.Now()

	r.RecordChunk("t1", 0, base)
	r.RecordChunk("t1", 1, base.Add(100*time.Millisecond))
	r.RecordChunk("t1", 2, base.Add(800*time.Millisecond))

	samples := r.Snapshot()
	require.Len(t, samples, 3)
	assert.False(t, samples[0].Stalled)
	assert.False(t, samples[1].Stalled)
	assert.True(t, samples[2].Stalled)
}

func TestResetClearsSamples(t *testing.T) {
	r := NewRegistry(true)
	r.RecordChunk("t1", 0, time.Now())
	require.Len(t, r.Snapshot(), 1)

	r.Reset()
	assert.Empty(t, r.Snapshot())
}

func TestRingBufferBoundsMemory(t *testing.T) {
	r := NewRegistry(true)
	now := time.Now()
	for i := 0; i < ringCapacity+10; i++ {
		r.RecordChunk("t1", i, now.Add(time.Duration(i)*time.Millisecond))
	}
	assert.Len(t, r.Snapshot(), ringCapacity)
}

func TestPrometheusGathererExposesCollectors(t *testing.T) {
	r := NewRegistry(true)
	r.RecordChunk("t1", 0, time.Now())

	gatherer := r.PrometheusGatherer()
	require.NotNil(t, gatherer)

	families, err := gatherer.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
