package engine

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sec51/bolt/core"
)

// buildChunkFrame seals plaintext as a file-chunk's inner ciphertext,
// assembles the fileChunkWire, and wraps the whole thing in a Profile
// Envelope v1 frame addressed from sender to receiver -- all performed
// synchronously in the calling goroutine so scenario tests can control
// delivery order precisely (spec §8 "out-of-order transfer").
func buildChunkFrame(t *testing.T, sender, receiver *testPeer, fc fileChunkWire, plaintext []byte) []byte {
	t.Helper()

	sender.engine.mu.Lock()
	senderSecret := sender.engine.ephemeral.Secret
	senderRemotePub := sender.engine.remoteEphemeralPub
	sender.engine.mu.Unlock()

	chunkCipher, err := core.SealBoxPayload(plaintext, &senderRemotePub, &senderSecret)
	require.NoError(t, err)
	fc.Type = "file-chunk"
	fc.Chunk = chunkCipher

	innerJSON, err := json.Marshal(fc)
	require.NoError(t, err)

	envelopeCipher, err := core.SealBoxPayload(innerJSON, &senderRemotePub, &senderSecret)
	require.NoError(t, err)

	env := envelopeWire{Type: "profile-envelope", Version: core.BoltVersion, Encoding: "base64", Payload: envelopeCipher}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func handshakeForTransfer(t *testing.T) (a, b *testPeer) {
	t.Helper()
	a, b = connectTestPeers(t, true, "PEERA5", "PEERB5")
	a.armHello(t)
	b.armHello(t)
	awaitVerification(t, a)
	awaitVerification(t, b)
	return a, b
}

func TestOutOfOrderTransferReassembles(t *testing.T) {
	a, b := handshakeForTransfer(t)

	full := []byte("chunk-zero|chunk-one!|chunk-two?")
	chunks := [][]byte{
		full[0:11],
		full[11:22],
		full[22:32],
	}
	const transferID = "abcdef0123456789abcdef0123456789"

	order := []int{2, 0, 1}
	for _, i := range order {
		fc := fileChunkWire{
			Filename:    "out-of-order.bin",
			ChunkIndex:  i,
			TotalChunks: 3,
			FileSize:    len(full),
			TransferID:  transferID,
		}
		frame := buildChunkFrame(t, a, b, fc, chunks[i])
		deliverRaw(b, frame)
	}

	progress := awaitProgress(t, b)
	assert.Equal(t, StatusCompleted, progress.Status)

	received := awaitReceived(t, b)
	assert.Equal(t, "out-of-order.bin", received.filename)
	assert.True(t, bytes.Equal(full, received.blob))

	b.engine.mu.Lock()
	_, stillActive := b.engine.activeTransfers[transferID]
	b.engine.mu.Unlock()
	assert.False(t, stillActive, "active-transfer entry should be cleared after completion")
}

func TestDuplicateChunkDropped(t *testing.T) {
	a, b := handshakeForTransfer(t)

	data := []byte("0123456789abcdef")
	const transferID = "11112222333344445555666677778888"
	fc := fileChunkWire{Filename: "dup.bin", ChunkIndex: 0, TotalChunks: 2, FileSize: 32, TransferID: transferID}

	frame := buildChunkFrame(t, a, b, fc, data)
	deliverRaw(b, frame)
	deliverRaw(b, frame) // duplicate: same transferId, same chunkIndex

	b.engine.mu.Lock()
	transfer, ok := b.engine.activeTransfers[transferID]
	b.engine.mu.Unlock()
	require.True(t, ok)
	assert.Len(t, transfer.received, 1)
}

func TestIntegrityMismatchDisconnects(t *testing.T) {
	a, b := handshakeForTransfer(t)

	data := []byte("the real file contents")
	badHash := ""
	for i := 0; i < 32; i++ {
		badHash += "aa"
	}
	const transferID = "99990000aaaa1111bbbb2222cccc3333"

	fc := fileChunkWire{
		Filename:    "mismatch.bin",
		ChunkIndex:  0,
		TotalChunks: 1,
		FileSize:    len(data),
		TransferID:  transferID,
		FileHash:    badHash,
	}
	frame := buildChunkFrame(t, a, b, fc, data)
	deliverRaw(b, frame)

	err := awaitError(t, b)
	require.Error(t, err)
	_, isIntegrity := err.(*core.IntegrityError)
	assert.True(t, isIntegrity, "expected *core.IntegrityError, got %T", err)
	assert.Equal(t, StateClosed, b.engine.State())

	select {
	case f := <-b.received:
		t.Fatalf("blob must not be delivered on integrity failure, got %q", f.filename)
	default:
	}
}

func TestRemoteCancelClearsState(t *testing.T) {
	a, b := handshakeForTransfer(t)

	const transferID = "cancel00cancel00cancel00cancel00"
	fc := fileChunkWire{Filename: "cancel.bin", ChunkIndex: 0, TotalChunks: 4, FileSize: 64, TransferID: transferID}
	frame := buildChunkFrame(t, a, b, fc, []byte("partial-data"))
	deliverRaw(b, frame)

	cancelFrame := buildChunkFrame(t, a, b, fileChunkWire{
		Filename: "cancel.bin", TransferID: transferID, Cancelled: true, CancelledBy: "sender",
	}, nil)
	deliverRaw(b, cancelFrame)

	progress := awaitProgress(t, b)
	assert.Equal(t, StatusCanceledBySender, progress.Status)

	b.engine.mu.Lock()
	_, stillActive := b.engine.activeTransfers[transferID]
	b.engine.mu.Unlock()
	assert.False(t, stillActive)
}

func TestSendFileRoundTrip(t *testing.T) {
	a, b := handshakeForTransfer(t)

	payload := bytes.Repeat([]byte("bolt-transfer-payload-"), 1200) // forces multiple chunks
	done := make(chan error, 1)
	go func() { done <- a.engine.SendFile("roundtrip.bin", payload) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("SendFile did not return in time")
	}

	received := awaitReceived(t, b)
	assert.Equal(t, "roundtrip.bin", received.filename)
	assert.True(t, bytes.Equal(payload, received.blob))
}
