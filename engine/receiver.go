package engine

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/sec51/bolt/core"
)

// handleFileChunkLocked implements spec §4.5.6-§4.5.7. remoteIdentityKey
// is the sender's identity key when the chunk arrived inside a Profile
// Envelope, or nil for a plaintext chunk. A chunk carrying a transferId
// takes the guarded path either way; one without takes the legacy path.
// Must be called with mu held.
func (e *Engine) handleFileChunkLocked(fc fileChunkWire, remoteIdentityKey []byte) {
	if fc.Cancelled {
		e.handleRemoteCancelLocked(fc)
		return
	}
	if fc.Paused || fc.Resumed {
		// Control-only message; no receiver-side reconstruction state to
		// touch. The sender's own pause/resume loop is authoritative.
		return
	}

	if fc.TotalChunks <= 0 || fc.ChunkIndex < 0 || fc.ChunkIndex >= fc.TotalChunks {
		e.logger.Warn().Str("filename", fc.Filename).Int("chunkIndex", fc.ChunkIndex).
			Int("totalChunks", fc.TotalChunks).Msg("[REPLAY_OOB] out-of-bounds chunk index, dropping")
		return
	}

	if fc.TransferID != "" {
		e.handleGuardedChunkLocked(fc, remoteIdentityKey)
		return
	}

	e.logger.Warn().Str("filename", fc.Filename).Msg("[REPLAY_UNGUARDED] chunk received without a transfer id")
	e.handleLegacyChunkLocked(fc)
}

func (e *Engine) handleGuardedChunkLocked(fc fileChunkWire, remoteIdentityKey []byte) {
	transfer, exists := e.activeTransfers[fc.TransferID]
	if !exists {
		transfer = newActiveTransfer(fc.TransferID, fc.Filename, fc.TotalChunks, fc.FileSize, remoteIdentityKey)
		if fc.FileHash != "" && e.fileHashNegotiated() {
			if expected, err := hex.DecodeString(fc.FileHash); err == nil {
				transfer.expectedHash = expected
			}
		}
		e.activeTransfers[fc.TransferID] = transfer
	} else if !bytes.Equal(transfer.remoteIdentityKey, remoteIdentityKey) {
		e.logger.Warn().Str("transferId", fc.TransferID).
			Msg("[REPLAY_XFER_MISMATCH] transfer id reused by a different identity, dropping")
		return
	}

	if _, dup := transfer.received[fc.ChunkIndex]; dup {
		e.logger.Warn().Str("transferId", fc.TransferID).Int("chunkIndex", fc.ChunkIndex).
			Msg("[REPLAY_DUP] duplicate chunk index, dropping")
		return
	}

	plaintext, err := core.OpenBoxPayload(fc.Chunk, &e.remoteEphemeralPub, &e.ephemeral.Secret)
	if err != nil {
		delete(e.activeTransfers, fc.TransferID)
		e.callbacks.progress(TransferProgress{
			Status:     StatusError,
			Filename:   fc.Filename,
			TransferID: fc.TransferID,
			Err:        err,
		})
		e.callbacks.error(core.NewTransferError("failed to decrypt chunk for " + fc.Filename))
		return
	}

	transfer.buffer[fc.ChunkIndex] = plaintext
	transfer.received[fc.ChunkIndex] = struct{}{}
	e.metrics.RecordChunk(fc.TransferID, fc.ChunkIndex, time.Now())

	if !transfer.complete() {
		return
	}

	blob := transfer.assemble()
	delete(e.activeTransfers, fc.TransferID)

	if transfer.expectedHash != nil {
		sum := core.SHA256(blob)
		if !bytes.Equal(sum[:], transfer.expectedHash) {
			e.fail(core.IntegrityFailed, core.NewIntegrityError("assembled file hash does not match expected hash: "+fc.Filename))
			return
		}
	}

	e.callbacks.progress(TransferProgress{
		Status:       StatusCompleted,
		Filename:     fc.Filename,
		TransferID:   fc.TransferID,
		CurrentChunk: transfer.totalChunks,
		TotalChunks:  transfer.totalChunks,
		FileSize:     transfer.fileSize,
	})
	e.callbacks.receiveFile(blob, fc.Filename)
}

func (e *Engine) handleLegacyChunkLocked(fc fileChunkWire) {
	transfer, exists := e.legacyTransfers[fc.Filename]
	if !exists {
		transfer = newActiveTransfer("", fc.Filename, fc.TotalChunks, fc.FileSize, nil)
		e.legacyTransfers[fc.Filename] = transfer
	}

	plaintext, err := core.OpenBoxPayload(fc.Chunk, &e.remoteEphemeralPub, &e.ephemeral.Secret)
	if err != nil {
		delete(e.legacyTransfers, fc.Filename)
		e.callbacks.progress(TransferProgress{Status: StatusError, Filename: fc.Filename, Err: err})
		e.callbacks.error(core.NewTransferError("failed to decrypt legacy chunk for " + fc.Filename))
		return
	}

	if fc.ChunkIndex < len(transfer.buffer) {
		transfer.buffer[fc.ChunkIndex] = plaintext
		transfer.received[fc.ChunkIndex] = struct{}{}
	}

	if !transfer.complete() {
		return
	}

	blob := transfer.assemble()
	delete(e.legacyTransfers, fc.Filename)
	e.callbacks.progress(TransferProgress{
		Status:       StatusCompleted,
		Filename:     fc.Filename,
		CurrentChunk: transfer.totalChunks,
		TotalChunks:  transfer.totalChunks,
		FileSize:     transfer.fileSize,
	})
	e.callbacks.receiveFile(blob, fc.Filename)
}

// handleRemoteCancelLocked implements spec §4.5.7: the peer cancelled an
// in-flight transfer. This is not an error condition.
func (e *Engine) handleRemoteCancelLocked(fc fileChunkWire) {
	if fc.TransferID != "" {
		delete(e.activeTransfers, fc.TransferID)
	}
	delete(e.legacyTransfers, fc.Filename)

	status := StatusCanceledByReceiver
	if fc.CancelledBy == "sender" {
		status = StatusCanceledBySender
	}
	e.callbacks.progress(TransferProgress{
		Status:     status,
		Filename:   fc.Filename,
		TransferID: fc.TransferID,
	})
}
