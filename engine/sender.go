package engine

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/sec51/bolt/core"
)

// SendFile implements spec §4.5.5: it blocks until HELLO completes, then
// chunks, encrypts, and streams data to the peer, honoring pause/cancel
// and back-pressure at every step. It resolves (returns nil) once the
// final chunk is handed to the transport.
func (e *Engine) SendFile(filename string, data []byte) error {
	e.waitForHello()

	e.mu.Lock()
	if e.state == StateClosed || e.dc == nil || !e.dc.IsOpen() {
		e.mu.Unlock()
		return core.NewTransferError("Data channel not open")
	}
	gen := e.generation
	transferID, err := core.GenerateTransferID()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.sendTransferIDs[filename] = transferID
	e.pausedFiles[filename] = false
	e.cancelledFiles[filename] = false
	hashNegotiated := e.fileHashNegotiated()
	e.mu.Unlock()

	e.metrics.RecordTransferStart(transferID)
	defer e.metrics.RecordTransferEnd(transferID)

	var fileHash string
	if hashNegotiated {
		sum := core.SHA256(data)
		fileHash = hex.EncodeToString(sum[:])
	}

	chunkSize := e.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = core.DefaultChunkSize
	}
	totalChunks := (len(data) + chunkSize - 1) / chunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}

	for i := 0; i < totalChunks; i++ {
		if err := e.awaitSendable(filename, gen); err != nil {
			return err
		}

		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		raw := data[start:end]

		e.mu.Lock()
		if e.staleGeneration(gen) {
			e.mu.Unlock()
			return core.NewConnectionError("session disconnected during transfer")
		}
		ciphertext, sealErr := core.SealBoxPayload(raw, &e.remoteEphemeralPub, &e.ephemeral.Secret)
		e.mu.Unlock()
		if sealErr != nil {
			return sealErr
		}

		inner := fileChunkWire{
			Type:        "file-chunk",
			Filename:    filename,
			Chunk:       ciphertext,
			ChunkIndex:  i,
			TotalChunks: totalChunks,
			FileSize:    len(data),
			TransferID:  transferID,
		}
		if i == 0 {
			inner.FileHash = fileHash
		}

		if err := e.waitForDrain(); err != nil {
			return err
		}
		if err := e.limiter.Wait(context.Background()); err != nil {
			return core.NewTransferError("rate limiter wait failed: " + err.Error())
		}

		e.mu.Lock()
		if e.staleGeneration(gen) {
			e.mu.Unlock()
			return core.NewConnectionError("session disconnected during transfer")
		}
		sendErr := e.sendEnvelopeAware(inner)
		e.mu.Unlock()
		if sendErr != nil {
			return sendErr
		}

		e.callbacks.progress(TransferProgress{
			Status:       StatusTransferring,
			Filename:     filename,
			TransferID:   transferID,
			CurrentChunk: i + 1,
			TotalChunks:  totalChunks,
			FileSize:     len(data),
		})
	}

	e.scheduleCompletion(filename, transferID, totalChunks, len(data), gen)
	return nil
}

// awaitSendable blocks while filename is paused and returns an error if
// it has been cancelled or the session has moved past gen. It takes mu
// itself on each poll rather than expecting it held -- callers invoke it
// from outside the lock. Polling at PausePollInterval is the cooperative
// suspension point spec §5 names for pause/resume.
func (e *Engine) awaitSendable(filename string, gen uint64) error {
	for {
		e.mu.Lock()
		if e.staleGeneration(gen) {
			e.mu.Unlock()
			return core.NewConnectionError("session disconnected during transfer")
		}
		if e.cancelledFiles[filename] {
			e.mu.Unlock()
			return core.NewTransferError("transfer cancelled: " + filename)
		}
		paused := e.pausedFiles[filename]
		e.mu.Unlock()
		if !paused {
			return nil
		}
		time.Sleep(e.cfg.PausePollInterval)
	}
}

// scheduleCompletion fires the "completed" progress event after
// CompletionDelay, unless disconnect() clears the timer first (spec
// §4.5.5 step 6, §4.5.8).
func (e *Engine) scheduleCompletion(filename, transferID string, totalChunks, fileSize int, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staleGeneration(gen) {
		return
	}
	e.completionTimers[transferID] = time.AfterFunc(e.cfg.CompletionDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.staleGeneration(gen) {
			return
		}
		delete(e.completionTimers, transferID)
		e.callbacks.progress(TransferProgress{
			Status:       StatusCompleted,
			Filename:     filename,
			TransferID:   transferID,
			CurrentChunk: totalChunks,
			TotalChunks:  totalChunks,
			FileSize:     fileSize,
		})
	})
}

// PauseFile marks filename as paused; the in-flight sender loop (if any)
// blocks at its next chunk boundary.
func (e *Engine) PauseFile(filename string) {
	e.mu.Lock()
	e.pausedFiles[filename] = true
	transferID := e.sendTransferIDs[filename]
	e.mu.Unlock()
	e.sendControlMessage(filename, transferID, fileChunkWire{Paused: true})
}

// ResumeFile clears a pause for filename.
func (e *Engine) ResumeFile(filename string) {
	e.mu.Lock()
	e.pausedFiles[filename] = false
	transferID := e.sendTransferIDs[filename]
	e.mu.Unlock()
	e.sendControlMessage(filename, transferID, fileChunkWire{Resumed: true})
}

// CancelFile marks filename as cancelled by the sender and notifies the
// peer (spec §4.5.5, §4.5.7).
func (e *Engine) CancelFile(filename string) {
	e.mu.Lock()
	e.cancelledFiles[filename] = true
	transferID := e.sendTransferIDs[filename]
	e.mu.Unlock()
	e.sendControlMessage(filename, transferID, fileChunkWire{Cancelled: true, CancelledBy: "sender"})
	e.callbacks.progress(TransferProgress{Status: StatusCanceledBySender, Filename: filename, TransferID: transferID})
}

func (e *Engine) sendControlMessage(filename, transferID string, partial fileChunkWire) {
	partial.Type = "file-chunk"
	partial.Filename = filename
	partial.TransferID = transferID

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePostHello {
		return
	}
	if err := e.sendEnvelopeAware(partial); err != nil {
		e.logger.Warn().Err(err).Str("filename", filename).Msg("failed to send control message")
	}
}
