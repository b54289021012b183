package engine

import "github.com/sec51/bolt/core"

// waitForDrain blocks the calling goroutine until the data channel's
// buffered-byte count drops to or below the configured low watermark
// (spec §4.5.5 "Back-pressure"). If the channel is already drained it
// returns immediately. The wait is a single-shot slot captured at the
// current session generation; disconnect() rejects it so a torn-down
// session never leaves a sender hanging.
func (e *Engine) waitForDrain() error {
	e.mu.Lock()
	if e.dc == nil {
		e.mu.Unlock()
		return core.NewTransferError("data channel not open")
	}
	if e.dc.BufferedAmount() <= e.cfg.BackpressureLowWatermark {
		e.mu.Unlock()
		return nil
	}

	gen := e.generation
	w := &drainWaiter{generation: gen, done: make(chan error, 1)}
	e.drainWaiters = append(e.drainWaiters, w)
	dc := e.dc
	watermark := e.cfg.BackpressureLowWatermark
	e.mu.Unlock()

	dc.SetLowWatermarkHandler(watermark, func() {
		e.mu.Lock()
		e.resolveDrainWaitersLocked()
		e.mu.Unlock()
	})

	return <-w.done
}

// resolveDrainWaitersLocked wakes every waiter still matching the
// current generation with a nil (success) result. Must be called with
// mu held.
func (e *Engine) resolveDrainWaitersLocked() {
	gen := e.generation
	remaining := make([]*drainWaiter, 0, len(e.drainWaiters))
	for _, w := range e.drainWaiters {
		if w.generation != gen {
			remaining = append(remaining, w)
			continue
		}
		select {
		case w.done <- nil:
		default:
		}
	}
	e.drainWaiters = remaining
}
