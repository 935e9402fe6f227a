package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
)

// Merger is the write side of FileStore.
type Merger interface {
	MergeAndSave(partial models.PartialBlob) error
}

type writeOp struct {
	partial models.PartialBlob
	done    chan struct{}
}

// Writer applies partial updates to a Merger from a single goroutine, in the
// order they were queued, so callers on the event path never wait on disk.
// Failed writes are logged and the on-disk document keeps its last good state.
type Writer struct {
	merger Merger

	mu    sync.Mutex
	queue []writeOp
	wake  chan struct{}
}

// NewWriter creates a writer for merger. Run must be started for queued
// updates to be written.
func NewWriter(merger Merger) *Writer {
	return &Writer{
		merger: merger,
		wake:   make(chan struct{}, 1),
	}
}

// Save queues partial for writing. It never blocks.
func (w *Writer) Save(partial models.PartialBlob) {
	if partial.Empty() {
		return
	}
	w.enqueue(writeOp{partial: partial})
}

// Flush blocks until everything queued before the call has been written or
// ctx is done.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	w.enqueue(writeOp{done: done})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) enqueue(op writeOp) {
	w.mu.Lock()
	w.queue = append(w.queue, op)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled, then writes whatever is still
// pending before returning.
func (w *Writer) Run(ctx context.Context) {
	log.Info().Msg("persistence writer started")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			log.Info().Msg("persistence writer stopped")
			return
		case <-w.wake:
			w.drain()
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, op := range batch {
			if op.done != nil {
				close(op.done)
				continue
			}
			if err := w.merger.MergeAndSave(op.partial); err != nil {
				log.Error().Err(err).Msg("failed to persist overlay state")
				continue
			}
			log.Debug().
				Int("players", len(op.partial.Players)).
				Int("scores", len(op.partial.Scores)).
				Bool("timer", op.partial.Timer != nil).
				Msg("overlay state saved")
		}
	}
}
