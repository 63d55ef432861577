package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultQueueSize     = 1024
	DefaultBatchSize     = 128
	DefaultFlushInterval = time.Second

	// shutdownFlushTimeout bounds the final flush after the run context is cancelled.
	shutdownFlushTimeout = 5 * time.Second
)

// Option configures a Writer.
type Option func(*Writer)

// WithQueueSize sets the channel capacity.
func WithQueueSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithBatchSize sets the flush threshold.
func WithBatchSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// Writer buffers events in a bounded queue and flushes them to a Store in
// batches from its own goroutine. Record never blocks: when the queue is full
// the event is dropped and counted.
type Writer struct {
	store         Store
	ch            chan Event
	queueSize     int
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewWriter creates a Writer over store. Call Run to start flushing.
func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:         store,
		queueSize:     DefaultQueueSize,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.ch = make(chan Event, w.queueSize)
	return w
}

// Record queues ev. Returns false when the queue is full and ev was dropped.
// Safe for concurrent use.
func (w *Writer) Record(ev Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case w.ch <- ev:
		return true
	default:
		if n := w.dropped.Add(1); n == 1 || n%1000 == 0 {
			w.logger.Warn("journal queue full, dropping events", "dropped", n)
		}
		return false
	}
}

// Dropped returns the number of events dropped on a full queue.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Written returns the number of events stored successfully.
func (w *Writer) Written() uint64 { return w.written.Load() }

// Run flushes batches until ctx is cancelled, then drains the queue and
// flushes once more. Store errors are logged; the batch is discarded.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, w.batchSize)
	w.logger.Info("journal writer started", "batch", w.batchSize, "interval", w.flushInterval)

	for {
		select {
		case <-ctx.Done():
			batch = w.drain(batch)
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
			w.flush(flushCtx, batch)
			cancel()
			w.logger.Info("journal writer stopped", "written", w.Written(), "dropped", w.Dropped())
			return ctx.Err()

		case ev := <-w.ch:
			batch = append(batch, ev)
			if len(batch) >= w.batchSize {
				batch = w.flush(ctx, batch)
			}

		case <-ticker.C:
			batch = w.flush(ctx, batch)
		}
	}
}

// drain moves every queued event into batch without blocking.
func (w *Writer) drain(batch []Event) []Event {
	for {
		select {
		case ev := <-w.ch:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

// flush stores batch and returns it emptied for reuse.
func (w *Writer) flush(ctx context.Context, batch []Event) []Event {
	if len(batch) == 0 {
		return batch
	}
	if err := w.store.InsertEvents(ctx, batch); err != nil {
		w.logger.Error("journal flush failed", "events", len(batch), "error", fmt.Errorf("inserting events: %w", err))
	} else {
		w.written.Add(uint64(len(batch)))
	}
	clear(batch)
	return batch[:0]
}
