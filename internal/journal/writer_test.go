package journal

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	events  []Event
	batches int
	err     error
}

func (s *memStore) InsertEvents(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, slices.Clone(events)...)
	s.batches++
	return nil
}

func (s *memStore) snapshot() ([]Event, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events), s.batches
}

func startWriter(t *testing.T, w *Writer) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("writer did not stop")
			return nil
		}
	}
}

func TestWriter_FlushesOnBatchSize(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, WithBatchSize(2), WithFlushInterval(time.Hour))
	stop := startWriter(t, w)

	for i := range 4 {
		require.True(t, w.Record(Event{Tick: uint64(i), Kind: KindActivation}))
	}

	require.Eventually(t, func() bool {
		events, _ := store.snapshot()
		return len(events) == 4
	}, 2*time.Second, 5*time.Millisecond)

	err := stop()
	assert.ErrorIs(t, err, context.Canceled)

	events, batches := store.snapshot()
	assert.Equal(t, 2, batches)
	for i, ev := range events {
		assert.Equal(t, uint64(i), ev.Tick, "order preserved")
		assert.False(t, ev.At.IsZero(), "timestamp filled on record")
	}
	assert.Equal(t, uint64(4), w.Written())
}

func TestWriter_DrainsOnShutdown(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, WithBatchSize(100), WithFlushInterval(time.Hour))

	for range 3 {
		require.True(t, w.Record(Event{Kind: KindViolation, Message: "negative cooldown"}))
	}
	stop := startWriter(t, w)
	_ = stop()

	events, _ := store.snapshot()
	assert.Len(t, events, 3)
}

func TestWriter_FlushesOnInterval(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, WithBatchSize(100), WithFlushInterval(10*time.Millisecond))
	stop := startWriter(t, w)
	defer func() { _ = stop() }()

	w.Record(Event{Kind: KindDeath, Actor: 3})

	assert.Eventually(t, func() bool {
		events, _ := store.snapshot()
		return len(events) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWriter_DropsWhenFull(t *testing.T) {
	w := NewWriter(&memStore{}, WithQueueSize(2))

	assert.True(t, w.Record(Event{}))
	assert.True(t, w.Record(Event{}))
	assert.False(t, w.Record(Event{}))
	assert.Equal(t, uint64(1), w.Dropped())
}

func TestWriter_StoreErrorDiscardsBatch(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	w := NewWriter(store)
	w.Record(Event{Kind: KindActivation})

	stop := startWriter(t, w)
	_ = stop()

	assert.Zero(t, w.Written())
}
