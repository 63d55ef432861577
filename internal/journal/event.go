package journal

import (
	"context"
	"time"
)

// Kind classifies a journal event.
type Kind string

const (
	KindActivation Kind = "activation" // an ability activation ended
	KindViolation  Kind = "violation"  // an invariant violation was clamped
	KindDeath      Kind = "death"      // an actor's health reached 0
	KindEffect     Kind = "effect"     // a state effect was added, refreshed or removed
)

// Event — одна запись боевого журнала.
// Поля, не относящиеся к Kind, остаются нулевыми.
type Event struct {
	Tick  uint64
	At    time.Time
	Kind  Kind
	Actor uint32 // caster for activations

	Ability string
	Level   int32
	Variant string
	Depth   int
	Hits    int
	Damage  int32
	Heal    int32
	Reason  string

	Effect string // effect id for effect events
	Stacks int32  // stack count after the change

	Message string // violation text
}

// Store persists batches of events.
type Store interface {
	InsertEvents(ctx context.Context, events []Event) error
}
