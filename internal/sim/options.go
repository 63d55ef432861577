package sim

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/game/cast"
	"github.com/udisondev/castcore/internal/game/effect"
	"github.com/udisondev/castcore/internal/game/spell"
	"github.com/udisondev/castcore/internal/journal"
	"github.com/udisondev/castcore/internal/replication"
)

// DefaultMoveSpeed is the base locomotion speed in world units per second.
const DefaultMoveSpeed = 5.0

// Recorder accepts journal events without blocking. Implemented by journal.Writer.
type Recorder interface {
	Record(ev journal.Event) bool
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithAuthority marks the simulation as authoritative (default) or as an observer.
func WithAuthority(authority bool) Option {
	return func(s *Simulation) { s.authority = authority }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithJournal sets the combat journal.
func WithJournal(r Recorder) Option {
	return func(s *Simulation) { s.journal = r }
}

// WithTracer sets the tracer for per-tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulation) { s.tracer = t }
}

// WithHub sets the replication hub snapshots are published to.
func WithHub(h *replication.Hub) Option {
	return func(s *Simulation) { s.hub = h }
}

// WithSnapshotSink sets a callback receiving every tick's snapshots in
// registration order (transport to remote observers).
func WithSnapshotSink(fn func([]replication.Snapshot)) Option {
	return func(s *Simulation) { s.sink = fn }
}

// WithMoveSpeed sets the base locomotion speed.
func WithMoveSpeed(unitsPerSecond float64) Option {
	return func(s *Simulation) {
		if unitsPerSecond > 0 {
			s.moveSpeed = unitsPerSecond
		}
	}
}

// WithBonusInt sets the integer-property bonus hook of every effect engine.
func WithBonusInt(fn data.BonusIntFunc) Option {
	return func(s *Simulation) { s.bonusInt = fn }
}

// WithCastListener sets the listener for cast started/ended notifications.
func WithCastListener(l cast.Listener) Option {
	return func(s *Simulation) { s.castListener = l }
}

// WithActivationListener sets a callback for ended activations.
func WithActivationListener(fn func(spell.Result)) Option {
	return func(s *Simulation) { s.onActivation = fn }
}

// WithEffectListener sets a callback for every effect change on any actor,
// including changes added and removed within one step.
func WithEffectListener(fn func(effect.Change)) Option {
	return func(s *Simulation) { s.onEffect = fn }
}

// WithBeforeStep registers fn, called at the start of every tick.
// Input and AI drivers hook in here.
func WithBeforeStep(fn func(tick uint64)) Option {
	return func(s *Simulation) { s.beforeStep = append(s.beforeStep, fn) }
}
