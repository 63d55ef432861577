package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/udisondev/castcore/internal/model"
)

// ErrDuplicateActor is returned by Add when the id is already registered.
var ErrDuplicateActor = errors.New("actor already registered")

// Registry holds the actors of one simulation in registration order.
// Registration order is the tie-breaker for every "first matching" query,
// so host and observers resolve the same targets.
//
// Not safe for concurrent use (owned by the simulation goroutine).
type Registry struct {
	actors []*model.Actor
	byID   map[uint32]*model.Actor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actors: make([]*model.Actor, 0, 16),
		byID:   make(map[uint32]*model.Actor, 16),
	}
}

// Add registers a.
func (r *Registry) Add(a *model.Actor) error {
	if _, exists := r.byID[a.ObjectID()]; exists {
		return fmt.Errorf("adding actor %d: %w", a.ObjectID(), ErrDuplicateActor)
	}
	r.actors = append(r.actors, a)
	r.byID[a.ObjectID()] = a
	return nil
}

// Remove unregisters the actor with id and returns it.
func (r *Registry) Remove(id uint32) (*model.Actor, bool) {
	a, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	r.actors = slices.DeleteFunc(r.actors, func(x *model.Actor) bool { return x == a })
	return a, true
}

// Get returns the actor with id.
func (r *Registry) Get(id uint32) (*model.Actor, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// Len returns the number of registered actors.
func (r *Registry) Len() int { return len(r.actors) }

// All returns a copy of the actor list in registration order.
func (r *Registry) All() []*model.Actor {
	return slices.Clone(r.actors)
}

// ForEach calls fn for every actor in registration order until fn returns false.
// fn must not add or remove actors.
func (r *Registry) ForEach(fn func(*model.Actor) bool) {
	for _, a := range r.actors {
		if !fn(a) {
			return
		}
	}
}

// First returns the first actor in registration order accepted by match.
func (r *Registry) First(match func(*model.Actor) bool) (*model.Actor, bool) {
	for _, a := range r.actors {
		if match(a) {
			return a, true
		}
	}
	return nil, false
}

// InRadius returns the actors whose collision circle overlaps the circle
// (center, radius), in registration order.
func (r *Registry) InRadius(center model.Point, radius float64) []*model.Actor {
	var out []*model.Actor
	for _, a := range r.actors {
		if Overlaps(a, center, radius) {
			out = append(out, a)
		}
	}
	return out
}

// Nearest returns the accepted actor closest to center within maxDist
// (collision radius included). Ties go to the earlier registration.
func (r *Registry) Nearest(center model.Point, maxDist float64, accept func(*model.Actor) bool) (*model.Actor, bool) {
	var (
		best     *model.Actor
		bestDist float64
	)
	for _, a := range r.actors {
		if !Overlaps(a, center, maxDist) || !accept(a) {
			continue
		}
		d := a.Position().DistanceSquared(center)
		if best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}
	return best, best != nil
}

// Overlaps reports whether a's collision circle intersects the circle (center, radius).
func Overlaps(a *model.Actor, center model.Point, radius float64) bool {
	reach := radius + a.Radius()
	return a.Position().DistanceSquared(center) <= reach*reach
}

// OverlapsSegment reports whether a's collision circle intersects the capsule
// swept by a circle of the given radius moving from from to to.
func OverlapsSegment(a *model.Actor, from, to model.Point, radius float64) bool {
	return a.Position().DistanceToSegment(from, to) <= radius+a.Radius()
}
