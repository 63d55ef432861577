package spell

import (
	"time"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/model"
)

// EndReason says why an activation ended.
type EndReason int8

const (
	EndCompleted   EndReason = iota // single-pass variant finished
	EndNoTarget                     // nothing to resolve against
	EndMaxHits                      // hit cap reached
	EndExpired                      // zone or counter duration elapsed
	EndRange                        // projectile travelled its full range
	EndIntercepted                  // counter fired on an incoming hit
	EndCountered                    // consumed by the target's counter
	EndCasterGone                   // caster died or despawned
)

func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "completed"
	case EndNoTarget:
		return "no_target"
	case EndMaxHits:
		return "max_hits"
	case EndExpired:
		return "expired"
	case EndRange:
		return "range"
	case EndIntercepted:
		return "intercepted"
	case EndCountered:
		return "countered"
	case EndCasterGone:
		return "caster_gone"
	default:
		return "unknown"
	}
}

// Result is reported once for every ended activation.
type Result struct {
	ID      uint64
	Caster  uint32
	Ability string
	Level   int32
	Variant data.Variant
	Depth   int // cascade depth, 0 for a cast
	Hits    int
	Damage  int32 // health removed from targets
	Heal    int32 // health restored to targets and the caster
	Reason  EndReason
}

// HitRecord is the set of actors already hit by one activation.
type HitRecord struct {
	ids   map[uint32]struct{}
	order []uint32
}

func newHitRecord() HitRecord {
	return HitRecord{ids: make(map[uint32]struct{}, 4)}
}

// Has reports whether id was hit.
func (h *HitRecord) Has(id uint32) bool {
	_, ok := h.ids[id]
	return ok
}

// Add records id. Returns false if it was already present.
func (h *HitRecord) Add(id uint32) bool {
	if h.Has(id) {
		return false
	}
	h.ids[id] = struct{}{}
	h.order = append(h.order, id)
	return true
}

// Len returns the number of distinct actors hit.
func (h *HitRecord) Len() int { return len(h.order) }

// IDs returns the hit actors in hit order.
func (h *HitRecord) IDs() []uint32 { return h.order }

// activation is one in-flight ability resolution.
type activation struct {
	id     uint64
	caster *model.Actor
	def    *data.AbilityDefinition
	point  model.Point
	depth  int

	hits   HitRecord
	count  int // total hits, zones may hit one actor repeatedly
	damage int32
	heal   int32
	ended  bool

	// projectile
	pos       model.Point
	dir       model.Point
	travelled float64

	// zone
	elapsed      time.Duration
	refreshTimer time.Duration
	lastHit      map[uint32]time.Duration

	// counter
	remaining time.Duration
}

// capped reports whether the HitRecord reached max hits. Zone re-hits on an
// actor already in the record do not count.
func (a *activation) capped() bool {
	return a.def.MaxHits > 0 && a.hits.Len() >= int(a.def.MaxHits)
}

func (a *activation) result(reason EndReason) Result {
	return Result{
		ID:      a.id,
		Caster:  a.caster.ObjectID(),
		Ability: a.def.ID,
		Level:   a.def.Level,
		Variant: a.def.Variant,
		Depth:   a.depth,
		Hits:    a.count,
		Damage:  a.damage,
		Heal:    a.heal,
		Reason:  reason,
	}
}
