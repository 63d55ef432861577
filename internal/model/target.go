package model

// Target — цель активации: актор или точка.
// For point targets HasActor is false and Point is authoritative.
type Target struct {
	Actor    uint32
	HasActor bool
	Point    Point
}

// ActorTarget targets an actor by id.
func ActorTarget(id uint32) Target {
	return Target{Actor: id, HasActor: true}
}

// PointTarget targets a point on the plane.
func PointTarget(p Point) Target {
	return Target{Point: p}
}
