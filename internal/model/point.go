package model

import "math"

// Point — координаты на плоскости боя.
// Value type, передаётся по значению (immutable).
type Point struct {
	X float64
	Y float64
}

// Pt создаёт Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add возвращает сумму векторов.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub возвращает разность векторов.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Scale умножает вектор на k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Len возвращает длину вектора.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// DistanceSquared возвращает квадрат расстояния (без sqrt для hot path).
func (p Point) DistanceSquared(o Point) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return dx*dx + dy*dy
}

// Distance возвращает расстояние до другой точки.
func (p Point) Distance(o Point) float64 {
	return math.Sqrt(p.DistanceSquared(o))
}

// MoveToward сдвигает p к target не более чем на step.
// Возвращает новую точку и флаг достижения цели.
func (p Point) MoveToward(target Point, step float64) (Point, bool) {
	d := target.Sub(p)
	dist := d.Len()
	if dist <= step || dist == 0 {
		return target, true
	}
	return p.Add(d.Scale(step / dist)), false
}

// DistanceToSegment возвращает минимальное расстояние от p до отрезка [a, b].
// Используется для непрерывной проверки пересечения снаряда за тик.
func (p Point) DistanceToSegment(a, b Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(a.Add(ab.Scale(t)))
}
