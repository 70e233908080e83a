// Package geometry holds the pure 2D math the rules engine leans on:
// tabletop distances, base-to-base measurements, movement path checks
// and terrain containment. Everything here is stateless; all distances
// are in inches.
package geometry

import "math"

// Point is a position on the battlefield, in inches from the board origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the center-to-center distance between two points.
func Dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// BaseRadius converts a base diameter in millimeters (how bases are sold)
// to a radius in inches (how the table is measured).
func BaseRadius(baseMM float64) float64 {
	return baseMM / 25.4 / 2
}

// EdgeDist returns the edge-to-edge distance between two circular bases.
// Overlapping bases yield a negative value; callers treat <= 0 as touching.
func EdgeDist(a Point, ra float64, b Point, rb float64) float64 {
	return Dist(a, b) - ra - rb
}

// ClosestOnSegment returns the point on segment a-b closest to p.
func ClosestOnSegment(p, a, b Point) Point {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq < 1e-9 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Point{X: a.X + t*dx, Y: a.Y + t*dy}
}

// SegDistToPoint returns the minimum distance from point p to segment a-b.
func SegDistToPoint(p, a, b Point) float64 {
	return Dist(p, ClosestOnSegment(p, a, b))
}

// SegCrossesCircle reports whether the segment a-b passes within radius r
// of center c. Used to detect a movement path clipping an enemy model's
// engagement buffer (base radius + engagement range).
func SegCrossesCircle(a, b, c Point, r float64) bool {
	return SegDistToPoint(c, a, b) < r
}

// PointInPolygon reports whether p lies inside the polygon described by
// verts (ray-casting, odd-even rule). Degenerate polygons (< 3 vertices)
// contain nothing.
func PointInPolygon(p Point, verts []Point) bool {
	if len(verts) < 3 {
		return false
	}
	inside := false
	j := len(verts) - 1
	for i := 0; i < len(verts); i++ {
		vi, vj := verts[i], verts[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			x := vi.X + (p.Y-vi.Y)/(vj.Y-vi.Y)*(vj.X-vi.X)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// SegCrossesPolygon reports whether segment a-b intersects the polygon
// boundary or has an endpoint inside it. Good enough for impassable
// terrain checks: a path that starts, ends or cuts through is illegal.
func SegCrossesPolygon(a, b Point, verts []Point) bool {
	if len(verts) < 3 {
		return false
	}
	if PointInPolygon(a, verts) || PointInPolygon(b, verts) {
		return true
	}
	j := len(verts) - 1
	for i := 0; i < len(verts); i++ {
		if segmentsIntersect(a, b, verts[j], verts[i]) {
			return true
		}
		j = i
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return d1 == 0 && onSegment(p3, p4, p1) ||
		d2 == 0 && onSegment(p3, p4, p2) ||
		d3 == 0 && onSegment(p1, p2, p3) ||
		d4 == 0 && onSegment(p1, p2, p4)
}

func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}
