// Package geom provides the 2D polyline utilities used for river
// vectorization: Ramer-Douglas-Peucker simplification and Catmull-Rom
// spline fitting to cubic Bezier path commands.
package geom

import "math"

// Point is a 2D position. For river paths the unit is pixels with
// sub-pixel cell centers; exporters rescale to world space.
type Point struct {
	X float64
	Y float64
}

// Simplify reduces a polyline with the Ramer-Douglas-Peucker algorithm:
// the point of maximum perpendicular deviation from the chord between the
// endpoints is kept if it deviates more than epsilon, otherwise the whole
// segment collapses to its endpoints. Implemented with an explicit stack
// so deep recursions on long rivers are not a concern.
func Simplify(points []Point, epsilon float64) []Point {
	if len(points) <= 2 {
		return points
	}

	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true

	type span struct{ lo, hi int }
	stack := []span{{0, len(points) - 1}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.hi-s.lo < 2 {
			continue
		}

		maxDist := 0.0
		maxIdx := -1
		for i := s.lo + 1; i < s.hi; i++ {
			d := perpendicularDistance(points[i], points[s.lo], points[s.hi])
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}

		if maxIdx >= 0 && maxDist > epsilon {
			keep[maxIdx] = true
			stack = append(stack, span{s.lo, maxIdx}, span{maxIdx, s.hi})
		}
	}

	out := make([]Point, 0, len(points))
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// perpendicularDistance returns the distance of p from the line through a
// and b, falling back to point distance when a == b.
func perpendicularDistance(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / math.Sqrt(len2)
}
