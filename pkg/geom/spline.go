package geom

// PathOp identifies a vector path command.
type PathOp uint8

const (
	MoveTo PathOp = iota
	CurveTo
)

// PathCommand is one command of a cubic Bezier vector path. For MoveTo
// only To is meaningful; for CurveTo, C1 and C2 are the Bezier control
// points.
type PathCommand struct {
	Op PathOp
	C1 Point
	C2 Point
	To Point
}

// DefaultTension is the Catmull-Rom tension used for river splines.
const DefaultTension = 0.5

// FitSpline converts a polyline into a smooth cubic Bezier path by
// deriving Catmull-Rom tangents per interior segment. The point list is
// padded by duplicating the first and last points so every segment has
// four support points. Fewer than two points yields an empty path.
func FitSpline(points []Point, tension float64) []PathCommand {
	if len(points) < 2 {
		return nil
	}

	padded := make([]Point, 0, len(points)+2)
	padded = append(padded, points[0])
	padded = append(padded, points...)
	padded = append(padded, points[len(points)-1])

	cmds := make([]PathCommand, 0, len(points))
	cmds = append(cmds, PathCommand{Op: MoveTo, To: points[0]})

	// Catmull-Rom to Bezier: control points are the segment endpoints
	// offset by a third of the neighbor-difference tangents.
	k := tension / 3.0
	for i := 1; i+2 < len(padded); i++ {
		p0, p1, p2, p3 := padded[i-1], padded[i], padded[i+1], padded[i+2]
		cmds = append(cmds, PathCommand{
			Op: CurveTo,
			C1: Point{X: p1.X + (p2.X-p0.X)*k, Y: p1.Y + (p2.Y-p0.Y)*k},
			C2: Point{X: p2.X - (p3.X-p1.X)*k, Y: p2.Y - (p3.Y-p1.Y)*k},
			To: p2,
		})
	}
	return cmds
}
