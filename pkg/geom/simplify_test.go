package geom

import "testing"

func zigzag(n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		y := 0.0
		if i%2 == 1 {
			y = 5.0
		}
		pts[i] = Point{X: float64(i), Y: y}
	}
	return pts
}

func TestSimplifyKeepsAllBelowEpsilon(t *testing.T) {
	pts := zigzag(9)
	out := Simplify(pts, 0.01)
	if len(out) != len(pts) {
		t.Fatalf("got %d points, want all %d", len(out), len(pts))
	}
	for i := range out {
		if out[i] != pts[i] {
			t.Fatalf("point %d = %v, want %v", i, out[i], pts[i])
		}
	}
}

func TestSimplifyCollapsesToEndpoints(t *testing.T) {
	pts := zigzag(9)
	out := Simplify(pts, 1e6)
	if len(out) != 2 {
		t.Fatalf("got %d points, want 2", len(out))
	}
	if out[0] != pts[0] || out[1] != pts[len(pts)-1] {
		t.Errorf("endpoints %v, %v, want %v, %v", out[0], out[1], pts[0], pts[len(pts)-1])
	}
}

func TestSimplifyCollinear(t *testing.T) {
	pts := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	out := Simplify(pts, 0.5)
	if len(out) != 2 {
		t.Errorf("collinear run kept %d points, want 2", len(out))
	}
}

func TestSimplifyShortInput(t *testing.T) {
	pts := []Point{{0, 0}, {1, 1}}
	out := Simplify(pts, 10)
	if len(out) != 2 {
		t.Errorf("two-point input must pass through, got %d points", len(out))
	}
}

func TestFitSplineShape(t *testing.T) {
	pts := []Point{{0, 0}, {1, 2}, {2, 0}, {3, 2}}
	cmds := FitSpline(pts, DefaultTension)

	if len(cmds) != len(pts) {
		t.Fatalf("got %d commands, want %d (MoveTo + one CurveTo per segment)", len(cmds), len(pts))
	}
	if cmds[0].Op != MoveTo || cmds[0].To != pts[0] {
		t.Errorf("first command = %+v, want MoveTo %v", cmds[0], pts[0])
	}
	for i := 1; i < len(cmds); i++ {
		if cmds[i].Op != CurveTo {
			t.Fatalf("command %d is %v, want CurveTo", i, cmds[i].Op)
		}
		if cmds[i].To != pts[i] {
			t.Errorf("command %d ends at %v, want %v", i, cmds[i].To, pts[i])
		}
	}
}

func TestFitSplineEndpointTangents(t *testing.T) {
	pts := []Point{{0, 0}, {10, 0}, {20, 0}}
	cmds := FitSpline(pts, DefaultTension)

	// Padded endpoints make the first control point lean toward the second
	// input point, keeping the curve anchored at the polyline ends.
	c1 := cmds[1].C1
	if c1.X <= pts[0].X || c1.X >= pts[1].X {
		t.Errorf("first control point x = %g, want between %g and %g", c1.X, pts[0].X, pts[1].X)
	}
	if c1.Y != 0 {
		t.Errorf("first control point y = %g, want 0 on a straight line", c1.Y)
	}
}

func TestFitSplineDegenerate(t *testing.T) {
	if cmds := FitSpline([]Point{{1, 1}}, DefaultTension); cmds != nil {
		t.Errorf("single point produced %d commands, want none", len(cmds))
	}
	if cmds := FitSpline(nil, DefaultTension); cmds != nil {
		t.Errorf("nil input produced %d commands, want none", len(cmds))
	}
}
