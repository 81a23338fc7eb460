package geometry_test

import (
	"testing"

	"vistacrop/internal/domain"
	"vistacrop/internal/geometry"
)

var allShapes = []domain.FrameShape{
	domain.ShapeRectangle,
	domain.ShapeDiamond,
	domain.ShapePentagon,
	domain.ShapeHexagon,
	domain.ShapeTrapezoid,
	domain.ShapeParallelogram,
}

func TestShapePoints_VertexCounts(t *testing.T) {
	boxes := [][4]float64{
		{0, 0, 100, 100},
		{10, 20, 300, 50},
		{-5, -5, 1, 2},
	}
	for _, shape := range allShapes {
		for _, b := range boxes {
			pts := geometry.ShapePoints(shape, nil, b[0], b[1], b[2], b[3])
			if len(pts) != geometry.VertexCount(shape) {
				t.Errorf("%s: expected %d vertices, got %d", shape, geometry.VertexCount(shape), len(pts))
			}
		}
	}
}

func TestShapePoints_SimplePolygons(t *testing.T) {
	for _, shape := range allShapes {
		pts := geometry.ShapePoints(shape, nil, 0, 0, 200, 120)
		if selfIntersects(pts) {
			t.Errorf("%s: polygon self-intersects: %v", shape, pts)
		}
	}
}

func TestShapePoints_PointsInsideBox(t *testing.T) {
	const x, y, w, h = 50.0, 80.0, 200.0, 120.0
	const eps = 1e-9
	for _, shape := range allShapes {
		for _, p := range geometry.ShapePoints(shape, nil, x, y, w, h) {
			if p.X < x-eps || p.X > x+w+eps || p.Y < y-eps || p.Y > y+h+eps {
				t.Errorf("%s: vertex %v outside box", shape, p)
			}
		}
	}
}

func TestShapePoints_CustomScalesToBox(t *testing.T) {
	custom := []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 0.5}, {X: 0.5, Y: 1}}
	pts := geometry.ShapePoints(domain.ShapeRectangle, custom, 10, 20, 100, 50)
	want := []domain.Point{{X: 10, Y: 20}, {X: 110, Y: 45}, {X: 60, Y: 70}}
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("point %d: expected %v, got %v", i, want[i], pts[i])
		}
	}
}

func TestShapePoints_CustomTooFewFallsBack(t *testing.T) {
	custom := []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	pts := geometry.ShapePoints(domain.ShapeHexagon, custom, 0, 0, 10, 10)
	// Two custom points are invalid; an invalid custom list also discards
	// the hexagon request and falls back to a plain rectangle.
	want := []domain.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	if len(pts) != len(want) {
		t.Fatalf("expected rectangle fallback with 4 points, got %d", len(pts))
	}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("point %d: expected %v, got %v", i, want[i], pts[i])
		}
	}
}

func TestInset_ShrinksTowardCenter(t *testing.T) {
	outer := geometry.ShapePoints(domain.ShapeRectangle, nil, 0, 0, 100, 100)
	inner := geometry.Inset(domain.ShapeRectangle, nil, 0, 0, 100, 100, 0.1)
	if len(inner) != len(outer) {
		t.Fatalf("expected matching vertex counts")
	}
	if inner[0].X != 10 || inner[0].Y != 10 {
		t.Errorf("expected inner top-left (10,10), got %v", inner[0])
	}
	if inner[2].X != 90 || inner[2].Y != 90 {
		t.Errorf("expected inner bottom-right (90,90), got %v", inner[2])
	}
}

func TestInset_ClampsFraction(t *testing.T) {
	inner := geometry.Inset(domain.ShapeRectangle, nil, 0, 0, 100, 100, 0.9)
	// Clamped to 0.45: the inner box must keep positive size.
	if inner[1].X-inner[0].X <= 0 {
		t.Errorf("inner polygon collapsed: %v", inner)
	}
}

// selfIntersects reports whether any two non-adjacent edges of the
// closed polygon cross.
func selfIntersects(pts []domain.Point) bool {
	n := len(pts)
	for i := 0; i < n; i++ {
		a1 := pts[i]
		a2 := pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges sharing a vertex.
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := pts[j]
			b2 := pts[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(p1, p2, p3, p4 domain.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b domain.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
