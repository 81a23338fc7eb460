// Package geometry generates frame-shape polygons for placed items.
// A polygon serves both as a clip boundary and as a stroke path.
package geometry

import (
	"math"

	"vistacrop/internal/domain"
)

// VertexCount reports how many vertices a built-in shape produces.
func VertexCount(shape domain.FrameShape) int {
	switch shape {
	case domain.ShapePentagon:
		return 5
	case domain.ShapeHexagon:
		return 6
	default:
		return 4
	}
}

// ShapePoints returns the absolute polygon for an item's frame within
// the given box. Custom points (item-local unit space) take precedence
// over the built-in shape; a custom list with fewer than 3 points is
// invalid and falls back to rectangle.
func ShapePoints(shape domain.FrameShape, custom []domain.Point, x, y, w, h float64) []domain.Point {
	if len(custom) >= 3 {
		out := make([]domain.Point, len(custom))
		for i, p := range custom {
			out[i] = domain.Point{X: x + p.X*w, Y: y + p.Y*h}
		}
		return out
	}

	switch shape {
	case domain.ShapeDiamond:
		return inscribed(4, x, y, w, h)
	case domain.ShapePentagon:
		return inscribed(5, x, y, w, h)
	case domain.ShapeHexagon:
		return inscribed(6, x, y, w, h)
	case domain.ShapeTrapezoid:
		return []domain.Point{
			{X: x + 0.2*w, Y: y},
			{X: x + 0.8*w, Y: y},
			{X: x + w, Y: y + h},
			{X: x, Y: y + h},
		}
	case domain.ShapeParallelogram:
		return []domain.Point{
			{X: x + 0.25*w, Y: y},
			{X: x + w, Y: y},
			{X: x + 0.75*w, Y: y + h},
			{X: x, Y: y + h},
		}
	default: // rectangle
		return []domain.Point{
			{X: x, Y: y},
			{X: x + w, Y: y},
			{X: x + w, Y: y + h},
			{X: x, Y: y + h},
		}
	}
}

// inscribed distributes n vertices evenly around the box's inscribed
// ellipse, starting at the top. Always yields a simple polygon for any
// non-degenerate box.
func inscribed(n int, x, y, w, h float64) []domain.Point {
	cx := x + w/2
	cy := y + h/2
	rx := w / 2
	ry := h / 2
	out := make([]domain.Point, n)
	for i := 0; i < n; i++ {
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		out[i] = domain.Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)}
	}
	return out
}

// Inset returns the polygon for the same shape drawn inside the box,
// shrunk on every side by frac of the corresponding dimension. Used by
// the manga border style's inner stroke.
func Inset(shape domain.FrameShape, custom []domain.Point, x, y, w, h, frac float64) []domain.Point {
	if frac < 0 {
		frac = 0
	}
	if frac > 0.45 {
		frac = 0.45
	}
	return ShapePoints(shape, custom, x+w*frac, y+h*frac, w*(1-2*frac), h*(1-2*frac))
}
