// Package viewport converts between screen and logical canvas coordinates under pan and zoom.
package viewport

import "github.com/and161185/brainboard/internal/model"

// Zoom bounds.
const (
	MinZoom = 0.1
	MaxZoom = 4.0
)

// Viewport is the canvas transform: screen = logical*Zoom + (X, Y).
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Identity is the untransformed viewport.
func Identity() Viewport { return Viewport{Zoom: 1} }

func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}

// ScreenToLogical maps a pointer position to canvas coordinates.
func (v Viewport) ScreenToLogical(screenX, screenY float64) (float64, float64) {
	z := v.zoom()
	return (screenX - v.X) / z, (screenY - v.Y) / z
}

// LogicalToScreen is the inverse of ScreenToLogical.
func (v Viewport) LogicalToScreen(logicalX, logicalY float64) (float64, float64) {
	z := v.zoom()
	return logicalX*z + v.X, logicalY*z + v.Y
}

// ToLogical is ScreenToLogical on points.
func (v Viewport) ToLogical(p model.Point) model.Point {
	x, y := v.ScreenToLogical(p.X, p.Y)
	return model.Point{X: x, Y: y}
}

// ToScreen is LogicalToScreen on points.
func (v Viewport) ToScreen(p model.Point) model.Point {
	x, y := v.LogicalToScreen(p.X, p.Y)
	return model.Point{X: x, Y: y}
}

// Pan shifts the viewport by a screen-space delta.
func (v Viewport) Pan(dx, dy float64) Viewport {
	v.X += dx
	v.Y += dy
	return v
}

// ZoomAt scales by factor around a screen point, keeping the logical point under it fixed.
// The resulting zoom is clamped to [MinZoom, MaxZoom].
func (v Viewport) ZoomAt(screenX, screenY, factor float64) Viewport {
	lx, ly := v.ScreenToLogical(screenX, screenY)
	z := Clamp(v.zoom() * factor)
	return Viewport{
		X:    screenX - lx*z,
		Y:    screenY - ly*z,
		Zoom: z,
	}
}

// Clamp bounds a zoom level.
func Clamp(z float64) float64 {
	switch {
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	default:
		return z
	}
}
