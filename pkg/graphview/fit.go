package graphview

import (
	"errors"
	"math"
)

// ErrBadGeometry is returned by a Bounder whose measurement is unusable.
var ErrBadGeometry = errors.New("element geometry is not finite")

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, W, H float64
}

// Finite reports whether every field is a finite number and the size is
// not negative.
func (r Rect) Finite() bool {
	for _, v := range [...]float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.W >= 0 && r.H >= 0
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.X+r.W, o.X+o.W)
	y1 := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Bounder is anything that can report its bounding rectangle.
type Bounder interface {
	Bounds() (Rect, error)
}

// Bounds implements Bounder.
func (b Box) Bounds() (Rect, error) {
	r := Rect{X: b.X, Y: b.Y, W: b.W, H: b.H}
	if !r.Finite() {
		return Rect{}, ErrBadGeometry
	}
	return r, nil
}

// Bounds implements Bounder.
func (e Edge) Bounds() (Rect, error) {
	r := Rect{
		X: math.Min(e.X1, e.X2),
		Y: math.Min(e.Y1, e.Y2),
		W: math.Abs(e.X2 - e.X1),
		H: math.Abs(e.Y2 - e.Y1),
	}
	if !r.Finite() {
		return Rect{}, ErrBadGeometry
	}
	return r, nil
}

// BoundingBox returns the union of every element's bounds. Elements whose
// measurement fails are skipped. ok is false when nothing could be
// measured.
func BoundingBox(elems []Bounder) (box Rect, ok bool) {
	for _, el := range elems {
		r, err := el.Bounds()
		if err != nil || !r.Finite() {
			continue
		}
		if !ok {
			box, ok = r, true
			continue
		}
		box = box.Union(r)
	}
	return box, ok
}

// Transform maps content coordinates into the container: x' = x*Scale + TX.
type Transform struct {
	Scale  float64
	TX, TY float64
}

// Identity is the no-op transform.
var Identity = Transform{Scale: 1}

// Apply maps a content point.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.Scale + t.TX, y*t.Scale + t.TY
}

// FitTransform scales box uniformly to fit inside container minus padding
// on every side and centers it. It returns ok=false for a degenerate box
// (non-finite, or zero in both dimensions) or a container with no room
// left after padding.
func FitTransform(box, container Rect, padding float64) (Transform, bool) {
	if !box.Finite() || !container.Finite() || math.IsNaN(padding) || math.IsInf(padding, 0) {
		return Transform{}, false
	}
	if box.W == 0 && box.H == 0 {
		return Transform{}, false
	}
	availW := container.W - 2*padding
	availH := container.H - 2*padding
	if availW <= 0 || availH <= 0 {
		return Transform{}, false
	}

	scale := math.Inf(1)
	if box.W > 0 {
		scale = availW / box.W
	}
	if box.H > 0 {
		scale = math.Min(scale, availH/box.H)
	}
	if math.IsInf(scale, 0) || scale <= 0 {
		return Transform{}, false
	}

	cx := box.X + box.W/2
	cy := box.Y + box.H/2
	return Transform{
		Scale: scale,
		TX:    container.X + container.W/2 - cx*scale,
		TY:    container.Y + container.H/2 - cy*scale,
	}, true
}
