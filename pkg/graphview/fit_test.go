package graphview

import (
	"errors"
	"math"
	"testing"
)

type badBounder struct{}

func (badBounder) Bounds() (Rect, error) { return Rect{}, errors.New("detached") }

type rectBounder Rect

func (r rectBounder) Bounds() (Rect, error) { return Rect(r), nil }

func TestBoundingBox_SkipsFailures(t *testing.T) {
	box, ok := BoundingBox([]Bounder{
		rectBounder{X: 0, Y: 0, W: 10, H: 10},
		badBounder{},
		rectBounder{X: math.NaN(), Y: 0, W: 1, H: 1},
		rectBounder{X: 20, Y: 5, W: 5, H: 20},
	})
	if !ok {
		t.Fatal("expected a box")
	}
	want := Rect{X: 0, Y: 0, W: 25, H: 25}
	if box != want {
		t.Errorf("box = %+v, want %+v", box, want)
	}
}

func TestBoundingBox_NothingMeasurable(t *testing.T) {
	if _, ok := BoundingBox([]Bounder{badBounder{}}); ok {
		t.Error("expected ok=false")
	}
	if _, ok := BoundingBox(nil); ok {
		t.Error("expected ok=false for no elements")
	}
}

func TestFitTransform_CentersAndScales(t *testing.T) {
	box := Rect{X: 10, Y: 10, W: 100, H: 50}
	container := Rect{X: 0, Y: 0, W: 440, H: 440}
	tr, ok := FitTransform(box, container, 20)
	if !ok {
		t.Fatal("expected ok")
	}
	if tr.Scale != 4 {
		t.Errorf("scale = %v, want 4", tr.Scale)
	}
	// Box center maps to container center.
	cx, cy := tr.Apply(60, 35)
	if cx != 220 || cy != 220 {
		t.Errorf("center maps to (%v,%v)", cx, cy)
	}
	// Box corners stay inside the padded container.
	x0, _ := tr.Apply(box.X, box.Y)
	x1, _ := tr.Apply(box.X+box.W, box.Y+box.H)
	if x0 < 20 || x1 > 420 {
		t.Errorf("box overflows padding: %v..%v", x0, x1)
	}
}

func TestFitTransform_Degenerate(t *testing.T) {
	container := Rect{W: 100, H: 100}
	tests := []struct {
		name      string
		box       Rect
		container Rect
		padding   float64
	}{
		{"empty box", Rect{X: 5, Y: 5}, container, 0},
		{"nan box", Rect{X: math.NaN(), W: 1, H: 1}, container, 0},
		{"inf box", Rect{W: math.Inf(1), H: 1}, container, 0},
		{"padding eats container", Rect{W: 1, H: 1}, container, 50},
		{"zero container", Rect{W: 1, H: 1}, Rect{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := FitTransform(tt.box, tt.container, tt.padding); ok {
				t.Error("expected ok=false")
			}
		})
	}
}

func TestFitTransform_FlatBoxUsesOtherAxis(t *testing.T) {
	tr, ok := FitTransform(Rect{X: 0, Y: 0, W: 50, H: 0}, Rect{W: 100, H: 100}, 0)
	if !ok {
		t.Fatal("a line is still fittable")
	}
	if tr.Scale != 2 {
		t.Errorf("scale = %v, want 2", tr.Scale)
	}
}

func TestEdgeBounds_NormalizesDirection(t *testing.T) {
	r, err := Edge{X1: 10, Y1: 8, X2: 2, Y2: 4}.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if r != (Rect{X: 2, Y: 4, W: 8, H: 4}) {
		t.Errorf("bounds = %+v", r)
	}
}
