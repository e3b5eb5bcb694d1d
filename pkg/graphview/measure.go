package graphview

import (
	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Measurer reports the rendered width of a label.
type Measurer interface {
	TextWidth(s string) float64
}

// FontMeasurer measures in pixels using a fixed bitmap font.
type FontMeasurer struct {
	Face font.Face
}

// TextWidth implements Measurer.
func (m FontMeasurer) TextWidth(s string) float64 {
	face := m.Face
	if face == nil {
		face = basicfont.Face7x13
	}
	return float64(font.MeasureString(face, s)) / 64
}

// CellMeasurer measures in terminal cells, counting wide runes as two.
type CellMeasurer struct{}

// TextWidth implements Measurer.
func (CellMeasurer) TextWidth(s string) float64 {
	return float64(runewidth.StringWidth(s))
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(string) float64

// TextWidth implements Measurer.
func (f MeasureFunc) TextWidth(s string) float64 { return f(s) }
