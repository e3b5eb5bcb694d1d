package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// cell is one terminal cell. A wide rune occupies its cell and marks the
// next one as a continuation.
type cell struct {
	r     rune
	style int
	cont  bool
}

// canvas is a fixed-size grid of styled cells. Drawing outside the grid is
// clipped. Styles are referenced by index so rows can be rendered in runs.
type canvas struct {
	w, h   int
	cells  []cell
	styles []lipgloss.Style
}

func newCanvas(w, h int, styles ...lipgloss.Style) *canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	c := &canvas{w: w, h: h, cells: make([]cell, w*h), styles: append([]lipgloss.Style{{}}, styles...)}
	for i := range c.cells {
		c.cells[i].r = ' '
	}
	return c
}

// addStyle registers s and returns its index.
func (c *canvas) addStyle(s lipgloss.Style) int {
	c.styles = append(c.styles, s)
	return len(c.styles) - 1
}

func (c *canvas) in(x, y int) bool { return x >= 0 && y >= 0 && x < c.w && y < c.h }

func (c *canvas) set(x, y int, r rune, style int) {
	if !c.in(x, y) {
		return
	}
	c.cells[y*c.w+x] = cell{r: r, style: style}
}

func (c *canvas) at(x, y int) rune {
	if !c.in(x, y) {
		return 0
	}
	return c.cells[y*c.w+x].r
}

// text writes s starting at (x, y) and returns the column after it.
func (c *canvas) text(x, y int, s string, style int) int {
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if rw == 2 && !c.in(x+1, y) {
			c.set(x, y, '…', style)
			return x + 1
		}
		c.set(x, y, r, style)
		if rw == 2 && c.in(x+1, y) {
			c.cells[y*c.w+x+1] = cell{style: style, cont: true}
		}
		x += rw
	}
	return x
}

// hline draws from x1 to x2 inclusive on row y.
func (c *canvas) hline(x1, x2, y int, style int) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	for x := x1; x <= x2; x++ {
		c.set(x, y, c.merge(x, y, '─'), style)
	}
}

// vline draws from y1 to y2 inclusive on column x.
func (c *canvas) vline(x, y1, y2 int, style int) {
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	for y := y1; y <= y2; y++ {
		c.set(x, y, c.merge(x, y, '│'), style)
	}
}

// merge turns crossing lines into a cross.
func (c *canvas) merge(x, y int, r rune) rune {
	switch prev := c.at(x, y); {
	case prev == '─' && r == '│', prev == '│' && r == '─', prev == '┼':
		return '┼'
	default:
		return r
	}
}

// box draws a rounded rectangle with its top-left corner at (x, y).
func (c *canvas) box(x, y, w, h int, style int) {
	if w < 2 || h < 2 {
		return
	}
	right, bottom := x+w-1, y+h-1
	for i := x + 1; i < right; i++ {
		c.set(i, y, '─', style)
		c.set(i, bottom, '─', style)
	}
	for j := y + 1; j < bottom; j++ {
		c.set(x, j, '│', style)
		c.set(right, j, '│', style)
		for i := x + 1; i < right; i++ {
			c.set(i, j, ' ', style)
		}
	}
	c.set(x, y, '╭', style)
	c.set(right, y, '╮', style)
	c.set(x, bottom, '╰', style)
	c.set(right, bottom, '╯', style)
}

// String renders the grid, grouping runs of equal style.
func (c *canvas) String() string {
	var b strings.Builder
	var run strings.Builder
	for y := 0; y < c.h; y++ {
		cur := -1
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if cur <= 0 {
				b.WriteString(run.String())
			} else {
				b.WriteString(c.styles[cur].Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < c.w; x++ {
			cl := c.cells[y*c.w+x]
			if cl.cont {
				continue
			}
			if cl.style != cur {
				flush()
				cur = cl.style
			}
			run.WriteRune(cl.r)
		}
		flush()
		if y < c.h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
