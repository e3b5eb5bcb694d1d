package ui

import (
	"strings"
	"testing"
)

func TestCanvas_BoxAndText(t *testing.T) {
	c := newCanvas(8, 3)
	c.box(0, 0, 8, 3, 0)
	c.text(2, 1, "auth", 0)

	want := []string{
		"╭──────╮",
		"│ auth │",
		"╰──────╯",
	}
	if got := c.String(); got != strings.Join(want, "\n") {
		t.Errorf("canvas =\n%s\nwant\n%s", got, strings.Join(want, "\n"))
	}
}

func TestCanvas_ClipsOutside(t *testing.T) {
	c := newCanvas(3, 1)
	c.text(-2, 0, "abcde", 0)
	c.set(10, 10, 'x', 0)
	if got := c.String(); got != "cde" {
		t.Errorf("got %q, want %q", got, "cde")
	}
}

func TestCanvas_LinesCross(t *testing.T) {
	c := newCanvas(3, 3)
	c.hline(0, 2, 1, 0)
	c.vline(1, 0, 2, 0)
	if r := c.at(1, 1); r != '┼' {
		t.Errorf("crossing = %q, want ┼", r)
	}
	if r := c.at(0, 1); r != '─' {
		t.Errorf("horizontal = %q", r)
	}
}

func TestCanvas_WideRunes(t *testing.T) {
	c := newCanvas(4, 1)
	next := c.text(0, 0, "日本", 0)
	if next != 4 {
		t.Errorf("next column = %d, want 4", next)
	}
	if got := c.String(); got != "日本" {
		t.Errorf("got %q", got)
	}

	// A wide rune that does not fit is replaced.
	c = newCanvas(3, 1)
	c.text(0, 0, "日本", 0)
	if got := c.String(); got != "日…" {
		t.Errorf("got %q, want %q", got, "日…")
	}
}

func TestCanvas_NegativeSize(t *testing.T) {
	c := newCanvas(-1, -1)
	if c.String() != "" {
		t.Error("expected empty canvas")
	}
}
