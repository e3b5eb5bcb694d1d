package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/impactview/pkg/graphview"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals use the
// terminal's own background instead of a down-converted approximation
// that may clash with palettes like Solarized.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Graph
	Critical lipgloss.AdaptiveColor
	Link     lipgloss.AdaptiveColor
	Hover    lipgloss.AdaptiveColor
	Neighbor lipgloss.AdaptiveColor

	// Transcript
	User      lipgloss.AdaptiveColor
	Assistant lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base   lipgloss.Style
	Header lipgloss.Style

	// Pre-computed styles, created once instead of per frame
	MutedText     lipgloss.Style
	PrimaryBold   lipgloss.Style
	UserLabel     lipgloss.Style
	AssistantText lipgloss.Style
	ErrorText     lipgloss.Style
	Tooltip       lipgloss.Style
	NodeNormal    lipgloss.Style
	NodeCritical  lipgloss.Style
	NodeHover     lipgloss.Style
	NodeNeighbor  lipgloss.Style
	LinkNormal    lipgloss.Style
	LinkCritical  lipgloss.Style
	LinkHover     lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}, // Dim

		// Link colors follow the exported graph colors.
		Critical: lipgloss.AdaptiveColor{Light: graphview.CriticalColor, Dark: "#FF5555"},
		Link:     lipgloss.AdaptiveColor{Light: graphview.NormalColor, Dark: "#B39DDB"},
		Hover:    lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}, // Orange
		Neighbor: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}, // Cyan

		User:      lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Assistant: lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.UserLabel = r.NewStyle().Foreground(t.User).Bold(true)
	t.AssistantText = r.NewStyle().Foreground(t.Assistant)
	t.ErrorText = r.NewStyle().Foreground(t.Critical).Bold(true)
	t.Tooltip = r.NewStyle().
		Background(t.Highlight).
		Foreground(t.Assistant).
		Padding(0, 1)

	t.NodeNormal = r.NewStyle().Foreground(t.Primary)
	t.NodeCritical = r.NewStyle().Foreground(t.Critical).Bold(true)
	t.NodeHover = r.NewStyle().Foreground(t.Hover).Bold(true)
	t.NodeNeighbor = r.NewStyle().Foreground(t.Neighbor)
	t.LinkNormal = r.NewStyle().Foreground(t.Link)
	t.LinkCritical = r.NewStyle().Foreground(t.Critical)
	t.LinkHover = r.NewStyle().Foreground(t.Hover)

	return t
}

// NodeStyle picks the style for a node from its render state. Hover wins
// over neighbor, which wins over critical.
func (t Theme) NodeStyle(d graphview.NodeData) lipgloss.Style {
	switch {
	case d.Hover:
		return t.NodeHover
	case d.Neighbor:
		return t.NodeNeighbor
	case d.Critical:
		return t.NodeCritical
	default:
		return t.NodeNormal
	}
}

// LinkStyle picks the style for a link from its render state.
func (t Theme) LinkStyle(d graphview.LinkData) lipgloss.Style {
	switch {
	case d.Hover:
		return t.LinkHover
	case d.Critical:
		return t.LinkCritical
	default:
		return t.LinkNormal
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
