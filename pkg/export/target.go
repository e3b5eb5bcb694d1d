// Package export renders the side panel to files: a paged PDF of the
// composed panel, a standalone HTML document, and SVG or PNG images of the
// impact graphs. Produced files can optionally be uploaded to S3.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownTarget is returned for an export target or format name that is
// not recognised.
var ErrUnknownTarget = errors.New("unknown export target")

// Target selects which region of the panel is exported.
type Target string

const (
	// TargetDocument is the whole panel including the title block.
	TargetDocument Target = "document"
	// TargetPanel is the panel without the title block.
	TargetPanel Target = "panel"
	// TargetTestPlan is the test plan on its own.
	TargetTestPlan Target = "testplan"
	// TargetDefault is used when no target was named.
	TargetDefault Target = ""
)

// Targets lists the named targets in menu order.
var Targets = []Target{TargetDocument, TargetPanel, TargetTestPlan}

// FileName returns the PDF file name for t.
func (t Target) FileName() string {
	switch t {
	case TargetDocument:
		return "impact-analysis-document.pdf"
	case TargetPanel:
		return "analysis-panel.pdf"
	case TargetTestPlan:
		return "testplan.pdf"
	default:
		return "download.pdf"
	}
}

// Description is the human label for t.
func (t Target) Description() string {
	switch t {
	case TargetDocument:
		return "Full impact analysis document"
	case TargetPanel:
		return "Analysis panel (graphs and test plan)"
	case TargetTestPlan:
		return "Test plan only"
	default:
		return "Default export"
	}
}

func (t Target) includesTitle() bool  { return t == TargetDocument || t == TargetDefault }
func (t Target) includesGraphs() bool { return t != TargetTestPlan }

// ParseTarget maps a name to a Target. Empty input yields TargetDefault.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return TargetDefault, nil
	case "document", "doc", "full":
		return TargetDocument, nil
	case "panel", "analysis":
		return TargetPanel, nil
	case "testplan", "test-plan", "plan":
		return TargetTestPlan, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

// Format is an output file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatSVG  Format = "svg"
	FormatPNG  Format = "png"
)

// Formats lists every supported format.
var Formats = []Format{FormatPDF, FormatHTML, FormatSVG, FormatPNG}

// ParseFormat maps a name or file extension to a Format. Empty input
// yields FormatPDF.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "pdf":
		return FormatPDF, nil
	case "html", "htm":
		return FormatHTML, nil
	case "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: format %q", ErrUnknownTarget, s)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// fileName returns the output name for t in format f. Graph images get an
// index suffix when there is more than one.
func fileName(t Target, f Format, graph, graphs int) string {
	base := strings.TrimSuffix(t.FileName(), ".pdf")
	switch f {
	case FormatPDF:
		return t.FileName()
	case FormatHTML:
		return base + ".html"
	default:
		if graphs > 1 {
			return fmt.Sprintf("%s-graph-%d.%s", base, graph+1, f)
		}
		return fmt.Sprintf("%s-graph.%s", base, f)
	}
}
