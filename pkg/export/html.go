package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// planPolicy strips scripts and event handlers from converted plans but
// keeps the disabled task-list checkboxes GFM renders.
var planPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("input")
	p.AllowAttrs("type").Matching(bluemonday.SpaceSeparatedTokens).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	return p
}()

type htmlGraph struct {
	Title string
	SVG   template.HTML
}

type htmlDocument struct {
	Title     string
	RepoName  string
	Generated string
	Graphs    []htmlGraph
	TestPlan  template.HTML
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 1100px; color: #111; }
header { border-bottom: 1px solid #e5e7eb; margin-bottom: 1.5rem; }
header p { color: #666; margin-top: 0; }
figure { margin: 0 0 1.5rem; overflow-x: auto; }
figcaption { font-weight: 600; margin-bottom: .5rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: .25rem .5rem; }
</style>
</head>
<body>
{{if .Title}}<header>
<h1>{{.Title}}</h1>
<p>{{if .RepoName}}Repository: {{.RepoName}} · {{end}}Generated {{.Generated}}</p>
</header>{{end}}
{{range .Graphs}}<figure>
<figcaption>{{.Title}}</figcaption>
{{.SVG}}
</figure>
{{end}}<section class="test-plan">
<h2>Test Plan</h2>
{{if .TestPlan}}{{.TestPlan}}{{else}}<p>No test plan.</p>{{end}}
</section>
</body>
</html>
`))

// writeHTML renders a standalone document with one inline SVG per graph.
// doc.TestPlan must already be sanitized.
func writeHTML(w io.Writer, doc htmlDocument) error {
	if doc.Generated == "" {
		doc.Generated = time.Now().Format(time.RFC1123)
	}
	if err := documentTemplate.Execute(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func inlineSVG(snap snapshot) (template.HTML, error) {
	var buf bytes.Buffer
	if err := renderSVGToWriter(&buf, snap); err != nil {
		return "", err
	}
	// svgo writes an XML prolog and doctype; inline SVG starts at <svg.
	out := buf.Bytes()
	if i := bytes.Index(out, []byte("<svg")); i > 0 {
		out = out[i:]
	}
	return template.HTML(out), nil
}
