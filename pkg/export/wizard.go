package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Choice is what the export dialog collected.
type Choice struct {
	Target Target
	Format Format
	Dir    string
	Upload bool
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// ExportForm builds the export dialog. canUpload adds the S3 question.
// Results are written into c when the form completes.
func ExportForm(c *Choice, canUpload bool) *huh.Form {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Format == "" {
		c.Format = FormatPDF
	}

	targets := make([]huh.Option[Target], 0, len(Targets))
	for _, t := range Targets {
		targets = append(targets, huh.NewOption(t.Description(), t))
	}
	formats := make([]huh.Option[Format], 0, len(Formats))
	for _, f := range Formats {
		formats = append(formats, huh.NewOption(strings.ToUpper(string(f)), f))
	}

	fields := []huh.Field{
		huh.NewSelect[Target]().
			Title("What do you want to export?").
			Options(targets...).
			Value(&c.Target),
		huh.NewSelect[Format]().
			Title("Format").
			Options(formats...).
			Value(&c.Format),
		huh.NewInput().
			Title("Output directory").
			Value(&c.Dir).
			Validate(validateDir),
	}
	if canUpload {
		fields = append(fields, huh.NewConfirm().
			Title("Upload to S3?").
			Description("Uses the bucket from export.s3 in the config").
			Value(&c.Upload))
	}
	return newForm(huh.NewGroup(fields...))
}

// RunExportForm shows the dialog on the terminal and returns the choice.
func RunExportForm(canUpload bool) (Choice, error) {
	var c Choice
	if err := ExportForm(&c, canUpload).Run(); err != nil {
		return Choice{}, err
	}
	c.Dir = filepath.Clean(strings.TrimSpace(c.Dir))
	return c, nil
}

func validateDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // created on export
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Summary formats a finished export for the terminal.
func Summary(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exported %s (%s)", r.Target.Description(), r.Format)
	if r.Pages > 0 {
		fmt.Fprintf(&b, ", %d page(s)", r.Pages)
	}
	b.WriteString("\n")
	for _, p := range r.Paths {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	for _, u := range r.URLs {
		fmt.Fprintf(&b, "  %s\n", u)
	}
	return b.String()
}
