package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/impactview/internal/datasource"
	"github.com/vanderheijden86/impactview/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <response.json|dir|->",
	Short: "Export a saved response to PDF, HTML, SVG or PNG",
	Long: `Export a saved analysis response. A directory uses its most recent valid
*.json file and "-" reads from stdin. With --interactive the target,
format and directory are chosen in a form.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetName, _ := cmd.Flags().GetString("target")
		formatName, _ := cmd.Flags().GetString("format")
		dir, _ := cmd.Flags().GetString("dir")
		upload, _ := cmd.Flags().GetBool("upload")
		interactive, _ := cmd.Flags().GetBool("interactive")

		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := datasource.LoadPanel(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		if data.IsEmpty() {
			return fmt.Errorf("%s has no graphs and no test plan", args[0])
		}

		e := a.exporter(cmd.Context(), a.converter())

		var req export.Request
		if interactive {
			choice, err := export.RunExportForm(e.CanUpload())
			if err != nil {
				return err
			}
			req = export.RequestFor(choice)
		} else {
			target, err := export.ParseTarget(targetName)
			if err != nil {
				return err
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if upload && !e.CanUpload() {
				return fmt.Errorf("--upload needs export.s3.bucket in %s", a.configPath)
			}
			req = export.Request{Target: target, Format: format, Dir: dir, SkipUpload: !upload}
		}

		res, err := e.Run(cmd.Context(), req, data)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), export.Summary(res))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("target", "t", "document", "document, panel or testplan")
	exportCmd.Flags().StringP("format", "f", "pdf", "pdf, html, svg or png")
	exportCmd.Flags().StringP("dir", "o", "", "output directory (default export.dir from the config)")
	exportCmd.Flags().Bool("upload", false, "upload the files to the configured S3 bucket")
	exportCmd.Flags().BoolP("interactive", "i", false, "choose target, format and directory in a form")
}
