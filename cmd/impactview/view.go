package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/impactview/internal/datasource"
	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/model"
)

var viewCmd = &cobra.Command{
	Use:   "view <response.json|dir|->",
	Short: "Browse a saved response; the file is reloaded when it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, src, err := datasource.Load(args[0], os.Stdin)
		if err != nil {
			return err
		}
		a.logger.Debug("loaded response", "source", src.String(), "graphs", src.GraphCount)

		cell := bus.New[model.PanelData]()
		cell.Publish(resp.PanelData())

		vo := viewerOptions{cell: cell, title: filepath.Base(src.Path)}
		if src.Type == datasource.SourceTypeFile {
			vo.responsePath = src.Path
		} else {
			vo.title = "stdin"
		}
		if err := runViewer(cmd.Context(), a, vo); err != nil {
			return fmt.Errorf("viewing %s: %w", args[0], err)
		}
		return nil
	},
}
