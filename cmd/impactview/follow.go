package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/model"
)

var followCmd = &cobra.Command{
	Use:   "follow <session-id>",
	Short: "Watch another session's panel live over NATS",
	Long: `Open a read-only panel that shows every analysis published by another
impactview session. Both sides need nats.url in their config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.follower()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		cell := bus.New[model.PanelData]()
		if err := m.Follow(ctx, args[0], cell); err != nil {
			return err
		}
		return runViewer(ctx, a, viewerOptions{cell: cell, title: "following " + args[0]})
	},
}
