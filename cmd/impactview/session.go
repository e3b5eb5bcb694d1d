package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the session id sent with analysis requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		id := a.session.ID()
		if id == "" {
			return fmt.Errorf("no terminal session detected; set IMPACTVIEW_SESSION_SCOPE")
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start a new session id for this terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.session.Reset()
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("no terminal session detected; set IMPACTVIEW_SESSION_SCOPE")
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionResetCmd)
}
