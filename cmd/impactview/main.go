// Command impactview is a terminal client for the impact analysis service:
// describe a change, see which modules it touches and the test plan to run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/impactview/pkg/metrics"
	"github.com/vanderheijden86/impactview/pkg/version"
)

var (
	configPath  string
	showMetrics bool
	cpuProfile  string
	noHooks     bool

	stopProfile func()
)

var rootCmd = &cobra.Command{
	Use:     "impactview",
	Short:   "Chat with the impact analyzer and browse the impacted modules",
	Version: version.String(),
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if showMetrics {
			metrics.SetEnabled(true)
		}
		if cpuProfile == "" {
			return nil
		}
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		stopProfile = func() {
			pprof.StopCPUProfile()
			f.Close()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			stopProfile()
		}
		if showMetrics {
			metrics.WriteSummary(os.Stderr)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()
		return runChat(cmd.Context(), a)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/impactview/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print timing metrics on exit")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().BoolVar(&noHooks, "no-hooks", false, "skip export hooks from hooks.yaml")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(sessionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
