package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/impactview/pkg/analysis"
	"github.com/vanderheijden86/impactview/pkg/bus"
	"github.com/vanderheijden86/impactview/pkg/chat"
	"github.com/vanderheijden86/impactview/pkg/gateway"
	"github.com/vanderheijden86/impactview/pkg/graphview"
	"github.com/vanderheijden86/impactview/pkg/model"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Run one analysis and print the impacted modules and test plan",
	Long: `Run one analysis without the TUI. The prompt is read from the arguments,
or from stdin when no arguments are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		savePath, _ := cmd.Flags().GetString("save")

		prompt := strings.Join(args, " ")
		if strings.TrimSpace(prompt) == "" && !isTerminal(cmd.InOrStdin()) {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading prompt: %w", err)
			}
			prompt = string(b)
		}

		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		cell := bus.New[model.PanelData]()
		mirror := a.mirror(cell)
		c := chat.New(a.gateway(), cell)

		reply, err := c.Submit(cmd.Context(), prompt)
		if errors.Is(err, gateway.ErrEmptyPrompt) {
			return fmt.Errorf("nothing to analyze: the prompt is empty")
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), reply.Text)
			return err
		}
		if mirror != nil {
			if err := mirror.Flush(); err != nil {
				a.logger.Warn("flushing panel mirror", "err", err)
			}
		}

		latest, _ := cell.Latest()
		resp := model.PromptResponse{
			Graphs:        latest.Value.GraphData,
			TestPlan:      model.TestPlan{TestPlan: latest.Value.TestPlan},
			PromptMessage: reply.Text,
			RepoName:      latest.Value.RepoName,
		}.Normalize()

		if savePath != "" {
			if err := saveResponse(savePath, resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved response to %s\n", savePath)
		}
		if jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		return printResponse(cmd.OutOrStdout(), a, resp, stdoutIsTerminal())
	},
}

func init() {
	askCmd.Flags().Bool("json", false, "print the normalized response as JSON")
	askCmd.Flags().String("save", "", "also write the response to this file (for view and export)")
}

func saveResponse(path string, resp model.PromptResponse) error {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("saving response: %w", err)
	}
	return nil
}

// printResponse writes a plain summary of every graph followed by the test
// plan. rich renders the plan with glamour.
func printResponse(w io.Writer, a *app, resp model.PromptResponse, rich bool) error {
	if resp.RepoName != "" {
		fmt.Fprintf(w, "Repository: %s\n", resp.RepoName)
	}
	fmt.Fprintln(w, resp.PromptMessage)
	fmt.Fprintln(w)

	for i, g := range resp.Graphs {
		vg := graphview.Build(g, graphview.Options{Sanitize: a.cfg.Graph.SanitizeIDs})
		fmt.Fprintf(w, "Graph %d: %d modules, %d links, %d critical\n", i+1, len(vg.Nodes), len(vg.Links), vg.CriticalCount())
		for _, l := range vg.Links {
			mark := " "
			if l.Data.Critical {
				mark = "!"
			}
			fmt.Fprintf(w, "  %s %s -[%s]-> %s\n", mark, l.Source, l.Label, l.Target)
		}
		report := analysis.Analyze(vg)
		if top := report.Top(3); len(top) > 0 {
			names := make([]string, len(top))
			for j, m := range top {
				names[j] = fmt.Sprintf("%s (%d)", m.ID, m.Reach)
			}
			fmt.Fprintf(w, "  widest reach: %s\n", strings.Join(names, ", "))
		}
		for _, c := range report.Cycles {
			fmt.Fprintf(w, "  cycle: %s\n", strings.Join(c, " <-> "))
		}
	}

	plan := resp.TestPlan.TestPlan
	if plan == "" {
		return nil
	}
	fmt.Fprintln(w)
	if !rich {
		fmt.Fprintln(w, plan)
		return nil
	}
	out, err := a.converter().Terminal(plan, terminalWidth(100))
	if err != nil {
		fmt.Fprintln(w, plan)
		return nil
	}
	fmt.Fprint(w, out)
	return nil
}
