package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

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

// promptUpload asks for whatever the flags left open.
func promptUpload(objective, output *string) error {
	return newForm(
		huh.NewGroup(
			huh.NewText().
				Title("Objective").
				Description("What should the analysis focus on?").
				Value(objective),
			huh.NewInput().
				Title("Save tree to").
				Value(output).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("a file name is required")
					}
					return nil
				}),
		),
	).Run()
}

func uploadCmd(a *app) *cobra.Command {
	var (
		objective    string
		output       string
		analysisPath string
		backend      string
		noPrompt     bool
	)
	cmd := &cobra.Command{
		Use:   "upload <archive>",
		Short: "Send an archive to the analysis backend and save the resulting tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend != "" {
				a.cfg.Server.Backend = backend
			}
			client := a.backend()
			if client == nil {
				return errors.New("no analysis backend configured")
			}
			if objective == "" && !noPrompt && isTerminal() {
				if err := promptUpload(&objective, &output); err != nil {
					return err
				}
			}

			archive, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open archive: %w", err)
			}
			defer archive.Close()

			out := cmd.OutOrStdout()
			subtle.Fprintf(out, "Uploading %s to %s\n", filepath.Base(args[0]), client.BaseURL)
			resp, err := client.Upload(cmd.Context(), filepath.Base(args[0]), archive, objective)
			if err != nil {
				return err
			}

			data, err := unwrapTree(resp.Tree)
			if err != nil {
				return err
			}
			tree, err := hierarchy.Build(data)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			a.remember(output)
			good.Fprintf(out, "Wrote %s (%d nodes)\n", output, tree.Len())

			if resp.Objective != "" {
				info.Fprintf(out, "Objective: %s\n", resp.Objective)
			}
			switch {
			case resp.Analysis == "":
				warn.Fprintln(out, "The backend returned no analysis")
			case analysisPath != "":
				if err := os.WriteFile(analysisPath, []byte(resp.Analysis), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", analysisPath, err)
				}
				good.Fprintf(out, "Wrote %s\n", analysisPath)
			default:
				fmt.Fprintf(out, "\n%s\n", resp.Analysis)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&objective, "objective", "", "what the analysis should focus on")
	cmd.Flags().StringVarP(&output, "output", "o", "tree.json", "where to save the tree payload")
	cmd.Flags().StringVar(&analysisPath, "analysis", "", "save the markdown analysis here instead of printing it")
	cmd.Flags().StringVar(&backend, "backend", "", "analysis backend URL (default from config)")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask for missing values")
	return cmd
}
