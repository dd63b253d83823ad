package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/loader"
)

func scanCmd(a *app) *cobra.Command {
	var (
		output      string
		text        bool
		extensions  string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Turn a directory of documents into a tree payload",
		Long: "Walk a directory and print a tree payload: folders become inner nodes and\n" +
			"documents become leaves carrying their relative path. --text prints an\n" +
			"indented outline instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loader.ScanDir(cmd.Context(), args[0], loader.ScanOptions{
				Extensions:  splitList(extensions),
				Concurrency: concurrency,
			})
			if err != nil {
				return err
			}

			data, err := root.Payload()
			if err != nil {
				return err
			}
			tree, err := hierarchy.Build(data)
			if err != nil {
				return err
			}

			var out []byte
			if text {
				out = []byte(loader.Outline(tree, loader.PathLabel))
			} else {
				if out, err = json.MarshalIndent(root, "", "  "); err != nil {
					return fmt.Errorf("failed to encode payload: %w", err)
				}
				out = append(out, '\n')
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			good.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d entries)\n", output, tree.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&text, "text", false, "print an indented outline instead of JSON")
	cmd.Flags().StringVar(&extensions, "ext", "", "comma separated extensions to include (default: documents)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "subdirectories walked in parallel (default 8)")
	return cmd
}
