package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/treescope/pkg/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			brand.Fprintf(out, "treescope %s\n", version.Version)
			subtle.Fprintf(out, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
