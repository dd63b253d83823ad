// Command treescope explores hierarchical analyses as a collapsible tree,
// in the browser or in the terminal.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		bad.Fprintf(os.Stderr, "treescope: %v\n", err)
		os.Exit(1)
	}
}
