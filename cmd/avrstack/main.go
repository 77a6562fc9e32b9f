// Command avrstack statically bounds the worst-case call-stack depth of an
// AVR firmware image and reports whether it fits in the target's RAM.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "avrstack",
		Short: "static stack-depth and memory-footprint analyzer for AVR firmware",
	}
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newProfilesCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}
