package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"avrstack/internal/mcuprofile"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "list the built-in MCU profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range mcuprofile.Names() {
				cfg, _ := mcuprofile.Builtin(name)
				fmt.Printf("%-12s ram=%-6d call_overhead=%-2d isr_prefix=%s\n",
					cfg.MCU, cfg.RAMTotal, cfg.CallOverheadBytes, cfg.ISRNamingPattern)
			}
			return nil
		},
	}
}
