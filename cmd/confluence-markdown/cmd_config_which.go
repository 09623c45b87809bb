/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigWhichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "which",
		Short: "Tell me the resolved config path",
		Long: `
Output the filename that's being used to store your config.
`,
		Args: configArgs(cobra.ExactArgs(0)),
		Run: func(cmd *cobra.Command, args []string) {
			suffix := ""
			if !ConfigLoaded {
				suffix = " (not found)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config path: %s%s\n", ConfigActual, suffix)
		},
	}
}
