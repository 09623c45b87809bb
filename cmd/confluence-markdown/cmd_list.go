/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Commands to list items",
		Long: `
Commands in this namespace are to help you explore the Confluence wiki, for instance to find the
space key to publish to.
`,
	}

	listCmd.AddCommand(newListSpacesCmd())

	return listCmd
}
