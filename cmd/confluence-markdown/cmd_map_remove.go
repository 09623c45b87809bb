/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMapRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove FILE",
		Short: "Forget the mapping for a file",
		Args:  configArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			removed, err := store.Remove(args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "No mapping for %s.\n", store.Normalize(args[0]))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed mapping for %s.\n", store.Normalize(args[0]))
			return nil
		},
	}
}
