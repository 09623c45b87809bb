/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check your credentials",
		Long: `
Ask Confluence who the configured credentials belong to.  Handy to check a new API token before
publishing anything.
`,
		Args: configArgs(cobra.ExactArgs(0)),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			api, stop, err := newAPI(logger)
			if err != nil {
				return err
			}
			defer stop()

			user, err := api.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as '%s (%s)'\n", user.DisplayName, user.AccountID)
			return nil
		},
	}
}
