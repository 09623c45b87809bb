/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var listSpacesUsage = strings.TrimSpace(`
If you want to find out what spaces your Confluence wiki has, use this command.
`)

var IncludePersonal bool

func newListSpacesCmd() *cobra.Command {
	listSpacesCmd := &cobra.Command{
		Use:   "spaces",
		Short: "Print list of spaces",
		Long:  listSpacesUsage,
		Args:  configArgs(cobra.ExactArgs(0)),
		RunE:  listSpacesRun,
	}

	listSpacesCmd.Flags().BoolVar(&IncludePersonal, "include-personal-spaces", false, "list individuals' personal spaces")

	return listSpacesCmd
}

func listSpacesRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	api, stop, err := newAPI(logger)
	if err != nil {
		return err
	}
	defer stop()

	logger.Debug("listing Confluence spaces", slog.String("site", api.BaseURI.String()))
	spaces, err := api.ListAllSpaces(cmd.Context(), BaseURL, IncludePersonal)
	if err != nil {
		return err
	}
	logger.Debug("found spaces", slog.Int("count", len(spaces)))

	keys := maps.Keys(spaces)
	slices.Sort(keys)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "spaces:\n")
	for _, key := range keys {
		fmt.Fprintf(out, "  - %s: %s\n", key, spaces[key].Name)
	}

	return nil
}
