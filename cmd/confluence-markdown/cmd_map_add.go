/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toothbrush/confluence-markdown/mapping"
	"github.com/toothbrush/confluence-markdown/publish"
)

var mapAddUsage = strings.TrimSpace(`
Map a Markdown file to a page, either by ID:

  confluence-markdown map add docs/intro.md --page-id 123456

or by space and title, in which case push creates the page if it doesn't exist yet:

  confluence-markdown map add docs/intro.md --space DOC --title "Introduction"
`)

var (
	MapPageID string
	MapSpace  string
	MapTitle  string
)

func newMapAddCmd() *cobra.Command {
	mapAddCmd := &cobra.Command{
		Use:   "add FILE",
		Short: "Create or replace the mapping for a file",
		Long:  mapAddUsage,
		Args:  configArgs(cobra.ExactArgs(1)),
		RunE:  mapAddRun,
	}

	mapAddCmd.Flags().StringVar(&MapPageID, "page-id", "", "ID of the page")
	mapAddCmd.Flags().StringVar(&MapSpace, "space", "", "space key of the page (respects "+spaceEnv+")")
	mapAddCmd.Flags().StringVar(&MapTitle, "title", "", "title of the page, used together with --space")

	return mapAddCmd
}

func mapAddRun(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	res, err := store.Add(args[0], mapping.Entry{
		PageID:   MapPageID,
		SpaceKey: MapSpace,
		Title:    MapTitle,
	})
	if errors.Is(err, mapping.ErrInvalidEntry) || errors.Is(err, mapping.ErrDuplicate) {
		return fmt.Errorf("%w: %v", publish.ErrConfig, err)
	}
	if err != nil {
		return err
	}

	verb := "Updated"
	if res.Created {
		verb = "Created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s mapping: %s -> %s\n", verb, store.Normalize(args[0]), res.Entry)
	return nil
}
