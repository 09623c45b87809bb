/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/confluence-markdown/mapping"
	"github.com/toothbrush/confluence-markdown/publish"
)

var mapUsage = strings.TrimSpace(`
Commands in this namespace manage which Confluence page each Markdown file publishes to.  Mappings
live in .cmt/map.json at the repository root, so they can be committed alongside the documents.
`)

var MapRoot string

func newMapCmd() *cobra.Command {
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Commands to manage file-to-page mappings",
		Long:  mapUsage,
	}

	mapCmd.PersistentFlags().StringVar(&MapRoot, "root", "", "repository root (default: nearest directory with .git)")

	mapCmd.AddCommand(
		newMapAddCmd(),
		newMapListCmd(),
		newMapRemoveCmd(),
	)

	return mapCmd
}

func openStore(cmd *cobra.Command) (*mapping.Store, error) {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	root, err := homedir.Expand(MapRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't expand homedir: %v", publish.ErrConfig, err)
	}
	store, err := mapping.New(root, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", publish.ErrConfig, err)
	}
	return store, nil
}
