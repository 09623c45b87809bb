/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var MapListYAML bool

func newMapListCmd() *cobra.Command {
	mapListCmd := &cobra.Command{
		Use:   "list",
		Short: "Print all mappings",
		Args:  configArgs(cobra.ExactArgs(0)),
		RunE:  mapListRun,
	}

	mapListCmd.Flags().BoolVar(&MapListYAML, "yaml", false, "print as YAML")

	return mapListCmd
}

func mapListRun(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	entries, err := store.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if MapListYAML {
		raw, err := yaml.Marshal(map[string]any{"mappings": entries})
		if err != nil {
			return fmt.Errorf("map: couldn't encode mappings: %w", err)
		}
		_, err = out.Write(raw)
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "No mappings in %s.\n", store.Path)
		return nil
	}

	keys, err := store.Keys()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "mappings:\n")
	for _, key := range keys {
		if e, ok := entries[key]; ok {
			fmt.Fprintf(out, "  - %s: %s\n", key, e)
		}
	}
	return nil
}
