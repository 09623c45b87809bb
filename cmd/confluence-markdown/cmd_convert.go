/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/confluence-markdown/internal/termfmt"
	"github.com/toothbrush/confluence-markdown/publish"
)

var convertUsage = strings.TrimSpace(`
Convert a Markdown file to Confluence storage format and print it, without talking to Confluence.
Constructs that aren't supported, like tables or blockquotes, are reported on stderr; they end up
in the page as plain text.
`)

var ConvertOutput string

func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Print a Markdown file in storage format",
		Long:  convertUsage,
		Args:  configArgs(cobra.ExactArgs(1)),
		RunE:  convertRun,
	}

	convertCmd.Flags().StringVarP(&ConvertOutput, "output", "o", "", "write the markup to this file instead of stdout")

	return convertCmd
}

func convertRun(cmd *cobra.Command, args []string) error {
	path, err := homedir.Expand(args[0])
	if err != nil {
		return fmt.Errorf("%w: couldn't expand homedir: %v", publish.ErrConfig, err)
	}

	doc, err := publish.LoadDocument(path)
	if err != nil {
		return err
	}

	for _, f := range doc.Findings {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", termfmt.Fg(termfmt.Yellow).V("warning:"), args[0], f)
	}

	if ConvertOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), doc.Markup)
		return nil
	}

	out, err := homedir.Expand(ConvertOutput)
	if err != nil {
		return fmt.Errorf("%w: couldn't expand homedir: %v", publish.ErrConfig, err)
	}
	if err := os.WriteFile(out, []byte(doc.Markup+"\n"), 0644); err != nil {
		return fmt.Errorf("%w: couldn't write %s: %v", publish.ErrConversion, out, err)
	}
	return nil
}
