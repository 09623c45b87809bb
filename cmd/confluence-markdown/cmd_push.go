/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/confluence-markdown/internal/termfmt"
	"github.com/toothbrush/confluence-markdown/mapping"
	"github.com/toothbrush/confluence-markdown/publish"
)

var pushUsage = strings.TrimSpace(`
Convert Markdown files and publish them to Confluence.

Each file is published to the page its mapping names (see 'map add').  With --space, files
without a mapping go to that space, titled after their path: docs/getting-started.md becomes
"docs / Getting Started".  A page that exists is updated, otherwise it is created.

Front matter may set the page title, labels and parent:

  ---
  title: Release notes
  labels: [release]
  parent: "123456"
  ---
`)

var (
	PushAll       bool
	RepoRoot      string
	Include       []string
	Exclude       []string
	Space         string
	ParentID      string
	Labels        []string
	DryRun        bool
	Workers       int
	RecordMapping bool
	Progress      bool
)

func newPushCmd() *cobra.Command {
	pushCmd := &cobra.Command{
		Use:   "push [FILE...]",
		Short: "Publish Markdown files to Confluence",
		Long:  pushUsage,
		RunE:  pushRun,
	}

	pushCmd.Flags().BoolVar(&PushAll, "all", false, "publish every Markdown file under --root")
	pushCmd.Flags().StringVar(&RepoRoot, "root", "", "repository root for mappings and --all (default: nearest directory with .git)")
	pushCmd.Flags().StringSliceVar(&Include, "include", []string{}, "with --all, only publish files matching these globs")
	pushCmd.Flags().StringSliceVar(&Exclude, "exclude", []string{}, "with --all, skip files matching these globs")
	pushCmd.Flags().StringVar(&Space, "space", "", "space for files without a mapping (respects "+spaceEnv+")")
	pushCmd.Flags().StringVar(&ParentID, "parent-id", "", "parent of newly created pages (respects "+parentEnv+")")
	pushCmd.Flags().StringSliceVar(&Labels, "labels", []string{}, "labels to put on every page written")
	pushCmd.Flags().BoolVarP(&DryRun, "dry-run", "n", false, "convert and resolve targets, but don't publish")
	pushCmd.Flags().IntVar(&Workers, "workers", 1, "files to publish in parallel")
	pushCmd.Flags().BoolVar(&RecordMapping, "record-mapping", false, "save a mapping for files published through --space")
	pushCmd.Flags().BoolVar(&Progress, "progress", false, "show a progress bar")

	return pushCmd
}

func pushRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if Workers < 1 {
		return fmt.Errorf("%w: --workers must be at least 1", publish.ErrConfig)
	}

	root, err := homedir.Expand(RepoRoot)
	if err != nil {
		return fmt.Errorf("%w: couldn't expand homedir: %v", publish.ErrConfig, err)
	}
	store, err := mapping.New(root, logger)
	if err != nil {
		return fmt.Errorf("%w: %v", publish.ErrConfig, err)
	}

	files, err := pushFiles(store, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "Nothing to publish.")
		return nil
	}

	publisher := &publish.Publisher{
		Mappings:      store,
		Logger:        logger,
		Root:          store.Root,
		DefaultSpace:  strings.TrimSpace(Space),
		ParentID:      strings.TrimSpace(ParentID),
		Labels:        Labels,
		DryRun:        DryRun,
		RecordMapping: RecordMapping,
		Workers:       Workers,
	}
	if Progress {
		publisher.Progress = cmd.ErrOrStderr()
	}

	site := ""
	if !DryRun {
		api, stop, err := newAPI(logger)
		if err != nil {
			return err
		}
		defer stop()
		publisher.Client = api
		site = strings.TrimSuffix(api.BaseURI.String(), "/")
	}

	outcomes := publisher.PublishAll(ctx, files)
	printOutcomes(stdout, store, site, outcomes)

	return publish.FirstError(outcomes)
}

// pushFiles resolves the command line to the files to publish: the arguments, or with --all
// every Markdown file under the repository root.
func pushFiles(store *mapping.Store, args []string) ([]string, error) {
	if PushAll {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: pass either files or --all, not both", publish.ErrConfig)
		}
		return publish.FindMarkdownFiles(store.Root, Include, Exclude)
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no files given: pass paths or --all", publish.ErrConfig)
	}

	files := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := homedir.Expand(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: couldn't expand homedir: %v", publish.ErrConfig, err)
		}
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file does not exist: %s", publish.ErrConfig, path)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: couldn't stat %s: %v", publish.ErrConfig, path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory, use --all --root %s", publish.ErrConfig, path, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", publish.ErrConfig, err)
		}
		files = append(files, abs)
	}
	return files, nil
}

var actionColors = map[publish.Action]termfmt.Color{
	publish.ActionCreated: termfmt.Green,
	publish.ActionUpdated: termfmt.Cyan,
	publish.ActionDryRun:  termfmt.Yellow,
	publish.ActionSkipped: termfmt.Red,
}

// printOutcomes reports one line per file, then a summary.  Page links are relative to site.
func printOutcomes(w io.Writer, store *mapping.Store, site string, outcomes []publish.Outcome) {
	counts := map[publish.Action]int{}
	for _, out := range outcomes {
		counts[out.Action]++
		style := termfmt.Bold().Fg(actionColors[out.Action])
		key := store.Normalize(out.Path)

		switch {
		case out.Err != nil:
			fmt.Fprintf(w, "%-8s %s: %s\n", style.V(out.Action), key, publish.Describe(out.Err))
			fmt.Fprintf(w, "         %v\n", out.Err)
		case out.Page != nil:
			page := fmt.Sprintf("page %s v%d", out.Page.ID, out.Page.Version)
			if site != "" && out.Page.WebUI != "" {
				page = fmt.Sprint(termfmt.Linked(site + out.Page.WebUI).V(page))
			}
			fmt.Fprintf(w, "%-8s %s -> %q (%s)\n", style.V(out.Action), key, out.Page.Title, page)
		default:
			fmt.Fprintf(w, "%-8s %s -> %s\n", style.V(out.Action), key, out.Target)
		}

		if out.LabelErr != nil {
			fmt.Fprintf(w, "         labels not applied: %v\n", out.LabelErr)
		}
		for _, f := range out.Findings {
			fmt.Fprintf(w, "         %s %s\n", termfmt.Fg(termfmt.Yellow).V("left as text:"), f)
		}
	}

	fmt.Fprintf(w, "\n%d created, %d updated, %d dry-run, %d skipped\n",
		counts[publish.ActionCreated],
		counts[publish.ActionUpdated],
		counts[publish.ActionDryRun],
		counts[publish.ActionSkipped])
}
