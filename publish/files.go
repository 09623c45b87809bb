package publish

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/exp/slices"
)

// DefaultExcludes keep tooling and dependency directories out of a bulk push.
var DefaultExcludes = []string{
	".git/**",
	".cmt/**",
	"**/node_modules/**",
	"**/vendor/**",
	".venv/**",
	"venv/**",
	"htmlcov/**",
	"**/.pytest_cache/**",
	"**/__pycache__/**",
	"**/.tox/**",
	"**/build/**",
	"**/dist/**",
}

// FindMarkdownFiles lists the .md files under root, sorted.  Patterns are doublestar globs over
// slash-separated paths relative to root.  With include patterns a file must match one of them;
// a file matching exclude or DefaultExcludes is dropped.
func FindMarkdownFiles(root string, include, exclude []string) ([]string, error) {
	excludes := append(slices.Clone(DefaultExcludes), exclude...)
	for _, pattern := range append(slices.Clone(include), excludes...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid glob pattern %q", ErrConfig, pattern)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't access %s: %v", ErrConfig, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrConfig, root)
	}

	var files []string
	err = doublestar.GlobWalk(os.DirFS(root), "**/*.md", func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if matchAny(excludes, path) {
			return nil
		}
		if len(include) > 0 && !matchAny(include, path) {
			return nil
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(path)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish: couldn't walk %s: %w", root, err)
	}

	slices.Sort(files)
	return files, nil
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
