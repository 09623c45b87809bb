package publish

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/toothbrush/confluence-markdown/mapping"
)

// TitleFromPath derives a page title from a file's place in the repository:
// docs/getting-started.md becomes "docs / Getting Started".  A top-level file whose name is all
// upper case, like README.md, keeps its name.
//
// With an empty root, path is taken to be relative already.
func TitleFromPath(path, root string) string {
	rel := filepath.Clean(path)
	if root != "" {
		rel = filepath.Base(path)
		if r, err := filepath.Rel(mapping.RealPath(root), mapping.RealPath(path)); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			rel = r
		}
	}

	parts := strings.Split(strings.TrimPrefix(filepath.ToSlash(rel), "./"), "/")
	name := parts[len(parts)-1]
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	if len(parts) == 1 && stem == strings.ToUpper(stem) {
		return stem
	}

	words := titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(stem))
	return strings.Join(append(parts[:len(parts)-1], words), " / ")
}

// titleCase upper-cases the first letter of each run of letters and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}
