// Package publish pushes Markdown files to Confluence: it loads and converts documents, works out
// which page each one belongs to, and creates or updates that page.
package publish

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	"github.com/toothbrush/confluence-markdown/convert"
)

// FrontMatter is the optional YAML header of a document.
type FrontMatter struct {
	Title  string   `yaml:"title"`
	Labels []string `yaml:"labels"`
	Parent string   `yaml:"parent"`
}

type Document struct {
	Path        string
	FrontMatter FrontMatter

	// Markdown is the body, front matter removed.
	Markdown string

	// Markup is Markdown in storage format.
	Markup string

	// Constructs Convert left as literal text.
	Findings []convert.Finding
}

// LoadDocument reads and converts the file at path.  Any failure matches ErrConversion.
func LoadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't read %s: %v", ErrConversion, path, err)
	}
	return ParseDocument(path, raw)
}

// ParseDocument converts raw, which was read from path.
func ParseDocument(path string, raw []byte) (*Document, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrConversion, path)
	}

	source := strings.TrimPrefix(string(raw), "\ufeff")
	source = strings.ReplaceAll(source, "\r\n", "\n")

	var meta FrontMatter
	body, err := frontmatter.Parse(strings.NewReader(source), &meta)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't parse front matter of %s: %v", ErrConversion, path, err)
	}

	meta.Title = strings.TrimSpace(meta.Title)
	meta.Parent = strings.TrimSpace(meta.Parent)

	markdown := string(body)

	// findings should point at lines of the file, not of the body
	findings := convert.Inspect(markdown)
	if strings.HasSuffix(source, markdown) {
		offset := strings.Count(source[:len(source)-len(markdown)], "\n")
		for i := range findings {
			findings[i].Line += offset
		}
	}

	return &Document{
		Path:        path,
		FrontMatter: meta,
		Markdown:    markdown,
		Markup:      convert.Convert(markdown),
		Findings:    findings,
	}, nil
}
