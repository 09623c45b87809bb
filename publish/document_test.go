package publish_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toothbrush/confluence-markdown/publish"
)

func TestParseDocument_FrontMatter(t *testing.T) {
	t.Parallel()

	raw := "---\r\ntitle: \" Release Notes \"\r\nlabels: [release, notes]\r\nparent: \"1001\"\r\n---\r\n# Changes\r\n\r\n> quoted\r\n"
	doc, err := publish.ParseDocument("notes.md", []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, publish.FrontMatter{
		Title:  "Release Notes",
		Labels: []string{"release", "notes"},
		Parent: "1001",
	}, doc.FrontMatter)
	assert.NotContains(t, doc.Markdown, "title:")
	assert.Equal(t, "<h1>Changes</h1>\n\n<p>&gt; quoted</p>", doc.Markup)

	require.Len(t, doc.Findings, 1)
	assert.Equal(t, "blockquote", doc.Findings[0].Construct)
	// counted from the top of the file
	assert.Equal(t, 8, doc.Findings[0].Line)
}

func TestParseDocument_WithoutFrontMatter(t *testing.T) {
	t.Parallel()

	doc, err := publish.ParseDocument("plain.md", []byte("\ufeffHello *there*"))
	require.NoError(t, err)
	assert.Equal(t, publish.FrontMatter{}, doc.FrontMatter)
	assert.Equal(t, "<p>Hello <em>there</em></p>", doc.Markup)
	assert.Empty(t, doc.Findings)
}

func TestParseDocument_Failures(t *testing.T) {
	t.Parallel()

	_, err := publish.ParseDocument("bad.md", []byte{'a', 0xff, 0xfe})
	assert.ErrorIs(t, err, publish.ErrConversion)
	assert.Contains(t, err.Error(), "UTF-8")

	_, err = publish.ParseDocument("broken.md", []byte("---\ntitle: [unclosed\n---\nbody\n"))
	assert.ErrorIs(t, err, publish.ErrConversion)
	assert.Contains(t, err.Error(), "front matter")
}

func TestLoadDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("- one\n- two\n"), 0644))

	doc, err := publish.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "<ul><li>one</li>\n<li>two</li>\n</ul>", doc.Markup)

	_, err = publish.LoadDocument(filepath.Join(dir, "missing.md"))
	assert.ErrorIs(t, err, publish.ErrConversion)
	assert.Equal(t, publish.ExitConversion, publish.ExitCode(err))
}

func TestTitleFromPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want string
	}{
		{"docs/getting-started.md", "docs / Getting Started"},
		{"README.md", "README"},
		{"CHANGELOG.md", "CHANGELOG"},
		{"intro_guide.md", "Intro Guide"},
		{"docs/README.md", "docs / Readme"},
		{"a/b/mixed-CASE_words.md", "a / b / Mixed Case Words"},
		{"./notes.md", "Notes"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, publish.TitleFromPath(c.path, ""), c.path)
	}

	root := t.TempDir()
	assert.Equal(t, "guides / Set Up", publish.TitleFromPath(filepath.Join(root, "guides", "set-up.md"), root))
	assert.Equal(t, "Elsewhere", publish.TitleFromPath(filepath.Join(filepath.Dir(root), "elsewhere.md"), root))
}
