package mapping_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toothbrush/confluence-markdown/mapping"
)

// newRepo makes a directory with a .git marker and a store rooted there.
func newRepo(t *testing.T) (string, *mapping.Store) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	store, err := mapping.New(root, nil)
	require.NoError(t, err)
	return root, store
}

func TestEntry_Validate(t *testing.T) {
	t.Parallel()

	valid := []mapping.Entry{
		{PageID: "123"},
		{PageID: "123", SpaceKey: "DOC"},
		{SpaceKey: "DOC", Title: "Home"},
	}
	for _, e := range valid {
		assert.NoError(t, e.Validate(), e.String())
	}

	invalid := []mapping.Entry{
		{},
		{PageID: "123", Title: "Home"},
		{SpaceKey: "DOC"},
		{Title: "Home"},
	}
	for _, e := range invalid {
		assert.ErrorIs(t, e.Validate(), mapping.ErrInvalidEntry, "%+v", e)
	}
}

func TestFindRoot(t *testing.T) {
	t.Parallel()
	root, store := newRepo(t)
	nested := filepath.Join(root, "docs", "guides")
	require.NoError(t, os.MkdirAll(nested, 0755))

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	assert.Equal(t, realRoot, mapping.FindRoot(nested))
	assert.Equal(t, filepath.Join(store.Root, ".cmt", "map.json"), store.Path)
}

func TestStore_Normalize(t *testing.T) {
	t.Parallel()
	root, store := newRepo(t)

	assert.Equal(t, "docs/a.md", store.Normalize(filepath.Join(root, "docs", "a.md")))
	assert.Equal(t, "docs/a.md", store.Normalize(filepath.Join(root, "docs", ".", "b", "..", "a.md")))
	assert.Equal(t, ".github/README.md", store.Normalize(filepath.Join(root, ".github", "README.md")))
}

func TestRealPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	realTarget, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)

	assert.Equal(t, realTarget, mapping.RealPath(link))
	// the missing tail is kept below the resolved prefix
	assert.Equal(t, filepath.Join(realTarget, "docs", "new.md"), mapping.RealPath(filepath.Join(link, "docs", "new.md")))
}

func TestStore_AddGetRemove(t *testing.T) {
	t.Parallel()
	root, store := newRepo(t)
	path := filepath.Join(root, "docs", "intro.md")

	_, ok, err := store.Get(path)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := store.Add(path, mapping.Entry{PageID: " 42 "})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, mapping.Entry{PageID: "42"}, res.Entry)

	got, ok, err := store.Get(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mapping.Entry{PageID: "42"}, got)

	res, err = store.Add(path, mapping.Entry{SpaceKey: "DOC", Title: "Intro"})
	require.NoError(t, err)
	assert.False(t, res.Created)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/intro.md"}, keys)

	removed, err := store.Remove(path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove(path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_FileFormat(t *testing.T) {
	t.Parallel()
	root, store := newRepo(t)

	_, err := store.Add(filepath.Join(root, "b.md"), mapping.Entry{SpaceKey: "DOC", Title: "B"})
	require.NoError(t, err)
	_, err = store.Add(filepath.Join(root, "a.md"), mapping.Entry{PageID: "1"})
	require.NoError(t, err)

	raw, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, `{
  "a.md": {
    "page_id": "1"
  },
  "b.md": {
    "space_key": "DOC",
    "title": "B"
  }
}
`, string(raw))

	// no temp files left behind
	files, err := os.ReadDir(filepath.Dir(store.Path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStore_Uniqueness(t *testing.T) {
	t.Parallel()
	root, store := newRepo(t)

	_, err := store.Add(filepath.Join(root, "a.md"), mapping.Entry{PageID: "1"})
	require.NoError(t, err)
	_, err = store.Add(filepath.Join(root, "b.md"), mapping.Entry{SpaceKey: "DOC", Title: "B"})
	require.NoError(t, err)

	_, err = store.Add(filepath.Join(root, "c.md"), mapping.Entry{PageID: "1"})
	assert.ErrorIs(t, err, mapping.ErrDuplicate)
	assert.Contains(t, err.Error(), "a.md")

	_, err = store.Add(filepath.Join(root, "c.md"), mapping.Entry{SpaceKey: "DOC", Title: "B"})
	assert.ErrorIs(t, err, mapping.ErrDuplicate)

	// same title in another space is fine, and so is re-adding to the same path
	_, err = store.Add(filepath.Join(root, "c.md"), mapping.Entry{SpaceKey: "ENG", Title: "B"})
	assert.NoError(t, err)
	_, err = store.Add(filepath.Join(root, "a.md"), mapping.Entry{PageID: "1"})
	assert.NoError(t, err)

	_, err = store.Add(filepath.Join(root, "d.md"), mapping.Entry{PageID: "9", Title: "x"})
	assert.ErrorIs(t, err, mapping.ErrInvalidEntry)

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_CorruptFileIsEmpty(t *testing.T) {
	t.Parallel()
	root, _ := newRepo(t)

	var logs bytes.Buffer
	store, err := mapping.New(root, slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path), 0755))
	require.NoError(t, os.WriteFile(store.Path, []byte("[not, json"), 0644))

	all, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Contains(t, logs.String(), "ignoring unreadable mapping file")

	// the next write replaces it
	_, err = store.Add(filepath.Join(root, "a.md"), mapping.Entry{PageID: "1"})
	require.NoError(t, err)
	var onDisk map[string]mapping.Entry
	raw, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, mapping.Entry{PageID: "1"}, onDisk["a.md"])
}

func TestStore_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	root, store := newRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Add(filepath.Join(root, "docs", string(rune('a'+i))+".md"), mapping.Entry{PageID: string(rune('A' + i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
