// Package mapping remembers which Confluence page each Markdown file publishes to.  Entries live in
// a JSON file, .cmt/map.json at the repository root, keyed by repository-relative POSIX path.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	Dir      = ".cmt"
	FileName = "map.json"
)

var (
	ErrInvalidEntry = errors.New("mapping: invalid entry")
	ErrDuplicate    = errors.New("mapping: target already mapped")
)

// Entry addresses a page either by ID or by (SpaceKey, Title).  An ID-addressed entry may carry
// the space for information, never a title.
type Entry struct {
	PageID   string `json:"page_id,omitempty" yaml:"page_id,omitempty"`
	SpaceKey string `json:"space_key,omitempty" yaml:"space_key,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
}

func (e Entry) ByID() bool { return e.PageID != "" }

func (e Entry) String() string {
	if e.ByID() {
		return "page " + e.PageID
	}
	return fmt.Sprintf("%s / %q", e.SpaceKey, e.Title)
}

func (e Entry) trimmed() Entry {
	return Entry{
		PageID:   strings.TrimSpace(e.PageID),
		SpaceKey: strings.TrimSpace(e.SpaceKey),
		Title:    strings.TrimSpace(e.Title),
	}
}

// Validate checks that exactly one addressing mode is in use.
func (e Entry) Validate() error {
	byID := e.ByID()
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Title,
			validation.When(byID, validation.Empty.Error("cannot be combined with page_id")),
			validation.When(!byID, validation.Required.Error("is required without page_id")),
		),
		validation.Field(&e.SpaceKey,
			validation.When(!byID, validation.Required.Error("is required without page_id")),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// AddResult reports what Add stored, and whether the path was new.
type AddResult struct {
	Created bool
	Entry   Entry
}

// Store is safe for concurrent use within one process.  Every call re-reads the file, so external
// edits are picked up.
type Store struct {
	// Location of map.json.
	Path string

	// Repository root; keys are relative to it.
	Root string

	Logger *slog.Logger

	mu sync.Mutex
}

// New opens the store for the repository containing dir (see FindRoot).  The file isn't touched
// until the first write.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("mapping: couldn't get working directory: %w", err)
		}
		dir = wd
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("mapping: couldn't expand homedir: %w", err)
	}

	root := FindRoot(dir)
	return &Store{
		Path:   filepath.Join(root, Dir, FileName),
		Root:   root,
		Logger: logger,
	}, nil
}

// FindRoot walks up from dir to the nearest directory containing .git.  Without one, dir itself
// is the root.
func FindRoot(dir string) string {
	start := RealPath(dir)
	for current := start; ; {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return start
		}
		current = parent
	}
}

// Normalize turns path into its key: relative to Root, forward slashes, no leading "./" or "/".
// Paths outside the repository keep their cleaned form.
func (s *Store) Normalize(path string) string {
	abs := RealPath(path)
	root := RealPath(s.Root)

	key := filepath.Clean(path)
	if rel, err := filepath.Rel(root, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		key = rel
	}

	key = filepath.ToSlash(key)
	for strings.HasPrefix(key, "./") {
		key = key[2:]
	}
	return strings.TrimLeft(key, "/")
}

func (s *Store) Get(path string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := entries[s.Normalize(path)]
	return e, ok, nil
}

// List returns every entry by key.
func (s *Store) List() (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Keys returns the mapped paths in sorted order.
func (s *Store) Keys() ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	return sortedKeys(entries), nil
}

// Add creates or replaces the entry for path.  It fails if the page ID or (space, title) pair is
// already mapped to another path.
func (s *Store) Add(path string, e Entry) (AddResult, error) {
	e = e.trimmed()
	if err := e.Validate(); err != nil {
		return AddResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return AddResult{}, err
	}

	key := s.Normalize(path)
	_, exists := entries[key]

	for _, other := range sortedKeys(entries) {
		if other == key {
			continue
		}
		o := entries[other]
		if e.ByID() && o.PageID == e.PageID {
			return AddResult{}, fmt.Errorf("%w: page ID %s is already mapped to %s", ErrDuplicate, e.PageID, other)
		}
		if !e.ByID() && !o.ByID() && o.SpaceKey == e.SpaceKey && o.Title == e.Title {
			return AddResult{}, fmt.Errorf("%w: space %s + title %q is already mapped to %s", ErrDuplicate, e.SpaceKey, e.Title, other)
		}
	}

	entries[key] = e
	if err := s.save(entries); err != nil {
		return AddResult{}, err
	}

	s.logger().Info("saved mapping",
		slog.String("path", key),
		slog.Bool("created", !exists),
		slog.String("target", e.String()))

	return AddResult{Created: !exists, Entry: e}, nil
}

// Remove deletes the entry for path, reporting whether there was one.
func (s *Store) Remove(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}

	key := s.Normalize(path)
	if _, ok := entries[key]; !ok {
		return false, nil
	}
	delete(entries, key)

	if err := s.save(entries); err != nil {
		return false, err
	}
	s.logger().Info("removed mapping", slog.String("path", key))
	return true, nil
}

// load reads the file.  A missing file is an empty map; so is a corrupt one, with a warning.
func (s *Store) load() (map[string]Entry, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mapping: couldn't open %s: %w", s.Path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("mapping: couldn't read %s: %w", s.Path, err)
	}

	entries := map[string]Entry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger().Warn("ignoring unreadable mapping file",
			slog.String("path", s.Path),
			slog.String("error", err.Error()))
		return map[string]Entry{}, nil
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries, nil
}

// save writes through a temporary file in the same directory so readers never see half a file.
func (s *Store) save(entries map[string]Entry) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mapping: couldn't create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("mapping: couldn't encode mappings: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".map-*.json")
	if err != nil {
		return fmt.Errorf("mapping: couldn't create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("mapping: couldn't write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("mapping: couldn't close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("mapping: couldn't replace %s: %w", s.Path, err)
	}
	return nil
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func sortedKeys(entries map[string]Entry) []string {
	keys := maps.Keys(entries)
	slices.Sort(keys)
	return keys
}

// RealPath makes path absolute and follows symlinks in as much of it as exists, so paths under a
// symlinked directory compare equal to their targets even before they are created.
func RealPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	rest := ""
	for dir := abs; ; {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
