package graph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by Store.Get for names that were never saved.
	ErrNotFound = errors.New("graph document not found")
	// ErrInvalidName rejects names that are empty or would leave the store
	// directory.
	ErrInvalidName = errors.New("invalid document name")
)

const storeExt = ".json"

// Store keeps named Documents as JSON files in a single directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first Put.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Put saves doc under name, replacing any previous document.
func (s *Store) Put(name string, doc *Document) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	return doc.SaveFile(path)
}

// Get loads the document saved under name.
func (s *Store) Get(name string) (*Document, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return LoadFile(path)
}

// Delete removes the document saved under name. Deleting a missing name is
// not an error.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete graph document %q: %w", name, err)
	}
	return nil
}

// List returns saved document names in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list graph documents: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), storeExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), storeExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+storeExt), nil
}
