// Package store provides read-only access to the template directory tree.
//
// The tree holds one subdirectory per template id. Access goes through the
// Store interface so the loader can run against the real filesystem, an
// in-memory filesystem in tests, or a recording wrapper.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Store is the read-only view of a template tree. Paths are slash separated
// and relative to the store root.
type Store interface {
	// ReadFile returns the content of a file. A missing file yields an
	// error matching fs.ErrNotExist.
	ReadFile(name string) ([]byte, error)
	// ReadDir lists the entries of a directory, sorted by name.
	ReadDir(name string) ([]os.FileInfo, error)
}

// FSStore implements Store on an afero filesystem confined to a root.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore returns a Store rooted at root on the OS filesystem. Paths that
// resolve outside root are reported as not existing.
func NewFSStore(root string) *FSStore {
	return &FSStore{
		fs:   afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root)),
		root: root,
	}
}

// NewStoreFromFs wraps an existing afero filesystem whose root is the store
// root.
func NewStoreFromFs(fsys afero.Fs) *FSStore {
	return &FSStore{
		fs:   afero.NewReadOnlyFs(fsys),
		root: "/",
	}
}

// Root returns the directory this store was opened on.
func (s *FSStore) Root() string {
	return s.root
}

// ReadFile implements Store.
func (s *FSStore) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(s.fs, clean(name))
}

// ReadDir implements Store.
func (s *FSStore) ReadDir(name string) ([]os.FileInfo, error) {
	return afero.ReadDir(s.fs, clean(name))
}

// Lookup is the outcome of reading a file whose absence is acceptable.
type Lookup int

const (
	// Found means the file was read.
	Found Lookup = iota
	// Missing means the file does not exist.
	Missing
	// Failed means the file exists but could not be read.
	Failed
)

// String returns the string representation of the lookup outcome.
func (l Lookup) String() string {
	switch l {
	case Found:
		return "found"
	case Missing:
		return "missing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReadOptional reads name and classifies the outcome, so absence can be told
// apart from other read failures without inspecting error text.
func ReadOptional(s Store, name string) ([]byte, Lookup, error) {
	data, err := s.ReadFile(name)
	switch {
	case err == nil:
		return data, Found, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, Missing, nil
	default:
		return nil, Failed, err
	}
}

// ListDirs returns the names of the immediate subdirectories of the store
// root, in lexical order.
func ListDirs(s Store) ([]string, error) {
	entries, err := s.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("reading store root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// TemplatePath joins a template id and a path inside its directory.
func TemplatePath(id string, elem ...string) string {
	return path.Join(append([]string{id}, elem...)...)
}

func clean(name string) string {
	return path.Clean("/" + name)
}
