package vfs

import (
	"bytes"
	"os"
	"path"
	"sort"
	"time"

	"inlinefs/internal/logging"

	"github.com/spf13/afero"
)

var (
	storeLogger = logging.GetLogger().WithPrefix("store")
)

// Store is the immutable in-memory table of virtual files, keyed by
// normalized path. It is built once and safe for concurrent reads.
type Store struct {
	files map[string][]byte
	fsys  afero.Fs
}

// NewStore builds a store from path/content pairs. Keys are normalized;
// when two keys normalize to the same path the later one in sorted key order
// wins. The store takes ownership of the byte slices.
func NewStore(files map[string][]byte) *Store {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string][]byte, len(files))
	for _, k := range keys {
		normalized[Normalize(k)] = files[k]
	}

	s := &Store{files: normalized}
	s.fsys = s.buildFs()
	storeLogger.Debug("Built store with %d files", len(normalized))
	return s
}

// Empty returns a store with no files.
func Empty() *Store {
	return NewStore(nil)
}

// buildFs mirrors the store into a read-only memory filesystem. Entries whose
// path cannot live in a tree are left out of the tree but remain reachable
// through Get: parent references, and any path below a stored file. Keys are
// placed in sorted order, so for "a" and "a/b" the file "a" is kept.
func (s *Store) buildFs() afero.Fs {
	mem := afero.NewMemMapFs()
	for _, key := range s.Paths() {
		name, ok := fsName(key)
		if !ok {
			storeLogger.Debug("Path %q has no place in the file tree", key)
			continue
		}
		if parent, shadowed := fileAncestor(mem, name); shadowed {
			storeLogger.Debug("Path %q lies below the stored file %q, leaving it out of the file tree", key, parent)
			continue
		}
		if info, err := mem.Stat(name); err == nil && info.IsDir() {
			storeLogger.Debug("Path %q is already a directory in the file tree", key)
			continue
		}
		if dir := path.Dir(name); dir != "." {
			if err := mem.MkdirAll(dir, 0o755); err != nil {
				storeLogger.Debug("Cannot create directory for %q: %v", key, err)
				continue
			}
		}
		if err := afero.WriteFile(mem, name, s.files[key], 0o444); err != nil {
			storeLogger.Debug("Cannot place %q in the file tree: %v", key, err)
		}
	}
	return afero.NewReadOnlyFs(mem)
}

// fileAncestor reports the nearest ancestor of name that is a regular file.
// MemMapFs would otherwise turn that file into a directory.
func fileAncestor(fsys afero.Fs, name string) (string, bool) {
	for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
		if info, err := fsys.Stat(dir); err == nil && !info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// Size returns the length of the content stored for name.
func (s *Store) Size(name string) (int, bool) {
	data, ok := s.lookup(name)
	return len(data), ok
}

// lookup returns the shared content for a path. Callers must not modify it.
func (s *Store) lookup(name string) ([]byte, bool) {
	data, ok := s.files[Normalize(name)]
	return data, ok
}

// Get returns a copy of the content stored under the normalized form of name.
func (s *Store) Get(name string) ([]byte, bool) {
	data, ok := s.lookup(name)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Reader returns a read-only stream over the content stored for name.
func (s *Store) Reader(name string) (*bytes.Reader, bool) {
	data, ok := s.lookup(name)
	if !ok {
		return nil, false
	}
	return bytes.NewReader(data), true
}

// Has reports whether name, once normalized, is a virtual file.
func (s *Store) Has(name string) bool {
	_, ok := s.lookup(name)
	return ok
}

// Len returns the number of virtual files.
func (s *Store) Len() int {
	return len(s.files)
}

// Paths returns the normalized paths in sorted order.
func (s *Store) Paths() []string {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Fs returns the store as a read-only filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fsys
}

// fileInfo describes a virtual file for Stat.
type fileInfo struct {
	name string
	size int64
}

func (fi fileInfo) Name() string       { return path.Base(fi.name) }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() os.FileMode  { return 0o444 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() interface{}   { return nil }
