package vfs

import (
	"bytes"
	"io"
	"io/fs"

	"inlinefs/internal/logging"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
)

var (
	loaderLogger = logging.GetLogger().WithPrefix("loader")
)

// Loader opens resources by path. Consumers accept a Loader instead of
// touching the filesystem directly, so the same code runs against the real
// filesystem or against a store layered over it.
//
// In ModeBinary the returned reader also implements io.Seeker. In ModeText
// the content is decoded as UTF-8; invalid sequences become U+FFFD.
type Loader interface {
	Open(name string, mode Mode) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
}

// OSLoader reads from a real filesystem.
type OSLoader struct {
	fs afero.Fs
}

var _ Loader = (*OSLoader)(nil)

// NewOSLoader returns a loader over base; nil means the host filesystem.
func NewOSLoader(base afero.Fs) *OSLoader {
	if base == nil {
		base = afero.NewOsFs()
	}
	return &OSLoader{fs: base}
}

// Open opens name on the underlying filesystem.
func (l *OSLoader) Open(name string, mode Mode) (io.ReadCloser, error) {
	if !mode.valid() {
		return nil, NewError(OpOpen, name, ErrInvalidMode)
	}
	f, err := l.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if mode == ModeText {
		return textReader(f), nil
	}
	return f, nil
}

// ReadFile reads the whole of name from the underlying filesystem.
func (l *OSLoader) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(l.fs, name)
}

// Stat returns file information from the underlying filesystem.
func (l *OSLoader) Stat(name string) (fs.FileInfo, error) {
	return l.fs.Stat(name)
}

// StoreLoader serves virtual files from a store and delegates every other
// path, unmodified, to a fallback loader.
type StoreLoader struct {
	store    *Store
	fallback Loader
}

var _ Loader = (*StoreLoader)(nil)

// NewStoreLoader layers store over fallback. A nil fallback means the host
// filesystem.
func NewStoreLoader(store *Store, fallback Loader) *StoreLoader {
	if store == nil {
		store = Empty()
	}
	if fallback == nil {
		fallback = NewOSLoader(nil)
	}
	return &StoreLoader{store: store, fallback: fallback}
}

// Open serves the stored bytes for name, or delegates to the fallback.
func (l *StoreLoader) Open(name string, mode Mode) (io.ReadCloser, error) {
	data, ok := l.store.lookup(name)
	if !ok {
		loaderLogger.Trace("Store miss for %q, delegating", name)
		return l.fallback.Open(name, mode)
	}
	if !mode.valid() {
		return nil, NewError(OpOpen, name, ErrInvalidMode)
	}

	loaderLogger.Debug("Serving %q from store (%d bytes, mode %s)", name, len(data), mode)
	f := &memFile{Reader: bytes.NewReader(data)}
	if mode == ModeText {
		return textReader(f), nil
	}
	return f, nil
}

// ReadFile returns a copy of the stored bytes for name, or delegates.
func (l *StoreLoader) ReadFile(name string) ([]byte, error) {
	if data, ok := l.store.Get(name); ok {
		return data, nil
	}
	return l.fallback.ReadFile(name)
}

// Stat describes the virtual file for name, or delegates.
func (l *StoreLoader) Stat(name string) (fs.FileInfo, error) {
	if data, ok := l.store.lookup(name); ok {
		return fileInfo{name: Normalize(name), size: int64(len(data))}, nil
	}
	return l.fallback.Stat(name)
}

// memFile is a seekable, closable view of stored bytes.
type memFile struct {
	*bytes.Reader
}

func (*memFile) Close() error { return nil }

type decodedReader struct {
	io.Reader
	io.Closer
}

func textReader(rc io.ReadCloser) io.ReadCloser {
	return decodedReader{
		Reader: unicode.UTF8.NewDecoder().Reader(rc),
		Closer: rc,
	}
}
