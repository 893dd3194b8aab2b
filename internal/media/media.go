// Package media holds the native loaders for images, sounds and arrays.
// Each loader accepts either a path (string or []byte) resolved on its
// filesystem, or an already open io.Reader.
package media

import (
	"errors"
	"fmt"
	"io"

	"inlinefs/internal/logging"

	"github.com/spf13/afero"
)

var (
	logger = logging.GetLogger().WithPrefix("media")

	// ErrUnsupportedSource indicates a source that is neither a path nor a reader
	ErrUnsupportedSource = errors.New("source must be a path or an io.Reader")
)

// Library resolves paths against a filesystem and decodes media from them.
type Library struct {
	fs afero.Fs
}

// New returns a Library reading paths from fsys; nil means the host
// filesystem.
func New(fsys afero.Fs) *Library {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Library{fs: fsys}
}

// Default reads from the host filesystem.
var Default = New(nil)

// PathOf reports the path carried by src when src is path-like.
func PathOf(src any) (string, bool) {
	switch s := src.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func nopClose() error { return nil }

// open resolves src into a reader and the function that releases it.
func (l *Library) open(op string, src any) (io.Reader, func() error, error) {
	if name, ok := PathOf(src); ok {
		logger.Trace("%s: opening %q", op, name)
		f, err := l.fs.Open(name)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
	if r, ok := src.(io.Reader); ok {
		return r, nopClose, nil
	}
	return nil, nil, fmt.Errorf("%s: %T: %w", op, src, ErrUnsupportedSource)
}
