package intercept

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"

	"inlinefs/internal/handshake"
	"inlinefs/internal/logging"
	"inlinefs/internal/media"
	"inlinefs/internal/vfs"
)

var (
	logger = logging.GetLogger().WithPrefix("intercept")
)

// installer wraps a single entry point of a Hooks value.
type installer struct {
	entry   Entry
	install func(store *vfs.Store, h *Hooks)
}

// capabilities decides once which entry points can be wrapped. Open is
// always wrapped; optional entry points only when an original exists.
func capabilities(orig Hooks) []installer {
	installers := []installer{{entry: EntryOpen, install: installOpen}}

	if orig.LoadImage != nil {
		installers = append(installers, installer{entry: EntryImage, install: installImage})
	} else {
		logger.Debug("No image loader present, skipping %s", EntryImage)
	}
	if orig.NewSound != nil {
		installers = append(installers, installer{entry: EntrySound, install: installSound})
	} else {
		logger.Debug("No sound loader present, skipping %s", EntrySound)
	}
	if orig.LoadArray != nil {
		installers = append(installers, installer{entry: EntryArray, install: installArray})
	} else {
		logger.Debug("No array loader present, skipping %s", EntryArray)
	}
	return installers
}

// Interceptor holds the wrapped entry points. It is immutable once built.
type Interceptor struct {
	store     *vfs.Store
	orig      Hooks
	hooks     Hooks
	installed []Entry
}

// Install wraps the originals in orig with store lookups. A nil Open means
// the host filesystem; nil optional entry points stay nil.
func Install(store *vfs.Store, orig Hooks) *Interceptor {
	if store == nil {
		store = vfs.Empty()
	}
	if orig.Open == nil {
		orig.Open = vfs.NewOSLoader(nil).Open
	}

	i := &Interceptor{store: store, orig: orig, hooks: orig}
	for _, inst := range capabilities(orig) {
		inst.install(store, &i.hooks)
		i.installed = append(i.installed, inst.entry)
	}
	logger.Debug("Installed %v over %d virtual files", i.installed, store.Len())
	return i
}

// FromHandshake reads the handshake line from r and installs over orig.
func FromHandshake(r io.Reader, orig Hooks) *Interceptor {
	return Install(handshake.ReadStore(r), orig)
}

// Hooks returns the wrapped entry points.
func (i *Interceptor) Hooks() Hooks {
	return i.hooks
}

// Installed lists the wrapped entry points in installation order.
func (i *Interceptor) Installed() []Entry {
	out := make([]Entry, len(i.installed))
	copy(out, i.installed)
	return out
}

// Store returns the virtual store behind the wrappers.
func (i *Interceptor) Store() *vfs.Store {
	return i.store
}

// Loader exposes the wrapped open entry point as a vfs.Loader.
func (i *Interceptor) Loader() vfs.Loader {
	return vfs.NewStoreLoader(i.store, funcLoader{open: i.orig.Open})
}

// Open calls the wrapped open entry point.
func (i *Interceptor) Open(name string, mode vfs.Mode) (io.ReadCloser, error) {
	return i.hooks.Open(name, mode)
}

// LoadImage calls the wrapped image entry point.
func (i *Interceptor) LoadImage(src any) (image.Image, string, error) {
	if i.hooks.LoadImage == nil {
		return nil, "", fmt.Errorf("%s: %w", EntryImage, ErrUnavailable)
	}
	return i.hooks.LoadImage(src)
}

// NewSound calls the wrapped sound entry point.
func (i *Interceptor) NewSound(src any) (*media.Sound, error) {
	if i.hooks.NewSound == nil {
		return nil, fmt.Errorf("%s: %w", EntrySound, ErrUnavailable)
	}
	return i.hooks.NewSound(src)
}

// LoadArray calls the wrapped array entry point.
func (i *Interceptor) LoadArray(src any) (*media.Array, error) {
	if i.hooks.LoadArray == nil {
		return nil, fmt.Errorf("%s: %w", EntryArray, ErrUnavailable)
	}
	return i.hooks.LoadArray(src)
}

func installOpen(store *vfs.Store, h *Hooks) {
	h.Open = vfs.NewStoreLoader(store, funcLoader{open: h.Open}).Open
}

func installImage(store *vfs.Store, h *Hooks) {
	orig := h.LoadImage
	h.LoadImage = func(src any) (image.Image, string, error) {
		return orig(resolve(store, EntryImage, src))
	}
}

func installSound(store *vfs.Store, h *Hooks) {
	orig := h.NewSound
	h.NewSound = func(src any) (*media.Sound, error) {
		return orig(resolve(store, EntrySound, src))
	}
}

func installArray(store *vfs.Store, h *Hooks) {
	orig := h.LoadArray
	h.LoadArray = func(src any) (*media.Array, error) {
		return orig(resolve(store, EntryArray, src))
	}
}

// resolve swaps a path-like source for a stream over its stored bytes. Any
// other source, and any path the store does not hold, is returned unchanged.
func resolve(store *vfs.Store, entry Entry, src any) any {
	name, ok := media.PathOf(src)
	if !ok {
		return src
	}
	r, ok := store.Reader(name)
	if !ok {
		return src
	}
	logger.Debug("%s: serving %q from store", entry, name)
	return r
}

// funcLoader adapts an OpenFunc to vfs.Loader.
type funcLoader struct {
	open OpenFunc
}

func (l funcLoader) Open(name string, mode vfs.Mode) (io.ReadCloser, error) {
	return l.open(name, mode)
}

func (l funcLoader) ReadFile(name string) ([]byte, error) {
	rc, err := l.open(name, vfs.ModeBinary)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (l funcLoader) Stat(name string) (fs.FileInfo, error) {
	rc, err := l.open(name, vfs.ModeBinary)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if st, ok := rc.(interface{ Stat() (fs.FileInfo, error) }); ok {
		return st.Stat()
	}
	return nil, vfs.NewError(vfs.OpStat, name, errors.ErrUnsupported)
}
