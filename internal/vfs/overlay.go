package vfs

import (
	"io/fs"

	"github.com/spf13/afero"
)

// NewOverlay layers the store over base as a read-only filesystem. Virtual
// files shadow base files of the same name and directories present in both
// list the union of their entries. A nil base means the host filesystem.
func NewOverlay(store *Store, base afero.Fs) afero.Fs {
	if store == nil {
		store = Empty()
	}
	if base == nil {
		base = afero.NewOsFs()
	}
	return afero.NewReadOnlyFs(afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), store.Fs()))
}

// NewRootOverlay layers the store over the host directory root, so that
// virtual paths and paths relative to root share one namespace.
func NewRootOverlay(store *Store, root string) afero.Fs {
	return NewOverlay(store, afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewIOFS exposes an afero filesystem through io/fs.
func NewIOFS(fsys afero.Fs) fs.FS {
	return afero.NewIOFS(fsys)
}
