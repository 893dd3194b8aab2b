package mount

import (
	"context"
	"os"
	"path"

	"inlinefs/internal/logging"
	"inlinefs/internal/vfs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/spf13/afero"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is a directory of the overlay. Its entries are the union of the
// virtual directory and the source directory of the same path.
type Dir struct {
	fs   *FS
	path string // Overlay path, "." for the root
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path)

	a.Mode = os.ModeDir | 0o555
	a.Uid = d.fs.uid
	a.Gid = d.fs.gid

	if d.path == "." {
		return nil
	}
	info, err := d.fs.overlay.Stat(d.path)
	if err != nil {
		return ToErrno(err)
	}
	a.Mtime = info.ModTime()
	a.Atime = info.ModTime()
	a.Ctime = info.ModTime()
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	childPath := path.Join(d.path, name)
	dirLogger.Debug("Looking up %q in directory %q", name, d.path)

	info, err := d.fs.overlay.Stat(childPath)
	if err != nil {
		dirLogger.Debug("Path not found: %q", childPath)
		return nil, ToErrno(err)
	}
	if info.IsDir() {
		return &Dir{fs: d.fs, path: childPath}, nil
	}
	return &File{fs: d.fs, path: childPath}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path)

	infos, err := afero.ReadDir(d.fs.overlay, d.path)
	if err != nil {
		dirLogger.Error("Failed to read directory %q: %v", d.path, err)
		return nil, ToErrno(err)
	}

	entries := make([]fuse.Dirent, 0, len(infos)+2)
	entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})
	for _, info := range infos {
		entry := fuse.Dirent{Name: info.Name(), Type: fuse.DT_File}
		switch {
		case info.IsDir():
			entry.Type = fuse.DT_Dir
		case info.Mode()&os.ModeSymlink != 0:
			entry.Type = fuse.DT_Link
		}
		entries = append(entries, entry)
	}

	dirLogger.Debug("Directory %q contains %d entries", d.path, len(entries))
	return entries, nil
}

// Mkdir implements the NodeMkdirer interface. The tree is read-only.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	return nil, d.refuse("mkdir", req.Name)
}

// Create implements the NodeCreater interface. The tree is read-only.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, _ *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	return nil, nil, d.refuse("create", req.Name)
}

// Remove implements the NodeRemover interface. The tree is read-only.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	return d.refuse("remove", req.Name)
}

// Rename implements the NodeRenamer interface. The tree is read-only.
func (d *Dir) Rename(_ context.Context, req *fuse.RenameRequest, _ fusefs.Node) error {
	return d.refuse("rename", req.OldName)
}

// Setattr implements the NodeSetattrer interface. The tree is read-only.
func (d *Dir) Setattr(_ context.Context, _ *fuse.SetattrRequest, _ *fuse.SetattrResponse) error {
	return d.refuse("setattr", "")
}

func (d *Dir) refuse(op, name string) error {
	target := d.path
	if name != "" {
		target = path.Join(d.path, name)
	}
	dirLogger.Warn("Refusing %s on read-only path %q", op, target)
	return ToErrno(vfs.NewError(vfs.OpMutation, target, vfs.ErrReadOnly))
}
