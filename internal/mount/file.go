package mount

import (
	"context"
	"io"
	"sync"

	"inlinefs/internal/logging"
	"inlinefs/internal/vfs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/spf13/afero"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// OriginXattr names the extended attribute that reports whether a file is
// served from the store or from the source directory.
const OriginXattr = "user.inlinefs.origin"

// Origin values reported through OriginXattr.
const (
	OriginStore = "store"
	OriginDisk  = "disk"
)

// File is a regular file of the overlay.
type File struct {
	fs   *FS
	path string
	mu   sync.RWMutex
}

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fileLogger.Trace("Getting attributes for file: %q", f.path)

	info, err := f.fs.overlay.Stat(f.path)
	if err != nil {
		fileLogger.Warn("Failed to stat %q: %v", f.path, err)
		return ToErrno(err)
	}

	a.Mode = info.Mode().Perm() &^ 0o222
	a.Size = safeInt64ToUint64(info.Size())
	a.Mtime = info.ModTime()
	a.Atime = info.ModTime()
	a.Ctime = info.ModTime()
	a.Uid = f.fs.uid
	a.Gid = f.fs.gid
	a.BlockSize = 4096
	a.Blocks = safeInt64ToUint64((info.Size() + 511) / 512)

	fileLogger.Trace("File attributes: mode=%v, size=%d", a.Mode, a.Size)
	return nil
}

// Open implements the NodeOpener interface. Only read-only opens succeed.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fileLogger.Debug("Opening file %q with flags %v", f.path, req.Flags)

	if !req.Flags.IsReadOnly() {
		fileLogger.Warn("Attempted write access to read-only file: %q", f.path)
		return nil, ToErrno(vfs.NewError(vfs.OpOpen, f.path, vfs.ErrReadOnly))
	}

	file, err := f.fs.overlay.Open(f.path)
	if err != nil {
		fileLogger.Error("Failed to open file: %v", err)
		return nil, ToErrno(err)
	}

	resp.Flags |= fuse.OpenKeepCache

	fileLogger.Debug("Successfully opened file %q", f.path)
	return &FileHandle{
		file: file,
		path: f.path,
	}, nil
}

// Setattr implements the NodeSetattrer interface. The tree is read-only.
func (f *File) Setattr(_ context.Context, _ *fuse.SetattrRequest, _ *fuse.SetattrResponse) error {
	fileLogger.Warn("Refusing setattr on read-only file: %q", f.path)
	return ToErrno(vfs.NewError(vfs.OpMutation, f.path, vfs.ErrReadOnly))
}

// Fsync implements the NodeFsyncer interface. There is nothing to flush.
func (f *File) Fsync(_ context.Context, _ *fuse.FsyncRequest) error {
	return nil
}

func (f *File) origin() string {
	if _, err := f.fs.store.Fs().Stat(f.path); err == nil {
		return OriginStore
	}
	return OriginDisk
}

// Getxattr implements the NodeGetxattrer interface, reporting OriginXattr.
func (f *File) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	fileLogger.Debug("Getting xattr %q for file %q", req.Name, f.path)
	if req.Name != OriginXattr {
		return fuse.ErrNoXattr
	}
	resp.Xattr = []byte(f.origin())
	return nil
}

// Listxattr implements the NodeListxattrer interface.
func (f *File) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	resp.Append(OriginXattr)
	return nil
}

// Setxattr implements the NodeSetxattrer interface. The tree is read-only.
func (f *File) Setxattr(_ context.Context, _ *fuse.SetxattrRequest) error {
	return ToErrno(vfs.NewError(vfs.OpMutation, f.path, vfs.ErrReadOnly))
}

// Removexattr implements the NodeRemovexattrer interface. The tree is read-only.
func (f *File) Removexattr(_ context.Context, _ *fuse.RemovexattrRequest) error {
	return ToErrno(vfs.NewError(vfs.OpMutation, f.path, vfs.ErrReadOnly))
}

// FileHandle is an open file of the overlay.
type FileHandle struct {
	file afero.File
	path string // For logging purposes
	mu   sync.RWMutex
}

// Read implements the HandleReader interface, reading data from the file.
func (fh *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fh.mu.RLock()
	defer fh.mu.RUnlock()

	fileLogger.Trace("Reading %d bytes from file %q at offset %d",
		req.Size, fh.path, req.Offset)

	resp.Data = make([]byte, req.Size)
	n, err := fh.file.ReadAt(resp.Data, req.Offset)
	if err != nil && err != io.EOF {
		fileLogger.Error("Failed to read from file: %v", err)
		return ToErrno(err)
	}

	resp.Data = resp.Data[:n]
	fileLogger.Trace("Successfully read %d bytes", n)
	return nil
}

// Release implements the HandleReleaser interface, closing the file handle.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	fileLogger.Debug("Closing file %q", fh.path)
	return fh.file.Close()
}
