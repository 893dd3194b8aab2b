// Package mount serves the store layered over a source directory as a
// read-only FUSE filesystem, so native child processes see virtual files.
package mount

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"inlinefs/internal/logging"
	"inlinefs/internal/vfs"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/spf13/afero"
)

var (
	mountLogger = logging.GetLogger().WithPrefix("mount")
)

// FS is the FUSE view of an overlay. Every node resolves its path against
// the overlay on each request; nothing is cached between calls.
type FS struct {
	overlay afero.Fs      // Store over base, read-only
	store   *vfs.Store    // Used to report where a file comes from
	conn    *fuse.Conn    // FUSE connection
	served  chan struct{} // Closed when the server loop returns
	uid     uint32        // User ID reported for every node
	gid     uint32        // Group ID reported for every node
}

// NewFS layers store over base. A nil base means the host filesystem.
func NewFS(store *vfs.Store, base afero.Fs) *FS {
	if store == nil {
		store = vfs.Empty()
	}
	mountLogger.Info("Creating overlay filesystem over %d virtual files", store.Len())

	uid, gid := ownerIDs()
	return &FS{
		overlay: vfs.NewOverlay(store, base),
		store:   store,
		uid:     uid,
		gid:     gid,
	}
}

// ownerIDs returns the process owner, overridden by PUID/PGID when set.
func ownerIDs() (uint32, uint32) {
	uid := safeIntToUint32(os.Getuid())
	gid := safeIntToUint32(os.Getgid())

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			uid = uint32(puid)
			mountLogger.Debug("Using PUID from environment: %d", uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			gid = uint32(pgid)
			mountLogger.Debug("Using PGID from environment: %d", gid)
		}
	}
	return uid, gid
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (f *FS) Root() (fusefs.Node, error) {
	mountLogger.Trace("Getting root directory node")
	return &Dir{fs: f, path: "."}, nil
}

// Overlay returns the filesystem the nodes are served from.
func (f *FS) Overlay() afero.Fs {
	return f.overlay
}

// statMount and mountPollInterval are replaced in tests.
var (
	statMount         = os.Stat
	mountPollInterval = 100 * time.Millisecond
)

const mountPollAttempts = 30

// deviceID returns the device a file lives on.
func deviceID(info os.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}

// waitForMount polls mountpoint until it reports a device other than
// before, the device it had prior to mounting.
func waitForMount(mountpoint string, before uint64) error {
	for i := 0; i < mountPollAttempts; i++ {
		if info, err := statMount(mountpoint); err == nil && info.IsDir() {
			if dev, ok := deviceID(info); ok && dev != before {
				return nil
			}
		}
		time.Sleep(mountPollInterval)
	}
	return fmt.Errorf("%s still on device %d after %v", mountpoint, before, mountPollAttempts*mountPollInterval)
}

// Mount attaches the filesystem at mountPoint and serves it in the
// background until Unmount.
func (f *FS) Mount(mountPoint string) error {
	mountLogger.Info("Mounting overlay filesystem")
	mountLogger.Debug("Mount point: %s", mountPoint)
	mountLogger.Debug("UID: %d, GID: %d", f.uid, f.gid)

	mountOpts := []fuse.MountOption{
		fuse.FSName("inlinefs"),
		fuse.Subtype("inlinefs"),
		fuse.ReadOnly(),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
		fuse.AllowNonEmptyMount(),
	}
	if os.Getenv("INLINEFS_ALLOW_OTHER") != "" {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	info, err := statMount(mountPoint)
	if err != nil {
		return fmt.Errorf("mount point unavailable: %w", err)
	}
	before, ok := deviceID(info)
	if !ok {
		return fmt.Errorf("cannot read device of %s", mountPoint)
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	f.conn = c
	f.served = make(chan struct{})

	go func() {
		defer close(f.served)
		if err := fusefs.Serve(c, f); err != nil {
			mountLogger.Error("FUSE server error: %v", err)
		}
		mountLogger.Debug("FUSE server stopped")
	}()

	if err := waitForMount(mountPoint, before); err != nil {
		_ = fuse.Unmount(mountPoint)
		c.Close()
		mountLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	mountLogger.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the server loop started by Mount returns.
func (f *FS) Wait() {
	if f.served != nil {
		<-f.served
	}
}

// Unmount detaches the filesystem and closes the connection.
func (f *FS) Unmount(mountPoint string) error {
	mountLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if f.conn == nil {
		return nil
	}
	if err := fuse.Unmount(mountPoint); err != nil {
		mountLogger.Error("Unmount failed: %v", err)
		return err
	}
	f.Wait()
	err := f.conn.Close()
	f.conn = nil
	mountLogger.Info("Unmount completed successfully")
	return err
}
