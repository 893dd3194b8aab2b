package mount

import (
	"errors"
	"os"
	"syscall"

	"inlinefs/internal/logging"
	"inlinefs/internal/vfs"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")
)

// ToErrno converts an overlay error to the syscall error FUSE expects.
func ToErrno(err error) error {
	if err == nil {
		return nil
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	var vfsErr *vfs.Error
	if errors.As(err, &vfsErr) {
		errLogger.Trace("Converting vfs error to FUSE error: %v", vfsErr)

		switch {
		case errors.Is(vfsErr.Err, vfs.ErrReadOnly):
			return syscall.EROFS
		case errors.Is(vfsErr.Err, vfs.ErrInvalidMode):
			return syscall.EINVAL
		}
	}

	errLogger.Trace("Converting standard error to FUSE error: %v", err)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	case errors.Is(err, os.ErrExist):
		return syscall.EEXIST
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}
