// Package sandbox runs WebAssembly (WASI) children whose filesystem is the
// virtual store layered over a host directory.
package sandbox

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"

	"inlinefs/internal/logging"
	"inlinefs/internal/vfs"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

var (
	logger = logging.GetLogger().WithPrefix("sandbox")
)

// Config describes one guest run.
type Config struct {
	// Name is the module name and argv[0].
	Name   string
	Args   []string
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// MountPoint is the guest path of the filesystem; "/" when empty.
	MountPoint string
}

// Runner owns a wazero runtime with WASI preview1 host functions.
type Runner struct {
	runtime wazero.Runtime
}

// NewRunner creates the runtime. Cancelling ctx passed to Run stops a guest.
func NewRunner(ctx context.Context) (*Runner, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	return &Runner{runtime: rt}, nil
}

// Close releases the runtime and every compiled module.
func (r *Runner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Run compiles and starts module with fsys mounted for the guest. The guest's
// exit code is returned; err is reserved for failures of the host or of the
// module itself (invalid binary, trap, cancellation).
func (r *Runner) Run(ctx context.Context, module []byte, fsys fs.FS, cfg Config) (uint32, error) {
	compiled, err := r.runtime.CompileModule(ctx, module)
	if err != nil {
		return 0, fmt.Errorf("failed to compile module: %w", err)
	}
	defer compiled.Close(ctx)

	mountPoint := cfg.MountPoint
	if mountPoint == "" {
		mountPoint = "/"
	}
	name := cfg.Name
	if name == "" {
		name = "guest"
	}

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{name}, cfg.Args...)...).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(crand.Reader).
		WithFSConfig(wazero.NewFSConfig().WithFSMount(fsys, mountPoint))
	if cfg.Stdin != nil {
		modCfg = modCfg.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(cfg.Stderr)
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		modCfg = modCfg.WithEnv(k, cfg.Env[k])
	}

	logger.Info("Starting guest %q with filesystem at %s", name, mountPoint)
	mod, err := r.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			logger.Info("Guest %q exited with code %d", name, exitErr.ExitCode())
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("guest %q failed: %w", name, err)
	}
	defer mod.Close(ctx)

	logger.Info("Guest %q finished", name)
	return 0, nil
}

// RunWithStore runs module over the store layered on the host directory root.
func (r *Runner) RunWithStore(ctx context.Context, module []byte, store *vfs.Store, root string, cfg Config) (uint32, error) {
	fsys := vfs.NewIOFS(vfs.NewRootOverlay(store, root))
	return r.Run(ctx, module, fsys, cfg)
}
