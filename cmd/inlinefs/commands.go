package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"inlinefs/internal/handshake"
	"inlinefs/internal/intercept"
	"inlinefs/internal/logging"
	"inlinefs/internal/mount"
	"inlinefs/internal/sandbox"
	"inlinefs/internal/vfs"

	"github.com/spf13/afero"
)

// hostFs is the filesystem commands read modules, payloads and packed files
// from. Tests replace it with a memory filesystem.
var hostFs afero.Fs = afero.NewOsFs()

func newFlagSet(name string, s stdio) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(s.err)
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	return fs, verbose
}

func applyVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logging.LevelDebug)
	}
}

func cmdRun(ctx context.Context, args []string, s stdio) int {
	fs, verbose := newFlagSet("run", s)
	root := fs.String("root", ".", "Host directory the store is layered over")
	mountPoint := fs.String("at", "/", "Guest path of the filesystem")
	var env envFlag
	fs.Var(&env, "env", "Guest environment variable KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	applyVerbose(*verbose)

	if fs.NArg() < 1 {
		logger.Error("A module path is required")
		return 2
	}
	modulePath := fs.Arg(0)

	module, err := afero.ReadFile(hostFs, modulePath)
	if err != nil {
		logger.Error("Failed to read module: %v", err)
		return 1
	}

	// The handshake is read byte-wise so the rest of stdin reaches the guest.
	in := bufio.NewReader(s.in)
	store := handshake.ReadStore(in)
	logger.Info("Loaded %d virtual files", store.Len())

	runner, err := sandbox.NewRunner(ctx)
	if err != nil {
		logger.Error("Failed to create runtime: %v", err)
		return 1
	}
	defer runner.Close(ctx)

	overlay := vfs.NewOverlay(store, afero.NewBasePathFs(hostFs, filepath.Clean(*root)))
	code, err := runner.Run(ctx, module, vfs.NewIOFS(overlay), sandbox.Config{
		Name:       filepath.Base(modulePath),
		Args:       fs.Args()[1:],
		Env:        env.values,
		Stdin:      in,
		Stdout:     s.out,
		Stderr:     s.err,
		MountPoint: *mountPoint,
	})
	if err != nil {
		logger.Error("Run failed: %v", err)
		return 1
	}
	return int(code)
}

func cmdMount(ctx context.Context, args []string, s stdio) int {
	fs, verbose := newFlagSet("mount", s)
	mountPoint := fs.String("mount", "", "Mount point for the overlay")
	sourcePath := fs.String("source", "", "Source directory the store is layered over")
	payload := fs.String("payload", "", "File holding the handshake line (default stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	applyVerbose(*verbose)

	logger.Debug("Mount point: %s", *mountPoint)
	logger.Debug("Source path: %s", *sourcePath)

	if *mountPoint == "" || *sourcePath == "" {
		logger.Error("Mount point and source path are required")
		return 2
	}

	cleanMount := filepath.Clean(*mountPoint)
	cleanSource := filepath.Clean(*sourcePath)

	if _, err := afero.ReadDir(hostFs, cleanSource); err != nil {
		logger.Error("Cannot read source directory: %v", err)
		return 1
	}

	var files map[string][]byte
	if *payload != "" {
		files = handshake.ReadFile(hostFs, *payload)
	} else {
		files = handshake.Read(s.in)
	}
	store := vfs.NewStore(files)

	logger.Info("Creating overlay filesystem...")
	overlay := mount.NewFS(store, afero.NewBasePathFs(hostFs, cleanSource))
	if err := overlay.Mount(cleanMount); err != nil {
		logger.Error("Mount failed: %v", err)
		return 1
	}
	logger.Info("Filesystem mounted and ready")

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	if err := overlay.Unmount(cleanMount); err != nil {
		logger.Error("Unmount error: %v", err)
		return 1
	}
	logger.Info("Clean shutdown complete")
	return 0
}

func cmdCat(_ context.Context, args []string, s stdio) int {
	fs, verbose := newFlagSet("cat", s)
	mode := fs.String("mode", "rb", "Open mode: r (text) or rb (binary)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	applyVerbose(*verbose)

	m, err := vfs.ParseMode(*mode)
	if err != nil {
		logger.Error("Invalid mode %q: %v", *mode, err)
		return 2
	}

	ic := intercept.FromHandshake(s.in, intercept.NativeHooks(hostFs))

	status := 0
	for _, name := range fs.Args() {
		if err := catFile(ic, name, m, s.out); err != nil {
			fmt.Fprintf(s.err, "inlinefs: %v\n", err)
			status = 1
		}
	}
	return status
}

func catFile(ic *intercept.Interceptor, name string, mode vfs.Mode, w io.Writer) error {
	rc, err := ic.Open(name, mode)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

func cmdLs(_ context.Context, args []string, s stdio) int {
	fs, verbose := newFlagSet("ls", s)
	long := fs.Bool("l", false, "Print sizes")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	applyVerbose(*verbose)

	store := handshake.ReadStore(s.in)
	for _, p := range store.Paths() {
		if *long {
			size, _ := store.Size(p)
			fmt.Fprintf(s.out, "%8d %s\n", size, p)
			continue
		}
		fmt.Fprintln(s.out, p)
	}
	return 0
}

func cmdProbe(_ context.Context, args []string, s stdio) int {
	fs, verbose := newFlagSet("probe", s)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	applyVerbose(*verbose)

	ic := intercept.FromHandshake(s.in, intercept.NativeHooks(hostFs))

	status := 0
	for _, name := range fs.Args() {
		line, err := probe(ic, name)
		if err != nil {
			fmt.Fprintf(s.err, "inlinefs: %s: %v\n", name, err)
			status = 1
			continue
		}
		fmt.Fprintf(s.out, "%s: %s\n", name, line)
	}
	return status
}

func probe(ic *intercept.Interceptor, name string) (string, error) {
	switch strings.ToLower(filepath.Ext(vfs.Normalize(name))) {
	case ".wav":
		snd, err := ic.NewSound(name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sound %d Hz, %d channels, %d-bit, %v",
			snd.SampleRate, snd.Channels, snd.BitDepth, snd.Duration), nil
	case ".npy":
		arr, err := ic.LoadArray(name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array %s %v, %d values", arr.DType, arr.Shape, arr.Len()), nil
	default:
		img, format, err := ic.LoadImage(name)
		if err != nil {
			return "", err
		}
		b := img.Bounds()
		return fmt.Sprintf("image %s %dx%d", format, b.Dx(), b.Dy()), nil
	}
}

func cmdPack(_ context.Context, args []string, s stdio) int {
	fs, verbose := newFlagSet("pack", s)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	applyVerbose(*verbose)

	files := make(map[string][]byte, fs.NArg())
	for _, name := range fs.Args() {
		data, err := afero.ReadFile(hostFs, name)
		if err != nil {
			logger.Error("Failed to read %q: %v", name, err)
			return 1
		}
		files[name] = data
	}

	line, err := handshake.Encode(files)
	if err != nil {
		logger.Error("Failed to encode handshake: %v", err)
		return 1
	}
	if _, err := s.out.Write(line); err != nil {
		logger.Error("Failed to write handshake: %v", err)
		return 1
	}
	return 0
}

// envFlag collects repeated KEY=VALUE flags.
type envFlag struct {
	values map[string]string
}

func (e *envFlag) String() string {
	return fmt.Sprint(e.values)
}

func (e *envFlag) Set(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", kv)
	}
	if e.values == nil {
		e.values = make(map[string]string)
	}
	e.values[key] = value
	return nil
}
