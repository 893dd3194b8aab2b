package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"inlinefs/internal/logging"
)

var (
	logger = logging.GetLogger()
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdio stdio) int
}

// stdio carries the process streams so commands can be driven from tests.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

var commands = []command{
	{"run", "run a WASI module over the store and --root", cmdRun},
	{"mount", "serve the store over --source as a read-only FUSE tree", cmdMount},
	{"cat", "print files through the store, falling back to disk", cmdCat},
	{"ls", "list the paths of the store", cmdLs},
	{"probe", "decode images, sounds and arrays through the store", cmdProbe},
	{"pack", "write the handshake line for the given files", cmdPack},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: inlinefs <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands other than pack read the handshake line from stdin.")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-6s %s\n", c.name, c.summary)
	}
}

func dispatch(ctx context.Context, args []string, s stdio) int {
	if len(args) == 0 {
		usage(s.err)
		return 2
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], s)
		}
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(s.out)
		return 0
	}
	fmt.Fprintf(s.err, "inlinefs: unknown command %q\n", args[0])
	usage(s.err)
	return 2
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:], stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	stop()
	logger.Sync()
	os.Exit(code)
}
