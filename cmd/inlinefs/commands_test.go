package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inlinefs/internal/handshake"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopModule is a WASI command whose _start returns immediately.
var noopModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

func withHostFs(t *testing.T, files map[string][]byte) {
	t.Helper()
	mem := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(mem, name, data, 0o644))
	}
	prev := hostFs
	hostFs = mem
	t.Cleanup(func() { hostFs = prev })
}

func payload(t *testing.T, files map[string][]byte) string {
	t.Helper()
	line, err := handshake.Encode(files)
	require.NoError(t, err)
	return string(line)
}

func runCommand(stdin string, args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := dispatch(context.Background(), args, stdio{
		in:  strings.NewReader(stdin),
		out: &out,
		err: &errOut,
	})
	return code, out.String(), errOut.String()
}

func TestDispatch(t *testing.T) {
	code, _, errOut := runCommand("")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: inlinefs")

	code, _, errOut = runCommand("", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)

	code, out, _ := runCommand("", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "pack")
}

func TestPackThenLs(t *testing.T) {
	withHostFs(t, map[string][]byte{
		"img/a.png": []byte("A"),
		"notes.txt": []byte("hello"),
	})

	code, line, _ := runCommand("", "pack", "img/a.png", "notes.txt")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasSuffix(line, "\n"))

	files := handshake.Parse([]byte(line))
	assert.Equal(t, map[string][]byte{
		"img/a.png": []byte("A"),
		"notes.txt": []byte("hello"),
	}, files)

	code, out, _ := runCommand(line, "ls")
	require.Equal(t, 0, code)
	assert.Equal(t, "img/a.png\nnotes.txt\n", out)

	code, out, _ = runCommand(line, "ls", "-l")
	require.Equal(t, 0, code)
	assert.Equal(t, "       1 img/a.png\n       5 notes.txt\n", out)
}

func TestPackMissingFile(t *testing.T) {
	withHostFs(t, nil)

	code, out, _ := runCommand("", "pack", "nope.txt")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
}

func TestCat(t *testing.T) {
	withHostFs(t, map[string][]byte{
		"disk.txt": []byte("disk"),
		"a.txt":    []byte("shadowed"),
	})
	line := payload(t, map[string][]byte{`.\a.txt`: []byte("virtual")})

	code, out, _ := runCommand(line, "cat", "a.txt", "./disk.txt")
	assert.Equal(t, 0, code)
	assert.Equal(t, "virtualdisk", out)

	code, out, errOut := runCommand(line, "cat", "missing.txt", "a.txt")
	assert.Equal(t, 1, code)
	assert.Equal(t, "virtual", out)
	assert.Contains(t, errOut, "missing.txt")
}

func TestCatTextMode(t *testing.T) {
	withHostFs(t, nil)
	line := payload(t, map[string][]byte{"bad.txt": []byte("ok\xff")})

	code, out, _ := runCommand(line, "cat", "-mode", "r", "bad.txt")
	assert.Equal(t, 0, code)
	assert.Equal(t, "ok�", out)

	code, _, _ = runCommand(line, "cat", "-mode", "w", "bad.txt")
	assert.Equal(t, 2, code)
}

func TestProbe(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))))

	withHostFs(t, nil)
	line := payload(t, map[string][]byte{`img\x.png`: buf.Bytes()})

	code, out, _ := runCommand(line, "probe", "./img/x.png")
	assert.Equal(t, 0, code)
	assert.Equal(t, "./img/x.png: image png 4x3\n", out)

	code, _, errOut := runCommand(line, "probe", "img/missing.png")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "img/missing.png")
}

func TestRun(t *testing.T) {
	cat, err := os.ReadFile(filepath.Join("testdata", "cat.wasm"))
	require.NoError(t, err)
	withHostFs(t, map[string][]byte{
		"cat.wasm":          cat,
		"work/host.txt":     []byte("from host"),
		"work/img/a.png":    []byte("disk"),
		"elsewhere/out.txt": []byte("outside root"),
	})
	line := payload(t, map[string][]byte{`.\img\a.png`: []byte("virtual")})

	tests := []struct {
		name string
		arg  string
		code int
		out  string
	}{
		{name: "store file", arg: "img/a.png", code: 0, out: "virtual"},
		{name: "host file under root", arg: "host.txt", code: 0, out: "from host"},
		{name: "missing file", arg: "img/missing.png", code: 44, out: ""},
		{name: "outside root", arg: "out.txt", code: 44, out: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := runCommand(line+"rest of stdin", "run", "-root", "work", "-env", "A=1", "cat.wasm", tt.arg)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestRunUsage(t *testing.T) {
	withHostFs(t, map[string][]byte{"noop.wasm": noopModule})
	line := payload(t, map[string][]byte{"a.txt": []byte("x")})

	code, _, _ := runCommand(line, "run", "-root", "/", "noop.wasm", "arg")
	assert.Equal(t, 0, code)

	code, _, _ = runCommand(line, "run")
	assert.Equal(t, 2, code)

	code, _, _ = runCommand(line, "run", "missing.wasm")
	assert.Equal(t, 1, code)

	code, _, _ = runCommand(line, "run", "-env", "novalue", "noop.wasm")
	assert.Equal(t, 2, code)
}

func TestMountRequiresFlags(t *testing.T) {
	withHostFs(t, nil)

	code, _, _ := runCommand("", "mount", "-mount", "/mnt/x")
	assert.Equal(t, 2, code)

	code, _, _ = runCommand("", "mount", "-mount", "/mnt/x", "-source", "/does/not/exist")
	assert.Equal(t, 1, code)
}
