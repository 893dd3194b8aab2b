package vfs

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLookupEquivalence(t *testing.T) {
	store := NewStore(map[string][]byte{"img/a.png": []byte("hello")})

	for _, name := range []string{"img/a.png", `img\a.png`, "./img/a.png"} {
		data, ok := store.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, []byte("hello"), data, name)
	}

	assert.False(t, store.Has("img/b.png"))
	assert.Equal(t, 1, store.Len())
}

func TestStoreNormalizesKeys(t *testing.T) {
	store := NewStore(map[string][]byte{
		`sounds\beep.wav`: []byte("beep"),
		"./data/x.npy":    []byte("x"),
	})

	assert.Equal(t, []string{"data/x.npy", "sounds/beep.wav"}, store.Paths())
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore(map[string][]byte{"a.txt": []byte("abc")})

	data, ok := store.Get("a.txt")
	require.True(t, ok)
	data[0] = 'z'

	again, _ := store.Get("a.txt")
	assert.Equal(t, []byte("abc"), again)
}

func TestEmptyStore(t *testing.T) {
	store := Empty()

	assert.Zero(t, store.Len())
	assert.Empty(t, store.Paths())
	assert.False(t, store.Has(""))
}

func TestStoreFs(t *testing.T) {
	store := NewStore(map[string][]byte{
		"img/a.png":  []byte("png"),
		"/abs/b.txt": []byte("abs"),
		"../outside": []byte("skipped from tree"),
		"deep/x/y/z": []byte("z"),
	})
	fsys := store.Fs()

	data, err := afero.ReadFile(fsys, "img/a.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	data, err = afero.ReadFile(fsys, "abs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "abs", string(data))

	isDir, err := afero.IsDir(fsys, "deep/x")
	require.NoError(t, err)
	assert.True(t, isDir)

	// Still reachable by key even though it has no place in the tree.
	assert.True(t, store.Has("../outside"))

	err = afero.WriteFile(fsys, "img/new.png", []byte("x"), 0o644)
	assert.Error(t, err, "store filesystem must be read-only")
}

func TestStoreFsKeepsFileShadowingDirectory(t *testing.T) {
	store := NewStore(map[string][]byte{
		"a":     []byte("file"),
		"a/b":   []byte("below a file"),
		"a/b/c": []byte("deeper"),
	})
	fsys := store.Fs()

	info, err := fsys.Stat("a")
	require.NoError(t, err)
	assert.False(t, info.IsDir(), "a must stay a regular file")
	assert.Equal(t, int64(len("file")), info.Size())

	data, err := afero.ReadFile(fsys, "a")
	require.NoError(t, err)
	assert.Equal(t, "file", string(data))

	_, err = fsys.Stat("a/b")
	assert.Error(t, err)
	_, err = fsys.Stat("a/b/c")
	assert.Error(t, err)

	// Both remain reachable by key.
	data, ok := store.Get("a/b")
	require.True(t, ok)
	assert.Equal(t, "below a file", string(data))
	assert.True(t, store.Has("a/b/c"))
}

func TestStoreSize(t *testing.T) {
	store := NewStore(map[string][]byte{`img\a.png`: []byte("hello")})

	size, ok := store.Size("./img/a.png")
	require.True(t, ok)
	assert.Equal(t, 5, size)

	size, ok = store.Size("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, size)
}
