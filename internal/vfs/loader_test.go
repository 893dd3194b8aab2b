package vfs

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoaders(t *testing.T) (*StoreLoader, *OSLoader, afero.Fs) {
	t.Helper()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "disk.txt", []byte("from disk"), 0o644))
	require.NoError(t, afero.WriteFile(base, "img/a.png", []byte("disk png"), 0o644))

	osLoader := NewOSLoader(base)
	store := NewStore(map[string][]byte{
		"img/a.png": []byte("hello"),
		"text.txt":  []byte("héllo wörld"),
		"bad.txt":   {'o', 'k', 0xff},
	})
	return NewStoreLoader(store, osLoader), osLoader, base
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestStoreLoaderBinary(t *testing.T) {
	loader, _, _ := newTestLoaders(t)

	rc, err := loader.Open("img/a.png", ModeBinary)
	require.NoError(t, err)
	assert.Equal(t, "hello", readAll(t, rc))

	rc, err = loader.Open(`.\img\a.png`, ModeBinary)
	require.NoError(t, err)
	seeker, ok := rc.(io.Seeker)
	require.True(t, ok, "binary streams must be seekable")
	_, err = seeker.Seek(1, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "ello", readAll(t, rc))
}

func TestStoreLoaderText(t *testing.T) {
	loader, _, _ := newTestLoaders(t)

	rc, err := loader.Open("text.txt", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", readAll(t, rc))

	rc, err = loader.Open("bad.txt", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "ok�", readAll(t, rc))
}

func TestStoreLoaderFallsThrough(t *testing.T) {
	loader, osLoader, _ := newTestLoaders(t)

	for _, mode := range []Mode{ModeText, ModeBinary} {
		rc, err := loader.Open("disk.txt", mode)
		require.NoError(t, err)
		assert.Equal(t, "from disk", readAll(t, rc))

		_, virtErr := loader.Open("missing.png", mode)
		_, nativeErr := osLoader.Open("missing.png", mode)
		require.Error(t, virtErr)
		assert.True(t, errors.Is(virtErr, fs.ErrNotExist))
		assert.Equal(t, nativeErr.Error(), virtErr.Error())
	}
}

func TestStoreLoaderShadowsDisk(t *testing.T) {
	loader, osLoader, _ := newTestLoaders(t)

	data, err := loader.ReadFile("img/a.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = osLoader.ReadFile("img/a.png")
	require.NoError(t, err)
	assert.Equal(t, "disk png", string(data))
}

func TestStoreLoaderStat(t *testing.T) {
	loader, _, _ := newTestLoaders(t)

	info, err := loader.Stat(`img\a.png`)
	require.NoError(t, err)
	assert.Equal(t, "a.png", info.Name())
	assert.Equal(t, int64(5), info.Size())
	assert.False(t, info.IsDir())

	info, err = loader.Stat("disk.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("from disk")), info.Size())

	_, err = loader.Stat("missing.png")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestInvalidMode(t *testing.T) {
	loader, osLoader, _ := newTestLoaders(t)

	_, err := loader.Open("img/a.png", Mode(7))
	assert.True(t, errors.Is(err, ErrInvalidMode))

	_, err = osLoader.Open("disk.txt", Mode(7))
	assert.True(t, errors.Is(err, ErrInvalidMode))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeText, false},
		{"r", ModeText, false},
		{"rt", ModeText, false},
		{"rb", ModeBinary, false},
		{"br", ModeBinary, false},
		{"w", 0, true},
		{"wb", 0, true},
		{"a", 0, true},
		{"r+", 0, true},
		{"x", 0, true},
		{"rbt", 0, true},
		{"rr", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidMode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
