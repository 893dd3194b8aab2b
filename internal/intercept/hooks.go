// Package intercept assembles the entry points a consumer uses to load
// resources, routing each through the virtual store before the original
// implementation.
package intercept

import (
	"errors"
	"image"
	"io"

	"inlinefs/internal/media"
	"inlinefs/internal/vfs"

	"github.com/spf13/afero"
)

// Entry names an interceptable entry point.
type Entry string

const (
	EntryOpen  Entry = "open"
	EntryImage Entry = "image.load"
	EntrySound Entry = "sound.new"
	EntryArray Entry = "array.load"
)

// ErrUnavailable is returned when calling an optional entry point whose
// library was not supplied.
var ErrUnavailable = errors.New("entry point not available")

// OpenFunc is the universal file-open entry point.
type OpenFunc func(name string, mode vfs.Mode) (io.ReadCloser, error)

// ImageFunc loads an image from a path or reader.
type ImageFunc func(src any) (image.Image, string, error)

// SoundFunc constructs a sound from a path or reader.
type SoundFunc func(src any) (*media.Sound, error)

// ArrayFunc loads an array from a path or reader.
type ArrayFunc func(src any) (*media.Array, error)

// Hooks is a set of entry points. A nil optional field means the library is
// not present in this process.
type Hooks struct {
	Open      OpenFunc
	LoadImage ImageFunc
	NewSound  SoundFunc
	LoadArray ArrayFunc
}

// Defaults returns the native entry points: the host filesystem for open and
// the media library for the rest.
func Defaults() Hooks {
	return Hooks{
		Open:      vfs.NewOSLoader(nil).Open,
		LoadImage: media.Default.LoadImage,
		NewSound:  media.Default.NewSound,
		LoadArray: media.Default.LoadArray,
	}
}

// NativeHooks returns the native entry points reading paths from fsys.
func NativeHooks(fsys afero.Fs) Hooks {
	lib := media.New(fsys)
	return Hooks{
		Open:      vfs.NewOSLoader(fsys).Open,
		LoadImage: lib.LoadImage,
		NewSound:  lib.NewSound,
		LoadArray: lib.LoadArray,
	}
}
