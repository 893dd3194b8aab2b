package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sbinet/npyio"
)

// ErrUnsupportedDType indicates an NPY element type that cannot be loaded
var ErrUnsupportedDType = errors.New("unsupported array dtype")

// Array is a numeric array read from an NPY file.
type Array struct {
	// DType is the NPY descriptor, e.g. "<f8".
	DType   string
	Shape   []int
	Fortran bool
	Values  []float64
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.Values)
}

// LoadArray reads an NPY array from a path or reader.
func (l *Library) LoadArray(src any) (*Array, error) {
	r, closeFn, err := l.open("array", src)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read array header: %w", err)
	}

	arr := &Array{
		DType:   npy.Header.Descr.Type,
		Shape:   npy.Header.Descr.Shape,
		Fortran: npy.Header.Descr.Fortran,
	}
	if arr.Values, err = readValues(npy, arr.DType); err != nil {
		return nil, err
	}
	logger.Debug("Loaded %s array with shape %v", arr.DType, arr.Shape)
	return arr, nil
}

// LoadArray reads an NPY array using the default library.
func LoadArray(src any) (*Array, error) {
	return Default.LoadArray(src)
}

func readValues(npy *npyio.Reader, dtype string) ([]float64, error) {
	switch strings.TrimLeft(dtype, "<>|=") {
	case "f8":
		return readAs[float64](npy)
	case "f4":
		return readAs[float32](npy)
	case "i8":
		return readAs[int64](npy)
	case "i4":
		return readAs[int32](npy)
	case "i2":
		return readAs[int16](npy)
	case "i1":
		return readAs[int8](npy)
	case "u8":
		return readAs[uint64](npy)
	case "u4":
		return readAs[uint32](npy)
	case "u2":
		return readAs[uint16](npy)
	case "u1":
		return readAs[uint8](npy)
	case "b1":
		var v []bool
		if err := npy.Read(&v); err != nil {
			return nil, fmt.Errorf("failed to read array data: %w", err)
		}
		out := make([]float64, len(v))
		for i, b := range v {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%q: %w", dtype, ErrUnsupportedDType)
	}
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func readAs[T number](npy *npyio.Reader) ([]float64, error) {
	var v []T
	if err := npy.Read(&v); err != nil {
		return nil, fmt.Errorf("failed to read array data: %w", err)
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out, nil
}
