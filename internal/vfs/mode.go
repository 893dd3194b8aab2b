package vfs

import (
	"fmt"
	"strings"
)

// Mode selects how an opened file is presented to the caller.
type Mode uint8

const (
	// ModeText yields the content decoded as UTF-8 text.
	ModeText Mode = iota
	// ModeBinary yields the raw bytes through a seekable stream.
	ModeBinary
)

// String returns the mode in open-mode notation.
func (m Mode) String() string {
	switch m {
	case ModeText:
		return "r"
	case ModeBinary:
		return "rb"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func (m Mode) valid() bool {
	return m == ModeText || m == ModeBinary
}

// ParseMode parses a read-only open mode string such as "r", "rt" or "rb".
// The empty string means text. Write, append, create and update modes are
// rejected with ErrInvalidMode.
func ParseMode(s string) (Mode, error) {
	var binary, text bool
	for _, c := range s {
		switch c {
		case 'r':
		case 'b':
			binary = true
		case 't':
			text = true
		default:
			return 0, fmt.Errorf("mode %q: %w", s, ErrInvalidMode)
		}
	}
	if binary && text || strings.Count(s, "r") > 1 {
		return 0, fmt.Errorf("mode %q: %w", s, ErrInvalidMode)
	}
	if binary {
		return ModeBinary, nil
	}
	return ModeText, nil
}
