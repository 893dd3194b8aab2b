package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// ErrNotWAV indicates input that is not a readable WAV file
var ErrNotWAV = errors.New("not a valid WAV file")

// Sound is a decoded PCM clip.
type Sound struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	// Samples are interleaved by channel.
	Samples []int
}

// Frames returns the number of sample frames.
func (s *Sound) Frames() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// NewSound decodes a WAV clip from a path or reader.
func (l *Library) NewSound(src any) (*Sound, error) {
	r, closeFn, err := l.open("sound", src)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read sound: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, ErrNotWAV
	}
	duration, err := d.Duration()
	if err != nil {
		return nil, fmt.Errorf("failed to read sound duration: %w", err)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}

	s := &Sound{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   duration,
		Samples:    buf.Data,
	}
	logger.Debug("Decoded sound: %d Hz, %d channels, %v", s.SampleRate, s.Channels, s.Duration)
	return s, nil
}

// NewSound decodes a WAV clip using the default library.
func NewSound(src any) (*Sound, error) {
	return Default.NewSound(src)
}
