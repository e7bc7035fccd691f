package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// ErrFormatMismatch is returned when a decoded WAV does not match the
// expected mono 16-bit PCM format.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// DecodeWAV decodes WAV bytes back to float32 PCM samples, validating a
// mono 16-bit stream at wantRate Hz. Backs the doctor codec self-check and
// round-trip verification of the encoder.
func DecodeWAV(data []byte, wantRate int) ([]float32, error) {
	if len(data) == 0 {
		return nil, errors.New("empty WAV input")
	}

	r := bytes.NewReader(data)
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if int(dec.SampleRate) != wantRate {
		return nil, fmt.Errorf("%w: sample rate %d, want %d", ErrFormatMismatch, dec.SampleRate, wantRate)
	}
	if dec.NumChans != 1 {
		return nil, fmt.Errorf("%w: channels %d, want 1", ErrFormatMismatch, dec.NumChans)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%w: bit depth %d, want 16", ErrFormatMismatch, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	return samplesFromBuffer(buf), nil
}

// samplesFromBuffer copies PCM data out of a go-audio float buffer so the
// decoder's internal buffer is never aliased by callers.
func samplesFromBuffer(buf *goaudio.Float32Buffer) []float32 {
	if buf == nil {
		return nil
	}

	return append([]float32(nil), buf.Data...)
}
