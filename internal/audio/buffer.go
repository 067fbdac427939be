package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFormatMismatch is returned when a chunk's declared PCM format differs
// from the format latched by the first chunk of the utterance.
var ErrFormatMismatch = errors.New("audio: chunk format does not match utterance format")

// Format describes raw PCM framing: sample rate in Hz, sample width in
// bytes, and interleaved channel count.
type Format struct {
	Rate     int
	Width    int
	Channels int
}

// Validate checks that the format can be decoded.
func (f Format) Validate() error {
	if f.Rate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", f.Rate)
	}
	switch f.Width {
	case 1, 2, 4:
	default:
		return fmt.Errorf("audio: unsupported sample width %d bytes (supported: 1, 2, 4)", f.Width)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audio: channel count must be positive, got %d", f.Channels)
	}
	return nil
}

// frameSize returns the byte size of one interleaved frame.
func (f Format) frameSize() int {
	return f.Width * f.Channels
}

// UtteranceBuffer accumulates the PCM chunks of a single utterance in
// memory. The format is latched from the first chunk; every later chunk
// must declare the same format. The buffer exists only between the first
// chunk and the stop signal and must be closed on every exit path.
type UtteranceBuffer struct {
	format Format
	pcm    []byte
	closed bool
}

// NewUtteranceBuffer opens a buffer latched to the given format.
func NewUtteranceBuffer(format Format) (*UtteranceBuffer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &UtteranceBuffer{
		format: format,
		// Room for about two seconds before the first regrowth.
		pcm: make([]byte, 0, 2*format.Rate*format.frameSize()),
	}, nil
}

// Format returns the latched PCM format.
func (b *UtteranceBuffer) Format() Format {
	return b.format
}

// Len returns the number of accumulated PCM bytes.
func (b *UtteranceBuffer) Len() int {
	return len(b.pcm)
}

// Append adds one chunk of PCM data declared with the given format.
func (b *UtteranceBuffer) Append(format Format, data []byte) error {
	if b.closed {
		return fmt.Errorf("audio: append to closed utterance buffer")
	}
	if format != b.format {
		return fmt.Errorf("%w: latched %dHz/%dB/%dch, got %dHz/%dB/%dch",
			ErrFormatMismatch,
			b.format.Rate, b.format.Width, b.format.Channels,
			format.Rate, format.Width, format.Channels)
	}
	if len(data)%b.format.frameSize() != 0 {
		return fmt.Errorf("audio: chunk of %d bytes is not a whole number of %d-byte frames",
			len(data), b.format.frameSize())
	}
	b.pcm = append(b.pcm, data...)
	return nil
}

// Finalize converts the accumulated PCM into a single-channel float32
// waveform in [-1, 1), down-mixing multiple channels by arithmetic mean.
// The buffer contents are not usable afterwards; callers must still Close.
func (b *UtteranceBuffer) Finalize() ([]float32, int, error) {
	if b.closed {
		return nil, 0, fmt.Errorf("audio: finalize of closed utterance buffer")
	}
	if len(b.pcm) == 0 {
		return nil, 0, fmt.Errorf("audio: no audio data accumulated")
	}

	frameSize := b.format.frameSize()
	numFrames := len(b.pcm) / frameSize
	samples := make([]float32, numFrames)

	for frame := 0; frame < numFrames; frame++ {
		var sum float32
		base := frame * frameSize
		for ch := 0; ch < b.format.Channels; ch++ {
			sum += decodeSample(b.pcm[base+ch*b.format.Width:], b.format.Width)
		}
		samples[frame] = sum / float32(b.format.Channels)
	}

	return samples, b.format.Rate, nil
}

// Close releases the buffer storage. It is idempotent.
func (b *UtteranceBuffer) Close() {
	b.pcm = nil
	b.closed = true
}

// decodeSample converts one little-endian PCM sample to float32 in [-1, 1).
// 8-bit PCM is unsigned per the WAV convention; wider widths are signed.
func decodeSample(data []byte, width int) float32 {
	switch width {
	case 1:
		return (float32(data[0]) - 128) / 128
	case 2:
		return float32(int16(binary.LittleEndian.Uint16(data))) / 32768
	case 4:
		return float32(int32(binary.LittleEndian.Uint32(data))) / 2147483648
	default:
		return 0
	}
}

// PCM16FromFloat32 converts a float32 waveform back to 16-bit PCM samples,
// clamping out-of-range values.
func PCM16FromFloat32(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
