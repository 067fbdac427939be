package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func pcm16Bytes(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestUtteranceBufferMono16(t *testing.T) {
	format := Format{Rate: 16000, Width: 2, Channels: 1}
	buf, err := NewUtteranceBuffer(format)
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}
	defer buf.Close()

	if err := buf.Append(format, pcm16Bytes(0, 16384, -16384, 32767)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	samples, rate, err := buf.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0}
	if len(samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], samples[i])
		}
	}
}

func TestUtteranceBufferStereoDownmix(t *testing.T) {
	format := Format{Rate: 16000, Width: 2, Channels: 2}
	buf, err := NewUtteranceBuffer(format)
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}
	defer buf.Close()

	// Two frames: (L=16384, R=0) and (L=-16384, R=-16384).
	if err := buf.Append(format, pcm16Bytes(16384, 0, -16384, -16384)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	samples, _, err := buf.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	want := []float32{0.25, -0.5} // Arithmetic mean across channels
	if len(samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], samples[i])
		}
	}
}

func TestUtteranceBufferUnsigned8Bit(t *testing.T) {
	format := Format{Rate: 8000, Width: 1, Channels: 1}
	buf, err := NewUtteranceBuffer(format)
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}
	defer buf.Close()

	// 8-bit WAV PCM is unsigned with 128 as the zero point.
	if err := buf.Append(format, []byte{128, 255, 0}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	samples, _, err := buf.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	want := []float32{0, 127.0 / 128.0, -1}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], samples[i])
		}
	}
}

func TestUtteranceBufferFormatMismatch(t *testing.T) {
	format := Format{Rate: 16000, Width: 2, Channels: 1}
	buf, err := NewUtteranceBuffer(format)
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}
	defer buf.Close()

	if err := buf.Append(format, pcm16Bytes(1, 2)); err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	mismatched := Format{Rate: 8000, Width: 2, Channels: 1}
	err = buf.Append(mismatched, pcm16Bytes(3, 4))
	if !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Expected ErrFormatMismatch, got %v", err)
	}
}

func TestUtteranceBufferPartialFrame(t *testing.T) {
	format := Format{Rate: 16000, Width: 2, Channels: 2}
	buf, err := NewUtteranceBuffer(format)
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}
	defer buf.Close()

	// 6 bytes is not a whole number of 4-byte stereo frames.
	if err := buf.Append(format, []byte{1, 2, 3, 4, 5, 6}); err == nil {
		t.Error("Expected error on partial frame, got none")
	}
}

func TestUtteranceBufferEmptyFinalize(t *testing.T) {
	buf, err := NewUtteranceBuffer(Format{Rate: 16000, Width: 2, Channels: 1})
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}
	defer buf.Close()

	if _, _, err := buf.Finalize(); err == nil {
		t.Error("Expected error finalizing empty buffer, got none")
	}
}

func TestUtteranceBufferClosedUse(t *testing.T) {
	format := Format{Rate: 16000, Width: 2, Channels: 1}
	buf, err := NewUtteranceBuffer(format)
	if err != nil {
		t.Fatalf("NewUtteranceBuffer failed: %v", err)
	}

	buf.Close()
	buf.Close() // Idempotent

	if err := buf.Append(format, pcm16Bytes(1)); err == nil {
		t.Error("Expected error appending to closed buffer, got none")
	}
	if _, _, err := buf.Finalize(); err == nil {
		t.Error("Expected error finalizing closed buffer, got none")
	}
}

func TestNewUtteranceBufferInvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		format Format
	}{
		{"zero rate", Format{Rate: 0, Width: 2, Channels: 1}},
		{"bad width", Format{Rate: 16000, Width: 3, Channels: 1}},
		{"zero channels", Format{Rate: 16000, Width: 2, Channels: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewUtteranceBuffer(tt.format); err == nil {
				t.Error("Expected error, got none")
			}
		})
	}
}

func TestPCM16FromFloat32Clamping(t *testing.T) {
	samples := PCM16FromFloat32([]float32{0, 0.5, 1.5, -1.5})
	if samples[0] != 0 {
		t.Errorf("Expected 0, got %d", samples[0])
	}
	if samples[2] != 32767 {
		t.Errorf("Expected clamp to 32767, got %d", samples[2])
	}
	if samples[3] != -32768 {
		t.Errorf("Expected clamp to -32768, got %d", samples[3])
	}
}
