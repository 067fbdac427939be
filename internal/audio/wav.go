package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeader represents the 44-byte canonical header of a PCM WAV file.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes mono PCM-16 samples into WAV format.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio: cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("audio: failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("audio: failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeWAVFloat32 encodes a mono float32 waveform as a 16-bit PCM WAV
// file. Used when handing finalized utterances to external recognizers.
func EncodeWAVFloat32(samples []float32, sampleRate int) ([]byte, error) {
	return EncodeWAV(PCM16FromFloat32(samples), sampleRate)
}

// ParseWAV extracts the PCM format and raw interleaved frame data from a
// WAV file. Any channel count and sample widths of 8, 16, or 32 bits are
// accepted; only uncompressed PCM is supported.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < 44 {
		return Format{}, nil, fmt.Errorf("audio: WAV data too short: need at least 44 bytes, got %d", len(data))
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return Format{}, nil, fmt.Errorf("audio: failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return Format{}, nil, fmt.Errorf("audio: invalid WAV file: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("audio: invalid WAV file: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return Format{}, nil, fmt.Errorf("audio: invalid WAV file: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return Format{}, nil, fmt.Errorf("audio: invalid WAV file: missing data chunk")
	}
	if header.AudioFormat != 1 {
		return Format{}, nil, fmt.Errorf("audio: unsupported audio format %d (only PCM is supported)", header.AudioFormat)
	}

	format := Format{
		Rate:     int(header.SampleRate),
		Width:    int(header.BitsPerSample) / 8,
		Channels: int(header.NumChannels),
	}
	if err := format.Validate(); err != nil {
		return Format{}, nil, err
	}

	pcm := data[44:]
	if uint32(len(pcm)) > header.Subchunk2Size {
		pcm = pcm[:header.Subchunk2Size]
	}
	if len(pcm) == 0 {
		return Format{}, nil, fmt.Errorf("audio: no audio data found")
	}

	return format, pcm, nil
}

// DecodeWAV decodes a mono 16-bit WAV file back to PCM samples.
func DecodeWAV(data []byte) ([]int16, int, error) {
	format, pcm, err := ParseWAV(data)
	if err != nil {
		return nil, 0, err
	}
	if format.Width != 2 {
		return nil, 0, fmt.Errorf("audio: unsupported bit depth %d (only 16-bit is supported)", format.Width*8)
	}
	if format.Channels != 1 {
		return nil, 0, fmt.Errorf("audio: unsupported channel count %d (only mono is supported)", format.Channels)
	}

	samples := make([]int16, len(pcm)/2)
	if err := binary.Read(bytes.NewReader(pcm), binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("audio: failed to read audio samples: %w", err)
	}

	return samples, format.Rate, nil
}
