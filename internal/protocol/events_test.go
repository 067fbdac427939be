package protocol

import (
	"bytes"
	"testing"
)

func TestTranscribeFromEvent(t *testing.T) {
	tests := []struct {
		name         string
		event        *Event
		wantName     string
		wantLanguage string
	}{
		{
			name:         "language only",
			event:        Transcribe{Language: "nl"}.Event(),
			wantLanguage: "nl",
		},
		{
			name:     "model name only",
			event:    Transcribe{Name: "nemo-parakeet-tdt-0.6b-v2"}.Event(),
			wantName: "nemo-parakeet-tdt-0.6b-v2",
		},
		{
			name:  "empty request",
			event: Transcribe{}.Event(),
		},
		{
			name:  "no data at all",
			event: &Event{Type: TypeTranscribe},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TranscribeFromEvent(tt.event)
			if err != nil {
				t.Fatalf("TranscribeFromEvent failed: %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("Expected name %q, got %q", tt.wantName, got.Name)
			}
			if got.Language != tt.wantLanguage {
				t.Errorf("Expected language %q, got %q", tt.wantLanguage, got.Language)
			}
		})
	}
}

func TestAudioChunkCarriesPayload(t *testing.T) {
	pcm := []byte{0x00, 0x10, 0xFF, 0x7F}
	event := AudioChunk{Rate: 16000, Width: 2, Channels: 2, Audio: pcm}.Event()

	chunk, err := AudioChunkFromEvent(event)
	if err != nil {
		t.Fatalf("AudioChunkFromEvent failed: %v", err)
	}

	if chunk.Rate != 16000 || chunk.Width != 2 || chunk.Channels != 2 {
		t.Errorf("Format mismatch: got rate=%d width=%d channels=%d",
			chunk.Rate, chunk.Width, chunk.Channels)
	}
	if !bytes.Equal(chunk.Audio, pcm) {
		t.Errorf("Expected audio %v, got %v", pcm, chunk.Audio)
	}
}

func TestInfoRoundTrip(t *testing.T) {
	info := Info{
		Asr: []AsrProgram{{
			Name:        "onnx-asr",
			Description: "ONNX ASR transcription",
			Attribution: Attribution{Name: "Thomas Boby", URL: "https://github.com/tboby"},
			Installed:   true,
			Version:     "1.0.0",
			Models: []AsrModel{
				{
					Name:      "nemo-parakeet-tdt-0.6b-v2",
					Languages: []string{"en"},
					Installed: true,
					Version:   "0.1",
				},
				{
					Name:      "whisper-large-v3",
					Languages: []string{"*"},
					Installed: true,
					Version:   "0.1",
				},
			},
		}},
	}

	got, err := InfoFromEvent(info.Event())
	if err != nil {
		t.Fatalf("InfoFromEvent failed: %v", err)
	}

	if len(got.Asr) != 1 {
		t.Fatalf("Expected 1 program, got %d", len(got.Asr))
	}
	prog := got.Asr[0]
	if prog.Name != "onnx-asr" {
		t.Errorf("Expected program name onnx-asr, got %q", prog.Name)
	}
	if len(prog.Models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(prog.Models))
	}
	if prog.Models[1].Languages[0] != "*" {
		t.Errorf("Expected wildcard language marker, got %q", prog.Models[1].Languages[0])
	}
}

func TestTranscriptFromEvent(t *testing.T) {
	event := Transcript{Text: "turn on the living room lights"}.Event()

	got, err := TranscriptFromEvent(event)
	if err != nil {
		t.Fatalf("TranscriptFromEvent failed: %v", err)
	}
	if got.Text != "turn on the living room lights" {
		t.Errorf("Unexpected transcript text: %q", got.Text)
	}
}
