package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
	}{
		{
			name:  "type only",
			event: &Event{Type: TypeAudioStop},
		},
		{
			name:  "with data",
			event: &Event{Type: TypeTranscribe, Data: json.RawMessage(`{"language":"en"}`)},
		},
		{
			name: "with data and payload",
			event: &Event{
				Type:    TypeAudioChunk,
				Data:    json.RawMessage(`{"rate":16000,"width":2,"channels":1}`),
				Payload: []byte{0x01, 0x02, 0x03, 0x04},
			},
		},
		{
			name:  "payload only",
			event: &Event{Type: TypeAudioChunk, Payload: bytes.Repeat([]byte{0xAB}, 4096)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf).WriteEvent(tt.event); err != nil {
				t.Fatalf("WriteEvent failed: %v", err)
			}

			got, err := NewReader(&buf).ReadEvent()
			if err != nil {
				t.Fatalf("ReadEvent failed: %v", err)
			}

			if got.Type != tt.event.Type {
				t.Errorf("Expected type %q, got %q", tt.event.Type, got.Type)
			}
			if !bytes.Equal(got.Payload, tt.event.Payload) {
				t.Errorf("Payload mismatch: expected %d bytes, got %d bytes",
					len(tt.event.Payload), len(got.Payload))
			}
			if len(tt.event.Data) > 0 && len(got.Data) == 0 {
				t.Error("Event data was lost in transit")
			}
		})
	}
}

func TestReadEventSeparateDataBlob(t *testing.T) {
	// Older peers send data as a separate blob sized by data_length.
	data := []byte(`{"language":"nl"}`)
	payload := []byte{0xDE, 0xAD}

	var buf bytes.Buffer
	buf.WriteString(`{"type":"transcribe","data_length":17,"payload_length":2}`)
	buf.WriteByte('\n')
	buf.Write(data)
	buf.Write(payload)

	event, err := NewReader(&buf).ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}

	if event.Type != TypeTranscribe {
		t.Errorf("Expected type %q, got %q", TypeTranscribe, event.Type)
	}
	if !bytes.Equal(event.Data, data) {
		t.Errorf("Expected data %s, got %s", data, event.Data)
	}
	if !bytes.Equal(event.Payload, payload) {
		t.Errorf("Expected payload %v, got %v", payload, event.Payload)
	}
}

func TestReadEventErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "not json",
			input:   "hello world\n",
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "missing type",
			input:   `{"payload_length":4}` + "\n",
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "negative payload length",
			input:   `{"type":"audio-chunk","payload_length":-1}` + "\n",
			wantErr: ErrInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewBufferString(tt.input)).ReadEvent()
			if err == nil {
				t.Fatal("Expected error, got none")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReadEventEOF(t *testing.T) {
	_, err := NewReader(bytes.NewBuffer(nil)).ReadEvent()
	if err != io.EOF {
		t.Errorf("Expected io.EOF on empty stream, got %v", err)
	}
}

func TestReadEventTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"audio-chunk","payload_length":100}`)
	buf.WriteByte('\n')
	buf.Write([]byte{0x01, 0x02}) // Far fewer than declared

	_, err := NewReader(&buf).ReadEvent()
	if err == nil {
		t.Fatal("Expected error on truncated payload, got none")
	}
}

func TestReadEventStream(t *testing.T) {
	// Multiple events back to back on one stream.
	var buf bytes.Buffer
	w := NewWriter(&buf)

	events := []*Event{
		Transcribe{Language: "en"}.Event(),
		AudioStart{Rate: 16000, Width: 2, Channels: 1}.Event(),
		AudioChunk{Rate: 16000, Width: 2, Channels: 1, Audio: []byte{1, 2, 3, 4}}.Event(),
		AudioStop{}.Event(),
	}
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent failed: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range events {
		got, err := r.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent %d failed: %v", i, err)
		}
		if got.Type != want.Type {
			t.Errorf("Event %d: expected type %q, got %q", i, want.Type, got.Type)
		}
	}

	if _, err := r.ReadEvent(); err != io.EOF {
		t.Errorf("Expected io.EOF after last event, got %v", err)
	}
}
