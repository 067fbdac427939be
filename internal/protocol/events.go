package protocol

import (
	"encoding/json"
	"fmt"
)

// Event type names on the wire.
const (
	TypeDescribe   = "describe"
	TypeInfo       = "info"
	TypeTranscribe = "transcribe"
	TypeTranscript = "transcript"
	TypeAudioStart = "audio-start"
	TypeAudioChunk = "audio-chunk"
	TypeAudioStop  = "audio-stop"
)

// Describe asks the server for its capability descriptor. It carries no
// data.
type Describe struct{}

// Event converts the request to a wire event.
func (Describe) Event() *Event {
	return &Event{Type: TypeDescribe}
}

// Transcribe arms the language/model selection for the next utterance.
// Both fields are optional; Name takes a loaded model's name, Language a
// language tag like "en" or "nl".
type Transcribe struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// Event converts the request to a wire event.
func (t Transcribe) Event() *Event {
	return &Event{Type: TypeTranscribe, Data: marshalData(t)}
}

// TranscribeFromEvent decodes a transcribe event.
func TranscribeFromEvent(event *Event) (Transcribe, error) {
	var t Transcribe
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &t); err != nil {
			return Transcribe{}, fmt.Errorf("protocol: invalid transcribe event: %w", err)
		}
	}
	return t, nil
}

// Transcript carries the recognition result for one utterance. Error
// conditions are reported on the same event type with an "ERROR: " prefix
// for compatibility with existing clients.
type Transcript struct {
	Text string `json:"text"`
}

// Event converts the transcript to a wire event.
func (t Transcript) Event() *Event {
	return &Event{Type: TypeTranscript, Data: marshalData(t)}
}

// TranscriptFromEvent decodes a transcript event.
func TranscriptFromEvent(event *Event) (Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(event.Data, &t); err != nil {
		return Transcript{}, fmt.Errorf("protocol: invalid transcript event: %w", err)
	}
	return t, nil
}

// AudioStart declares the PCM format of the upcoming utterance. The
// format latched from the first audio chunk remains authoritative for
// buffering; this event is a transport-level hint.
type AudioStart struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// Event converts the start marker to a wire event.
func (a AudioStart) Event() *Event {
	return &Event{Type: TypeAudioStart, Data: marshalData(a)}
}

// AudioStartFromEvent decodes an audio-start event.
func AudioStartFromEvent(event *Event) (AudioStart, error) {
	var a AudioStart
	if err := json.Unmarshal(event.Data, &a); err != nil {
		return AudioStart{}, fmt.Errorf("protocol: invalid audio-start event: %w", err)
	}
	return a, nil
}

// AudioChunk carries raw PCM frames in the event payload along with their
// declared format.
type AudioChunk struct {
	Rate     int    `json:"rate"`
	Width    int    `json:"width"`
	Channels int    `json:"channels"`
	Audio    []byte `json:"-"`
}

// Event converts the chunk to a wire event with the PCM bytes as payload.
func (a AudioChunk) Event() *Event {
	return &Event{
		Type:    TypeAudioChunk,
		Data:    marshalData(a),
		Payload: a.Audio,
	}
}

// AudioChunkFromEvent decodes an audio-chunk event, attaching the binary
// payload as the PCM data.
func AudioChunkFromEvent(event *Event) (AudioChunk, error) {
	var a AudioChunk
	if err := json.Unmarshal(event.Data, &a); err != nil {
		return AudioChunk{}, fmt.Errorf("protocol: invalid audio-chunk event: %w", err)
	}
	a.Audio = event.Payload
	return a, nil
}

// AudioStop marks the end of an utterance. It carries no data.
type AudioStop struct{}

// Event converts the stop marker to a wire event.
func (AudioStop) Event() *Event {
	return &Event{Type: TypeAudioStop}
}
