package protocol

import (
	"encoding/json"
	"fmt"
)

// Attribution credits the author of a program or model.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AsrModel describes one loaded recognition backend. Languages is ["en"]
// for a language-specific model or ["*"] for a multilingual one.
type AsrModel struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Languages   []string    `json:"languages"`
	Version     string      `json:"version"`
}

// AsrProgram describes the server program and its loaded models.
type AsrProgram struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Version     string      `json:"version"`
	Models      []AsrModel  `json:"models"`
}

// Info is the capability descriptor served in response to describe
// requests. It is computed once at startup and never mutates.
type Info struct {
	Asr []AsrProgram `json:"asr"`
}

// Event converts the descriptor to a wire event.
func (i Info) Event() *Event {
	return &Event{Type: TypeInfo, Data: marshalData(i)}
}

// InfoFromEvent decodes an info event.
func InfoFromEvent(event *Event) (Info, error) {
	var i Info
	if err := json.Unmarshal(event.Data, &i); err != nil {
		return Info{}, fmt.Errorf("protocol: invalid info event: %w", err)
	}
	return i, nil
}
