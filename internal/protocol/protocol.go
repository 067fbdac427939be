package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxPayloadSize limits the binary payload of a single event. Audio is
// streamed in small chunks, so anything near this size indicates a broken
// or hostile peer.
const MaxPayloadSize = 16 * 1024 * 1024

// ErrInvalidHeader is returned when an event header line is not valid JSON
// or declares an impossible length.
var ErrInvalidHeader = errors.New("protocol: invalid event header")

// Event is a single protocol event: a type name, optional JSON metadata,
// and an optional binary payload.
type Event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

// header is the wire representation of the JSON line that precedes the
// payload. Data may be carried inline or as a separate blob of DataLength
// bytes following the header line; both forms are accepted on read, and
// the inline form is produced on write.
type header struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    *int            `json:"data_length,omitempty"`
	PayloadLength *int            `json:"payload_length,omitempty"`
}

// Reader decodes events from a byte stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates an event reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadEvent reads the next event from the stream. It returns io.EOF when
// the stream ends cleanly between events.
func (r *Reader) ReadEvent() (*Event, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("protocol: failed to read event header: %w", err)
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	if h.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidHeader)
	}

	event := &Event{Type: h.Type, Data: h.Data}

	// Older peers send the data object as a separate blob after the
	// header line.
	if h.DataLength != nil {
		n := *h.DataLength
		if n < 0 || n > MaxPayloadSize {
			return nil, fmt.Errorf("%w: data_length %d out of range", ErrInvalidHeader, n)
		}
		if n > 0 {
			data := make([]byte, n)
			if _, err := io.ReadFull(r.br, data); err != nil {
				return nil, fmt.Errorf("protocol: failed to read event data: %w", err)
			}
			event.Data = data
		}
	}

	if h.PayloadLength != nil {
		n := *h.PayloadLength
		if n < 0 || n > MaxPayloadSize {
			return nil, fmt.Errorf("%w: payload_length %d out of range", ErrInvalidHeader, n)
		}
		if n > 0 {
			payload := make([]byte, n)
			if _, err := io.ReadFull(r.br, payload); err != nil {
				return nil, fmt.Errorf("protocol: failed to read event payload: %w", err)
			}
			event.Payload = payload
		}
	}

	return event, nil
}

// Writer encodes events onto a byte stream. It is safe for concurrent use.
type Writer struct {
	bw *bufio.Writer
	mu sync.Mutex
}

// NewWriter creates an event writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteEvent encodes a single event and flushes it to the underlying
// stream.
func (w *Writer) WriteEvent(event *Event) error {
	if event.Type == "" {
		return fmt.Errorf("protocol: cannot write event without a type")
	}
	if len(event.Payload) > MaxPayloadSize {
		return fmt.Errorf("protocol: payload of %d bytes exceeds limit", len(event.Payload))
	}

	h := header{
		Type: event.Type,
		Data: event.Data,
	}
	if len(event.Payload) > 0 {
		n := len(event.Payload)
		h.PayloadLength = &n
	}

	line, err := json.Marshal(&h)
	if err != nil {
		return fmt.Errorf("protocol: failed to encode event header: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.bw.Write(line); err != nil {
		return fmt.Errorf("protocol: failed to write event header: %w", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("protocol: failed to write event header: %w", err)
	}
	if len(event.Payload) > 0 {
		if _, err := w.bw.Write(event.Payload); err != nil {
			return fmt.Errorf("protocol: failed to write event payload: %w", err)
		}
	}

	return w.bw.Flush()
}

// marshalData encodes a typed event body, panicking only on programmer
// error (all event bodies are plain structs).
func marshalData(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: failed to marshal event data: %v", err))
	}
	return data
}
