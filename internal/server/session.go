package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tboby/wyoming-onnx-asr/internal/audio"
	"github.com/tboby/wyoming-onnx-asr/internal/metrics"
	"github.com/tboby/wyoming-onnx-asr/internal/protocol"
	"github.com/tboby/wyoming-onnx-asr/internal/registry"
)

// Session is the per-connection protocol state machine. It owns its
// utterance buffer exclusively; the only state shared with other sessions
// is reached through the registry's guards.
type Session struct {
	logger             *slog.Logger
	reader             *protocol.Reader
	writer             *protocol.Writer
	registry           *registry.Registry
	metrics            *metrics.Metrics
	infoEvent          *protocol.Event
	recognitionTimeout time.Duration

	// pendingLanguage holds the tag armed by the latest transcribe
	// request; consumed (read and cleared) when an utterance finalizes.
	pendingLanguage string
	// buffer is open only between the first audio chunk and the stop
	// signal.
	buffer *audio.UtteranceBuffer
}

// NewSession creates the session for one connection.
func NewSession(conn io.ReadWriter, reg *registry.Registry, m *metrics.Metrics,
	infoEvent *protocol.Event, recognitionTimeout time.Duration, logger *slog.Logger) *Session {

	return &Session{
		logger:             logger,
		reader:             protocol.NewReader(conn),
		writer:             protocol.NewWriter(conn),
		registry:           reg,
		metrics:            m,
		infoEvent:          infoEvent,
		recognitionTimeout: recognitionTimeout,
	}
}

// Run processes events until the peer disconnects or a protocol error
// makes the stream untrustworthy. Any open utterance buffer is released on
// every exit path.
func (s *Session) Run(ctx context.Context) error {
	defer s.discardBuffer()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := s.reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, protocol.ErrInvalidHeader) {
				s.metrics.ProtocolErrors.Inc()
			}
			return err
		}

		s.metrics.EventsReceived.Inc()

		if err := s.handleEvent(ctx, event); err != nil {
			return err
		}
	}
}

// handleEvent dispatches one inbound event. A returned error closes the
// connection.
func (s *Session) handleEvent(ctx context.Context, event *protocol.Event) error {
	switch event.Type {
	case protocol.TypeAudioChunk:
		return s.handleAudioChunk(event)

	case protocol.TypeAudioStop:
		return s.handleAudioStop(ctx)

	case protocol.TypeTranscribe:
		return s.handleTranscribe(event)

	case protocol.TypeDescribe:
		if err := s.writer.WriteEvent(s.infoEvent); err != nil {
			return fmt.Errorf("failed to send capability descriptor: %w", err)
		}
		s.logger.Debug("Sent capability descriptor")
		return nil

	case protocol.TypeAudioStart:
		if start, err := protocol.AudioStartFromEvent(event); err == nil {
			s.logger.Debug("Audio started",
				slog.Int("rate", start.Rate),
				slog.Int("width", start.Width),
				slog.Int("channels", start.Channels),
			)
		}
		return nil

	default:
		s.logger.Debug("Ignoring unexpected event", slog.String("type", event.Type))
		return nil
	}
}

// handleTranscribe arms the language selection for the next-finalized
// utterance. A request naming a loaded model routes to that model's tag.
func (s *Session) handleTranscribe(event *protocol.Event) error {
	request, err := protocol.TranscribeFromEvent(event)
	if err != nil {
		s.metrics.ProtocolErrors.Inc()
		return err
	}

	s.pendingLanguage = request.Language
	if request.Language == "" && request.Name != "" {
		if entry, ok := s.registry.ResolveModel(request.Name); ok {
			s.pendingLanguage = entry.Tag
		} else {
			s.logger.Warn("Transcribe request names unknown model",
				slog.String("model", request.Name))
		}
	}

	s.logger.Debug("Transcribe request",
		slog.String("language", request.Language),
		slog.String("model", request.Name),
	)
	return nil
}

// handleAudioChunk opens the utterance buffer on the first chunk and
// appends to it afterwards. A mid-utterance format change means the stream
// can no longer be trusted, so the connection is closed.
func (s *Session) handleAudioChunk(event *protocol.Event) error {
	chunk, err := protocol.AudioChunkFromEvent(event)
	if err != nil {
		s.metrics.ProtocolErrors.Inc()
		return err
	}

	format := audio.Format{Rate: chunk.Rate, Width: chunk.Width, Channels: chunk.Channels}

	if s.buffer == nil {
		buffer, err := audio.NewUtteranceBuffer(format)
		if err != nil {
			s.metrics.ProtocolErrors.Inc()
			return fmt.Errorf("cannot open utterance buffer: %w", err)
		}
		s.buffer = buffer
		s.logger.Debug("Utterance buffer opened",
			slog.Int("rate", format.Rate),
			slog.Int("width", format.Width),
			slog.Int("channels", format.Channels),
		)
	}

	if err := s.buffer.Append(format, chunk.Audio); err != nil {
		s.metrics.ProtocolErrors.Inc()
		return fmt.Errorf("cannot append audio chunk: %w", err)
	}

	s.metrics.AudioBytes.Add(float64(len(chunk.Audio)))
	return nil
}

// handleAudioStop finalizes the utterance and emits exactly one transcript
// event, success or diagnostic. The pending language is consumed no matter
// how the utterance ends.
func (s *Session) handleAudioStop(ctx context.Context) error {
	s.metrics.UtterancesTotal.Inc()

	requested := s.pendingLanguage
	s.pendingLanguage = ""

	language := requested
	if language == "" {
		language = registry.DefaultLanguage
	}

	if s.buffer == nil {
		s.logger.Warn("Audio stop without any audio data")
		s.metrics.TranscriptionsFailed.WithLabelValues(metrics.ReasonBadAudio).Inc()
		return s.writeError("No audio received for this utterance")
	}

	samples, sampleRate, err := s.buffer.Finalize()
	s.discardBuffer()
	if err != nil {
		s.logger.Error("Failed to finalize utterance", slog.String("error", err.Error()))
		s.metrics.TranscriptionsFailed.WithLabelValues(metrics.ReasonBadAudio).Inc()
		return s.writeError(fmt.Sprintf("Transcription failed: %s", err))
	}

	audioSeconds := float64(len(samples)) / float64(sampleRate)
	s.metrics.UtteranceAudioDuration.Observe(audioSeconds)
	s.logger.Debug("Audio stopped",
		slog.Float64("seconds", audioSeconds),
		slog.String("language", language),
	)

	entry, err := s.registry.Resolve(language)
	if err != nil {
		s.metrics.TranscriptionsFailed.WithLabelValues(metrics.ReasonNoBackend).Inc()
		available := s.registry.Tags()
		s.logger.Error("No suitable backend",
			slog.String("language", language),
			slog.Any("available", available),
		)
		if requested != "" {
			return s.writeError(fmt.Sprintf(
				"Language '%s' is not supported. Available models: %v", requested, available))
		}
		return s.writeError("No ASR model is available for transcription")
	}

	recognizeCtx := ctx
	if s.recognitionTimeout > 0 {
		var cancel context.CancelFunc
		recognizeCtx, cancel = context.WithTimeout(ctx, s.recognitionTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := entry.Recognize(recognizeCtx, samples, sampleRate, language)
	s.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := metrics.ReasonRecognizer
		if errors.Is(err, context.DeadlineExceeded) {
			reason = metrics.ReasonTimeout
		}
		s.metrics.TranscriptionsFailed.WithLabelValues(reason).Inc()
		s.logger.Error("Model recognition failed",
			slog.String("backend", entry.Tag),
			slog.String("error", err.Error()),
		)
		return s.writeError(fmt.Sprintf("Transcription failed: %s", err))
	}

	s.metrics.TranscriptionsOK.Inc()
	s.logger.Info("Transcription complete",
		slog.String("backend", entry.Tag),
		slog.String("text", text),
		slog.Duration("took", time.Since(start)),
	)

	return s.writer.WriteEvent(protocol.Transcript{Text: text}.Event())
}

// writeError reports a recoverable failure on the normal response channel.
// The "ERROR: " prefix on the transcript event is the wire contract
// existing clients expect.
func (s *Session) writeError(message string) error {
	return s.writer.WriteEvent(protocol.Transcript{Text: "ERROR: " + message}.Event())
}

// discardBuffer drops the open utterance buffer, if any, releasing its
// storage.
func (s *Session) discardBuffer() {
	if s.buffer != nil {
		s.buffer.Close()
		s.buffer = nil
	}
}
