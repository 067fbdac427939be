package asr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tboby/wyoming-onnx-asr/internal/config"
)

// Stub is a deterministic in-process backend used for tests and smoke
// deployments. It returns a fixed transcript when one is configured, or a
// short summary of the received audio otherwise.
type Stub struct {
	log        *slog.Logger
	name       string
	transcript string
	// Delay simulates inference time; settable by tests.
	Delay time.Duration
}

// NewStub returns a stub backend for the given model configuration.
func NewStub(cfg config.ModelConfig, logger *slog.Logger) *Stub {
	return &Stub{
		log:        logger,
		name:       cfg.Name,
		transcript: cfg.Transcript,
	}
}

// Recognize implements the Recognizer interface.
func (s *Stub) Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.log.Debug("stub recognition",
		slog.Int("samples", len(samples)),
		slog.Int("sample_rate", sampleRate),
		slog.String("language", language),
	)

	if s.transcript != "" {
		return s.transcript, nil
	}

	duration := float64(len(samples)) / float64(sampleRate)
	return fmt.Sprintf("[%s] %.2fs of %s audio", s.name, duration, language), nil
}
