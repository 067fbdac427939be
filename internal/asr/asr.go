package asr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tboby/wyoming-onnx-asr/internal/config"
)

// Recognizer is an opaque speech-to-text capability. Implementations may
// be slow and CPU/GPU bound and are not safely reentrant; callers must
// serialize calls per instance.
type Recognizer interface {
	// Recognize transcribes a mono float32 waveform. The language tag is
	// a hint; backends may ignore it.
	Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)
}

// Load constructs the backend described by the model configuration. A
// returned error is a startup failure: the service must not begin serving
// with a partially loaded registry.
func Load(cfg config.ModelConfig, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("backend", cfg.Tag), slog.String("type", cfg.Type))

	switch cfg.Type {
	case config.BackendTypeStub:
		return NewStub(cfg, logger), nil
	case config.BackendTypeCommand:
		return NewCommand(cfg, logger)
	case config.BackendTypeHTTP:
		return NewHTTPClient(cfg, logger)
	default:
		return nil, fmt.Errorf("asr: unknown backend type %q for tag %q", cfg.Type, cfg.Tag)
	}
}
